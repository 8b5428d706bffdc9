package service

import (
	"context"
	"strings"
	"time"

	"booking-service/internal/models"

	"github.com/google/uuid"
)

const currencyUSD = "USD"

type Options struct {
	// LockLease должен покрывать всю транзакцию создания, но быстро самоочищаться при падении.
	LockLease time.Duration
	// HoldWindow: сколько бронь в статусе reserved держит слот до свипера.
	HoldWindow      time.Duration
	ReferencePrefix string
}

func DefaultOptions() Options {
	return Options{
		LockLease:       10 * time.Second,
		HoldWindow:      time.Hour,
		ReferencePrefix: "BK",
	}
}

type CreateReservationInput struct {
	PropertyID uuid.UUID  `validate:"required"`
	UnitID     *uuid.UUID `validate:"omitempty"`
	CheckIn    time.Time  `validate:"required"`
	CheckOut   time.Time  `validate:"required"`
	GuestName  string     `validate:"required,max=200"`
	GuestEmail string     `validate:"required,email,max=254"`
	GuestPhone string     `validate:"omitempty,max=32"`
	// Reference: необязательный номер от вызывающей стороны; иначе генерируется.
	Reference string `validate:"omitempty,max=64"`
}

func (in *CreateReservationInput) normalize() {
	in.CheckIn = toDate(in.CheckIn)
	in.CheckOut = toDate(in.CheckOut)
	in.GuestName = strings.TrimSpace(in.GuestName)
	in.GuestEmail = strings.ToLower(strings.TrimSpace(in.GuestEmail))
	in.GuestPhone = strings.TrimSpace(in.GuestPhone)
	in.Reference = strings.TrimSpace(in.Reference)
	if in.UnitID != nil && *in.UnitID == uuid.Nil {
		in.UnitID = nil
	}
}

func (in *CreateReservationInput) slotID() uuid.UUID {
	if in.UnitID != nil {
		return *in.UnitID
	}
	return in.PropertyID
}

type ChangeStatusInput struct {
	ReservationID uuid.UUID
	Target        models.ReservationStatus
	// CancelledBy и Reason учитываются только при переходе в cancelled.
	CancelledBy string
	Reason      string
}

type ListFilter struct {
	PropertyID *uuid.UUID
	UnitID     *uuid.UUID
	Status     *models.ReservationStatus
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

type AvailabilityQuery struct {
	PropertyID uuid.UUID
	UnitID     *uuid.UUID
	CheckIn    time.Time
	CheckOut   time.Time
}

type Availability struct {
	Available bool  `json:"available"`
	Holding   int64 `json:"holding"`
}

type BookingService interface {
	CreateReservation(ctx context.Context, in CreateReservationInput) (*models.Reservation, error)
	ChangeStatus(ctx context.Context, in ChangeStatusInput) (*models.Reservation, error)
	RecordPayment(ctx context.Context, in RecordPaymentInput) (*models.Reservation, error)

	GetReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	GetReservationByReference(ctx context.Context, reference string) (*models.Reservation, error)
	ListReservations(ctx context.Context, f ListFilter) ([]models.Reservation, int64, error)
	CheckAvailability(ctx context.Context, q AvailabilityQuery) (Availability, error)
}

// toDate отбрасывает время суток: бронь оперирует календарными датами.
func toDate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
