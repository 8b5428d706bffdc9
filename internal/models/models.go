package models

import (
	"time"

	"github.com/google/uuid"
)

// Объекты размещения ведёт внешний CRUD; здесь только то, что нужно ядру бронирования.
type Property struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name         string    `gorm:"type:text;not null"`
	PriceCents   int64     `gorm:"not null;default:0"`
	CurrencyCode string    `gorm:"type:char(3);not null;default:'USD'"`
	IsActive     bool      `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (Property) TableName() string { return "properties" }

type Unit struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PropertyID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Name         string    `gorm:"type:text;not null"`
	PriceCents   int64     `gorm:"not null;default:0"`
	CurrencyCode string    `gorm:"type:char(3);not null;default:'USD'"`
	IsActive     bool      `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (Unit) TableName() string { return "units" }

type ReservationStatus string

const (
	StatusInitiated ReservationStatus = "initiated"
	StatusReserved  ReservationStatus = "reserved"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCheckedIn ReservationStatus = "checked_in"
	StatusCompleted ReservationStatus = "completed"
	StatusCancelled ReservationStatus = "cancelled"
	StatusExpired   ReservationStatus = "expired"
)

var transitions = map[ReservationStatus][]ReservationStatus{
	StatusInitiated: {StatusReserved, StatusCancelled},
	StatusReserved:  {StatusConfirmed, StatusCancelled, StatusExpired},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusCheckedIn},
	StatusCheckedIn: {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {},
	StatusExpired:   {},
}

// HoldingStatuses: статусы, занимающие слот при проверке пересечений.
var HoldingStatuses = []ReservationStatus{
	StatusReserved,
	StatusConfirmed,
	StatusCheckedIn,
	StatusCompleted,
}

func (s ReservationStatus) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

func (s ReservationStatus) CanTransitionTo(target ReservationStatus) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

func (s ReservationStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

func (s ReservationStatus) HoldsSlot() bool {
	for _, h := range HoldingStatuses {
		if h == s {
			return true
		}
	}
	return false
}

func (s ReservationStatus) String() string { return string(s) }

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentSuccess  PaymentStatus = "success"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// IsSettled: деньги уже списаны, при отмене нужен возврат.
func (p PaymentStatus) IsSettled() bool {
	return p == PaymentPaid || p == PaymentSuccess
}

type Reservation struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Reference  string     `gorm:"type:text;not null;uniqueIndex:ux_reservations_reference" json:"reference"`
	PropertyID uuid.UUID  `gorm:"type:uuid;not null;index" json:"property_id"`
	UnitID     *uuid.UUID `gorm:"type:uuid;index" json:"unit_id,omitempty"`

	CheckIn  time.Time `gorm:"type:date;not null" json:"check_in"`
	CheckOut time.Time `gorm:"type:date;not null" json:"check_out"`
	Nights   int       `gorm:"not null" json:"nights"`

	UnitPriceCents  int64  `gorm:"not null" json:"unit_price_cents"`
	TotalPriceCents int64  `gorm:"not null" json:"total_price_cents"`
	CurrencyCode    string `gorm:"type:char(3);not null" json:"currency_code"`

	Status        ReservationStatus `gorm:"type:text;not null;default:'reserved';index" json:"status"`
	PaymentStatus PaymentStatus     `gorm:"type:text;not null;default:'pending'" json:"payment_status"`

	GuestName  string `gorm:"type:text;not null" json:"guest_name"`
	GuestEmail string `gorm:"type:text;not null" json:"guest_email"`
	GuestPhone string `gorm:"type:text" json:"guest_phone,omitempty"`

	CancelledBy  *string `gorm:"type:text" json:"cancelled_by,omitempty"`
	CancelReason *string `gorm:"type:text" json:"cancel_reason,omitempty"`

	ExpiresAt   time.Time  `gorm:"not null;index" json:"expires_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (Reservation) TableName() string { return "reservations" }

// SlotID возвращает занимаемый ресурс: юнит, а для броней без юнита сам объект.
func (r *Reservation) SlotID() uuid.UUID {
	if r.UnitID != nil {
		return *r.UnitID
	}
	return r.PropertyID
}

type RefundStatus string

const (
	RefundPending   RefundStatus = "pending"
	RefundCompleted RefundStatus = "completed"
	RefundFailed    RefundStatus = "failed"
)

// RefundObligation: запись о долге перед гостем; исполняет её внешний платёжный сервис.
type RefundObligation struct {
	ID            uuid.UUID    `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ReservationID uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:ux_refund_obligations_reservation"`
	AmountCents   int64        `gorm:"not null"`
	CurrencyCode  string       `gorm:"type:char(3);not null"`
	Status        RefundStatus `gorm:"type:text;not null;default:'pending';index"`
	Reason        *string      `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (RefundObligation) TableName() string { return "refund_obligations" }
