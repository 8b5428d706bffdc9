package service

import (
	"context"
	"fmt"
	"strings"

	"booking-service/internal/models"
	"booking-service/internal/repository"

	"github.com/google/uuid"
)

const maxListLimit = 100

func (s *bookingService) GetReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("%w: reservation id is required", ErrInvalidInput)
	}
	res, err := s.repo.Reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, ErrReservationNotFound
	}
	return res, nil
}

func (s *bookingService) GetReservationByReference(ctx context.Context, reference string) (*models.Reservation, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, fmt.Errorf("%w: reference is required", ErrInvalidInput)
	}
	res, err := s.repo.Reservations.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, ErrReservationNotFound
	}
	return res, nil
}

func (s *bookingService) ListReservations(ctx context.Context, f ListFilter) ([]models.Reservation, int64, error) {
	if f.Status != nil && !f.Status.IsValid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *f.Status)
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	rf := repository.ReservationListFilter{
		PropertyID: f.PropertyID,
		UnitID:     f.UnitID,
		Status:     f.Status,
		Limit:      f.Limit,
		Offset:     f.Offset,
	}
	if f.From != nil {
		from := toDate(*f.From)
		rf.From = &from
	}
	if f.To != nil {
		to := toDate(*f.To)
		rf.To = &to
	}
	return s.repo.Reservations.List(ctx, rf)
}

// CheckAvailability: чтение без блокировок; ответ может устареть к моменту создания брони.
func (s *bookingService) CheckAvailability(ctx context.Context, q AvailabilityQuery) (Availability, error) {
	if q.PropertyID == uuid.Nil {
		return Availability{}, fmt.Errorf("%w: property id is required", ErrInvalidInput)
	}
	checkIn, checkOut := toDate(q.CheckIn), toDate(q.CheckOut)
	if _, err := countNights(checkIn, checkOut); err != nil {
		return Availability{}, err
	}
	if q.UnitID != nil && *q.UnitID == uuid.Nil {
		q.UnitID = nil
	}

	n, err := s.repo.Reservations.CountHolding(ctx, repository.SlotQuery{
		PropertyID: q.PropertyID,
		UnitID:     q.UnitID,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
	})
	if err != nil {
		return Availability{}, err
	}
	return Availability{Available: n == 0, Holding: n}, nil
}
