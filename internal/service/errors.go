package service

import (
	"errors"
	"fmt"
)

// Корневые категории: транспорт различает их через errors.Is.
var (
	ErrLockContention    = errors.New("resource is being booked by another request, retry shortly")
	ErrBookingConflict   = errors.New("dates overlap an existing reservation")
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid status transition")
)

var (
	ErrPropertyNotFound    = fmt.Errorf("property %w", ErrNotFound)
	ErrUnitNotFound        = fmt.Errorf("unit %w", ErrNotFound)
	ErrReservationNotFound = fmt.Errorf("reservation %w", ErrNotFound)

	ErrInvalidDuration      = fmt.Errorf("%w: check-out must be at least one night after check-in", ErrInvalidInput)
	ErrUnitPropertyMismatch = fmt.Errorf("%w: unit does not belong to property", ErrInvalidInput)
	ErrListingInactive      = fmt.Errorf("%w: listing is not bookable", ErrInvalidInput)
	ErrCurrencyMismatch     = fmt.Errorf("%w: listing currency is not supported", ErrInvalidInput)

	ErrDuplicateReference = fmt.Errorf("%w: reference already in use", ErrBookingConflict)
)
