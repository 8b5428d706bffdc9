package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"booking-service/internal/lock"
	"booking-service/internal/models"
	"booking-service/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const releaseTimeout = 2 * time.Second

type bookingService struct {
	repo     *repository.Repository
	locker   lock.Locker
	events   EventBus
	validate *validator.Validate
	opts     Options
	now      func() time.Time
	log      *zap.Logger
	tracer   trace.Tracer
}

// NewBookingService: events может быть nil, тогда события не публикуются.
func NewBookingService(repo *repository.Repository, locker lock.Locker, events EventBus, opts Options, log *zap.Logger) BookingService {
	def := DefaultOptions()
	if opts.LockLease <= 0 {
		opts.LockLease = def.LockLease
	}
	if opts.HoldWindow <= 0 {
		opts.HoldWindow = def.HoldWindow
	}
	if opts.ReferencePrefix == "" {
		opts.ReferencePrefix = def.ReferencePrefix
	}
	return &bookingService{
		repo:     repo,
		locker:   locker,
		events:   events,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		opts:     opts,
		now:      time.Now,
		log:      log,
		tracer:   otel.Tracer("booking-service/internal/service"),
	}
}

func (s *bookingService) CreateReservation(ctx context.Context, in CreateReservationInput) (res *models.Reservation, err error) {
	ctx, span := s.tracer.Start(ctx, "BookingService.CreateReservation")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	in.normalize()
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	nights, err := countNights(in.CheckIn, in.CheckOut)
	if err != nil {
		return nil, err
	}

	key := lock.ResourceKey(in.slotID(), in.CheckIn, in.CheckOut)
	span.SetAttributes(
		attribute.String("booking.slot_id", in.slotID().String()),
		attribute.String("booking.lock_key", key),
		attribute.Int("booking.nights", nights),
	)

	token, ok, err := s.locker.Acquire(ctx, key, s.opts.LockLease)
	if err != nil {
		// Недоступное хранилище блокировок приравнивается к занятой блокировке.
		s.log.Warn("lock acquisition failed", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrLockContention, err)
	}
	if !ok {
		s.log.Info("lock contended", zap.String("key", key))
		return nil, ErrLockContention
	}
	defer s.releaseLock(ctx, key, token)

	now := s.now().UTC()
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		price, currency, err := s.lockListing(ctx, tx, in)
		if err != nil {
			return err
		}

		conflict, err := tx.Reservations.HasConflict(ctx, repository.SlotQuery{
			PropertyID: in.PropertyID,
			UnitID:     in.UnitID,
			CheckIn:    in.CheckIn,
			CheckOut:   in.CheckOut,
		})
		if err != nil {
			return err
		}
		if conflict {
			return ErrBookingConflict
		}

		reference := in.Reference
		if reference == "" {
			seq, err := tx.Reservations.NextReferenceSeq(ctx)
			if err != nil {
				return fmt.Errorf("next reference seq: %w", err)
			}
			reference = FormatReference(s.opts.ReferencePrefix, now, seq)
		}

		r := &models.Reservation{
			Reference:       reference,
			PropertyID:      in.PropertyID,
			UnitID:          in.UnitID,
			CheckIn:         in.CheckIn,
			CheckOut:        in.CheckOut,
			Nights:          nights,
			UnitPriceCents:  price,
			TotalPriceCents: price * int64(nights),
			CurrencyCode:    currency,
			Status:          models.StatusReserved,
			PaymentStatus:   models.PaymentPending,
			GuestName:       in.GuestName,
			GuestEmail:      in.GuestEmail,
			GuestPhone:      in.GuestPhone,
			ExpiresAt:       now.Add(s.opts.HoldWindow),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.Reservations.Create(ctx, r); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateReference
			}
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		if !isClientError(err) {
			s.log.Error("Failed to create reservation", zap.String("key", key), zap.Error(err))
		}
		return nil, err
	}

	s.log.Info("Reservation created",
		zap.Stringer("id", res.ID),
		zap.String("reference", res.Reference),
		zap.Stringer("slot_id", res.SlotID()),
		zap.String("check_in", res.CheckIn.Format(time.DateOnly)),
		zap.String("check_out", res.CheckOut.Format(time.DateOnly)),
		zap.Int64("total_cents", res.TotalPriceCents),
	)

	if s.events != nil {
		if err := s.events.PublishReservationCreated(ctx, ReservationCreatedEvent{
			ReservationID: res.ID,
			Reference:     res.Reference,
			PropertyID:    res.PropertyID,
			UnitID:        res.UnitID,
			CheckIn:       res.CheckIn,
			CheckOut:      res.CheckOut,
			TotalCents:    res.TotalPriceCents,
			Currency:      res.CurrencyCode,
			ExpiresAt:     res.ExpiresAt,
			CreatedAt:     res.CreatedAt,
		}); err != nil {
			s.log.Warn("publish reservation created failed", zap.Stringer("id", res.ID), zap.Error(err))
		}
	}

	return res, nil
}

// lockListing блокирует строку юнита (или объекта) на время транзакции и возвращает цену-снимок.
// Блокировка сериализует создание броней на один юнит даже без распределённого лока.
func (s *bookingService) lockListing(ctx context.Context, tx *repository.Repository, in CreateReservationInput) (int64, string, error) {
	if in.UnitID != nil {
		unit, err := tx.Units.GetByIDForUpdate(ctx, *in.UnitID)
		if err != nil {
			return 0, "", err
		}
		if unit == nil {
			return 0, "", ErrUnitNotFound
		}
		if unit.PropertyID != in.PropertyID {
			return 0, "", ErrUnitPropertyMismatch
		}
		if !unit.IsActive {
			return 0, "", ErrListingInactive
		}
		if unit.CurrencyCode != currencyUSD {
			return 0, "", ErrCurrencyMismatch
		}
		return unit.PriceCents, unit.CurrencyCode, nil
	}

	prop, err := tx.Properties.GetByIDForUpdate(ctx, in.PropertyID)
	if err != nil {
		return 0, "", err
	}
	if prop == nil {
		return 0, "", ErrPropertyNotFound
	}
	if !prop.IsActive {
		return 0, "", ErrListingInactive
	}
	if prop.CurrencyCode != currencyUSD {
		return 0, "", ErrCurrencyMismatch
	}
	return prop.PriceCents, prop.CurrencyCode, nil
}

// releaseLock не возвращает ошибок: неудачное освобождение лишь держит слот до истечения lease.
func (s *bookingService) releaseLock(ctx context.Context, key, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	if err := s.locker.Release(ctx, key, token); err != nil {
		s.log.Warn("Failed to release booking lock", zap.String("key", key), zap.Error(err))
	}
}

// countNights = ceil(checkout - checkin) в сутках, минимум одна ночь.
func countNights(checkIn, checkOut time.Time) (int, error) {
	nights := int(math.Ceil(checkOut.Sub(checkIn).Hours() / 24))
	if nights < 1 {
		return 0, ErrInvalidDuration
	}
	return nights, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isClientError(err error) bool {
	return errors.Is(err, ErrLockContention) ||
		errors.Is(err, ErrBookingConflict) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidTransition)
}
