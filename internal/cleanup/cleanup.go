package cleanup

import (
	"context"
	"errors"
	"time"

	"booking-service/internal/models"
	"booking-service/internal/service"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultBatchSize = 100

type ExpiredHoldLister interface {
	ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

type PendingRefundLister interface {
	ListPending(ctx context.Context, limit int) ([]models.RefundObligation, error)
}

type StatusChanger interface {
	ChangeStatus(ctx context.Context, in service.ChangeStatusInput) (*models.Reservation, error)
}

// ExpiryService переводит просроченные холды в expired через обычный переход статуса,
// поэтому с параллельным подтверждением гонки нет: проигравший получит ErrInvalidTransition.
type ExpiryService struct {
	holds     ExpiredHoldLister
	refunds   PendingRefundLister
	lifecycle StatusChanger
	log       *zap.Logger
	batchSize int
	now       func() time.Time
}

func NewExpiryService(holds ExpiredHoldLister, refunds PendingRefundLister, lifecycle StatusChanger, log *zap.Logger) *ExpiryService {
	return &ExpiryService{
		holds:     holds,
		refunds:   refunds,
		lifecycle: lifecycle,
		log:       log,
		batchSize: defaultBatchSize,
		now:       time.Now,
	}
}

// ExpireHolds обрабатывает пачки, пока просроченные холды не закончатся. Возвращает число переведённых.
func (c *ExpiryService) ExpireHolds(ctx context.Context) (int, error) {
	expired := 0
	for {
		ids, err := c.holds.ListExpiredHolds(ctx, c.now().UTC(), c.batchSize)
		if err != nil {
			c.log.Error("failed to list expired holds", zap.Error(err))
			return expired, err
		}
		if len(ids) == 0 {
			break
		}

		progressed := 0
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return expired, err
			}
			_, err := c.lifecycle.ChangeStatus(ctx, service.ChangeStatusInput{
				ReservationID: id,
				Target:        models.StatusExpired,
			})
			switch {
			case err == nil:
				expired++
				progressed++
			case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrNotFound):
				// бронь успели подтвердить или отменить
				c.log.Debug("hold no longer expirable", zap.Stringer("id", id), zap.Error(err))
			default:
				c.log.Error("failed to expire hold", zap.Stringer("id", id), zap.Error(err))
				return expired, err
			}
		}
		if len(ids) < c.batchSize || progressed == 0 {
			break
		}
	}

	if expired > 0 {
		c.log.Info("expired stale holds", zap.Int("count", expired))
	}
	return expired, nil
}

// ReportPendingRefunds только логирует невыполненные обязательства по возврату.
func (c *ExpiryService) ReportPendingRefunds(ctx context.Context) (int, error) {
	pending, err := c.refunds.ListPending(ctx, c.batchSize)
	if err != nil {
		c.log.Error("failed to list pending refunds", zap.Error(err))
		return 0, err
	}
	if len(pending) > 0 {
		var oldest time.Time
		for _, p := range pending {
			if oldest.IsZero() || p.CreatedAt.Before(oldest) {
				oldest = p.CreatedAt
			}
		}
		c.log.Warn("refund obligations awaiting payment service",
			zap.Int("count", len(pending)),
			zap.Time("oldest", oldest),
		)
	}
	return len(pending), nil
}

func (c *ExpiryService) RunFullCleanup(ctx context.Context) error {
	c.log.Info("starting full cleanup")

	if _, err := c.ExpireHolds(ctx); err != nil {
		return err
	}
	if _, err := c.ReportPendingRefunds(ctx); err != nil {
		return err
	}

	c.log.Info("full cleanup completed")
	return nil
}
