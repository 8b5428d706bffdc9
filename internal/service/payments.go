package service

import (
	"context"
	"fmt"

	"booking-service/internal/models"
	"booking-service/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const latePaymentReason = "payment settled after reservation was closed"

type RecordPaymentInput struct {
	ReservationID uuid.UUID
	Status        models.PaymentStatus
}

// RecordPayment фиксирует результат оплаты от внешнего платёжного сервиса. Меняется только payment_status,
// статус брони подтверждается отдельно. Оплата, пришедшая после отмены или истечения, сразу уходит в возврат.
func (s *bookingService) RecordPayment(ctx context.Context, in RecordPaymentInput) (*models.Reservation, error) {
	switch in.Status {
	case models.PaymentPaid, models.PaymentSuccess, models.PaymentFailed:
	default:
		return nil, fmt.Errorf("%w: payment status %q cannot be recorded", ErrInvalidInput, in.Status)
	}

	var (
		res    *models.Reservation
		refund *models.RefundObligation
	)
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		cur, err := tx.Reservations.GetByIDForUpdate(ctx, in.ReservationID)
		if err != nil {
			return err
		}
		if cur == nil {
			return ErrReservationNotFound
		}

		// повторная доставка события
		if cur.PaymentStatus == in.Status ||
			(cur.PaymentStatus == models.PaymentRefunded && in.Status.IsSettled()) {
			res = cur
			return nil
		}
		if cur.PaymentStatus.IsSettled() || cur.PaymentStatus == models.PaymentRefunded {
			return fmt.Errorf("%w: payment %s -> %s", ErrInvalidTransition, cur.PaymentStatus, in.Status)
		}

		now := s.now().UTC()
		fields := map[string]any{"payment_status": in.Status, "updated_at": now}

		closed := cur.Status == models.StatusCancelled || cur.Status == models.StatusExpired
		if closed && in.Status.IsSettled() {
			reason := latePaymentReason
			fields["payment_status"] = models.PaymentRefunded
			refund = &models.RefundObligation{
				ReservationID: cur.ID,
				AmountCents:   cur.TotalPriceCents,
				CurrencyCode:  cur.CurrencyCode,
				Status:        models.RefundPending,
				Reason:        &reason,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if err := tx.Refunds.Create(ctx, refund); err != nil {
				return fmt.Errorf("record refund obligation: %w", err)
			}
		}

		if err := tx.Reservations.UpdateFields(ctx, cur.ID, fields); err != nil {
			return err
		}
		res, err = tx.Reservations.GetByID(ctx, cur.ID)
		return err
	})
	if err != nil {
		if !isClientError(err) {
			s.log.Error("Failed to record payment", zap.Stringer("id", in.ReservationID), zap.Error(err))
		}
		return nil, err
	}

	s.log.Info("Payment recorded",
		zap.Stringer("id", res.ID),
		zap.String("reported", string(in.Status)),
		zap.String("payment_status", string(res.PaymentStatus)),
	)

	if refund != nil && s.events != nil {
		if err := s.events.PublishRefundRequested(ctx, RefundRequestedEvent{
			RefundID:      refund.ID,
			ReservationID: res.ID,
			Reference:     res.Reference,
			AmountCents:   refund.AmountCents,
			Currency:      refund.CurrencyCode,
			RequestedAt:   refund.CreatedAt,
		}); err != nil {
			s.log.Warn("publish refund requested failed", zap.Stringer("id", res.ID), zap.Error(err))
		}
	}
	return res, nil
}
