package service

import (
	"context"
	"fmt"
	"strings"

	"booking-service/internal/models"
	"booking-service/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	systemActor     = "system"
	maxReasonLength = 500
)

// ChangeStatus переводит бронь по таблице переходов. Текущий статус читается под блокировкой строки
// в той же транзакции, что и запись, поэтому гонка двух переходов не пишет недопустимый статус.
func (s *bookingService) ChangeStatus(ctx context.Context, in ChangeStatusInput) (res *models.Reservation, err error) {
	ctx, span := s.tracer.Start(ctx, "BookingService.ChangeStatus")
	span.SetAttributes(
		attribute.String("booking.reservation_id", in.ReservationID.String()),
		attribute.String("booking.target_status", string(in.Target)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if !in.Target.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, in.Target)
	}

	var (
		from   models.ReservationStatus
		refund *models.RefundObligation
		actor  string
		reason string
	)

	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		cur, err := tx.Reservations.GetByIDForUpdate(ctx, in.ReservationID)
		if err != nil {
			return err
		}
		if cur == nil {
			return ErrReservationNotFound
		}
		from = cur.Status
		if !cur.Status.CanTransitionTo(in.Target) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, in.Target)
		}

		now := s.now().UTC()
		fields := map[string]any{
			"status":     in.Target,
			"updated_at": now,
		}

		switch in.Target {
		case models.StatusConfirmed:
			fields["confirmed_at"] = now
		case models.StatusCancelled:
			actor = strings.TrimSpace(in.CancelledBy)
			if actor == "" {
				actor = systemActor
			}
			reason = sanitizeReason(in.Reason)
			fields["cancelled_at"] = now
			fields["cancelled_by"] = actor
			if reason != "" {
				fields["cancel_reason"] = reason
			}

			if cur.PaymentStatus.IsSettled() {
				fields["payment_status"] = models.PaymentRefunded
				refund = &models.RefundObligation{
					ReservationID: cur.ID,
					AmountCents:   cur.TotalPriceCents,
					CurrencyCode:  cur.CurrencyCode,
					Status:        models.RefundPending,
					CreatedAt:     now,
					UpdatedAt:     now,
				}
				if reason != "" {
					refund.Reason = &reason
				}
				if err := tx.Refunds.Create(ctx, refund); err != nil {
					return fmt.Errorf("record refund obligation: %w", err)
				}
			}
		}

		if err := tx.Reservations.UpdateFields(ctx, cur.ID, fields); err != nil {
			return err
		}

		updated, err := tx.Reservations.GetByID(ctx, cur.ID)
		if err != nil {
			return err
		}
		res = updated
		return nil
	})
	if err != nil {
		if !isClientError(err) {
			s.log.Error("Failed to change reservation status",
				zap.Stringer("id", in.ReservationID),
				zap.String("target", string(in.Target)),
				zap.Error(err),
			)
		}
		return nil, err
	}

	s.log.Info("Reservation status changed",
		zap.Stringer("id", res.ID),
		zap.String("from", string(from)),
		zap.String("to", string(res.Status)),
		zap.String("payment_status", string(res.PaymentStatus)),
	)

	s.publishStatusChange(ctx, res, from, actor, reason, refund)
	return res, nil
}

func (s *bookingService) publishStatusChange(ctx context.Context, res *models.Reservation, from models.ReservationStatus, actor, reason string, refund *models.RefundObligation) {
	if s.events == nil {
		return
	}

	if err := s.events.PublishStatusChanged(ctx, ReservationStatusChangedEvent{
		ReservationID: res.ID,
		Reference:     res.Reference,
		From:          from,
		To:            res.Status,
		PaymentStatus: res.PaymentStatus,
		CancelledBy:   actor,
		Reason:        reason,
		ChangedAt:     res.UpdatedAt,
	}); err != nil {
		s.log.Warn("publish status change failed", zap.Stringer("id", res.ID), zap.Error(err))
	}

	if refund == nil {
		return
	}
	// Если событие потеряется, запись refund_obligations остаётся источником истины для платёжного сервиса.
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

func sanitizeReason(reason string) string {
	r := strings.TrimSpace(reason)
	// лимит в символах, как у max=500 в HTTP-биндинге
	if runes := []rune(r); len(runes) > maxReasonLength {
		r = string(runes[:maxReasonLength])
	}
	return r
}
