package service

import (
	"context"
	"time"

	"booking-service/internal/models"

	"github.com/google/uuid"
)

type ReservationCreatedEvent struct {
	ReservationID uuid.UUID  `json:"reservation_id"`
	Reference     string     `json:"reference"`
	PropertyID    uuid.UUID  `json:"property_id"`
	UnitID        *uuid.UUID `json:"unit_id,omitempty"`
	CheckIn       time.Time  `json:"check_in"`
	CheckOut      time.Time  `json:"check_out"`
	TotalCents    int64      `json:"total_cents"`
	Currency      string     `json:"currency"`
	ExpiresAt     time.Time  `json:"expires_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

type ReservationStatusChangedEvent struct {
	ReservationID uuid.UUID                `json:"reservation_id"`
	Reference     string                   `json:"reference"`
	From          models.ReservationStatus `json:"from"`
	To            models.ReservationStatus `json:"to"`
	PaymentStatus models.PaymentStatus     `json:"payment_status"`
	CancelledBy   string                   `json:"cancelled_by,omitempty"`
	Reason        string                   `json:"reason,omitempty"`
	ChangedAt     time.Time                `json:"changed_at"`
}

// RefundRequestedEvent: сигнал внешнему платёжному сервису; сам возврат здесь не исполняется.
type RefundRequestedEvent struct {
	RefundID      uuid.UUID `json:"refund_id"`
	ReservationID uuid.UUID `json:"reservation_id"`
	Reference     string    `json:"reference"`
	AmountCents   int64     `json:"amount_cents"`
	Currency      string    `json:"currency"`
	RequestedAt   time.Time `json:"requested_at"`
}

type EventBus interface {
	PublishReservationCreated(ctx context.Context, e ReservationCreatedEvent) error
	PublishStatusChanged(ctx context.Context, e ReservationStatusChangedEvent) error
	PublishRefundRequested(ctx context.Context, e RefundRequestedEvent) error
}
