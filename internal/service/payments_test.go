package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"booking-service/internal/models"
)

func TestRecordPayment(t *testing.T) {
	f := setupFixture(t)
	events := &MockEventBus{}
	svc := newTestService(f.repo, &MockLocker{}, events, time.Time{})
	ctx := context.Background()

	res, err := svc.CreateReservation(ctx, f.input(date(2024, 2, 1), date(2024, 2, 3)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.RecordPayment(ctx, RecordPaymentInput{ReservationID: res.ID, Status: models.PaymentRefunded}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("refunded from outside: %v", err)
	}

	failed, err := svc.RecordPayment(ctx, RecordPaymentInput{ReservationID: res.ID, Status: models.PaymentFailed})
	if err != nil || failed.PaymentStatus != models.PaymentFailed {
		t.Fatalf("failed payment: %v %v", failed, err)
	}

	paid, err := svc.RecordPayment(ctx, RecordPaymentInput{ReservationID: res.ID, Status: models.PaymentPaid})
	if err != nil || paid.PaymentStatus != models.PaymentPaid || paid.Status != models.StatusReserved {
		t.Fatalf("paid: %v %v", paid, err)
	}

	again, err := svc.RecordPayment(ctx, RecordPaymentInput{ReservationID: res.ID, Status: models.PaymentPaid})
	if err != nil || again.PaymentStatus != models.PaymentPaid {
		t.Fatalf("redelivery must be a no-op: %v %v", again, err)
	}

	if _, err := svc.RecordPayment(ctx, RecordPaymentInput{ReservationID: res.ID, Status: models.PaymentFailed}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("paid -> failed: %v", err)
	}
	if len(events.Refunds) != 0 {
		t.Fatal("no refund expected for an open reservation")
	}
}

func TestRecordPayment_AfterExpiryRefunds(t *testing.T) {
	f := setupFixture(t)
	events := &MockEventBus{}
	svc := newTestService(f.repo, &MockLocker{}, events, time.Time{})
	ctx := context.Background()

	res, err := svc.CreateReservation(ctx, f.input(date(2024, 2, 1), date(2024, 2, 3)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.ChangeStatus(ctx, ChangeStatusInput{ReservationID: res.ID, Target: models.StatusExpired}); err != nil {
		t.Fatalf("expire: %v", err)
	}

	got, err := svc.RecordPayment(ctx, RecordPaymentInput{ReservationID: res.ID, Status: models.PaymentSuccess})
	if err != nil {
		t.Fatalf("late payment: %v", err)
	}
	if got.PaymentStatus != models.PaymentRefunded || got.Status != models.StatusExpired {
		t.Fatalf("late payment: status=%s payment=%s", got.Status, got.PaymentStatus)
	}
	refund, err := f.repo.Refunds.GetByReservation(ctx, res.ID)
	if err != nil || refund == nil || refund.AmountCents != res.TotalPriceCents {
		t.Fatalf("refund obligation: %v %v", refund, err)
	}
	if len(events.Refunds) != 1 {
		t.Fatalf("refund events = %d", len(events.Refunds))
	}

	// повторная доставка не создаёт второй возврат
	if _, err := svc.RecordPayment(ctx, RecordPaymentInput{ReservationID: res.ID, Status: models.PaymentSuccess}); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if len(events.Refunds) != 1 {
		t.Fatal("redelivery must not request a second refund")
	}
}
