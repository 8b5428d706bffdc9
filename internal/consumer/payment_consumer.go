package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"booking-service/internal/models"
	"booking-service/internal/service"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// PaymentMessage: событие внешнего платёжного сервиса.
type PaymentMessage struct {
	ReservationID string `json:"reservation_id"`
	Status        string `json:"status"`
}

type PaymentRecorder interface {
	RecordPayment(ctx context.Context, in service.RecordPaymentInput) (*models.Reservation, error)
}

const (
	applyAttempts = 3
	applyBackoff  = 500 * time.Millisecond
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPaymentConsumer struct {
	reader   messageReader
	payments PaymentRecorder
	log      *zap.Logger
	backoff  time.Duration
}

func NewKafkaPaymentConsumer(brokers []string, groupID, topic string, payments PaymentRecorder, log *zap.Logger) *KafkaPaymentConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		Topic:             topic,
		MinBytes:          1,
		MaxBytes:          10e6,
		CommitInterval:    time.Second,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	})
	return &KafkaPaymentConsumer{reader: r, payments: payments, log: log, backoff: applyBackoff}
}

func (c *KafkaPaymentConsumer) Run(ctx context.Context) error {
	c.log.Info("kafka payment consumer started")
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			c.log.Error("fetch message", zap.Error(err))
			continue
		}
		c.handle(ctx, m)
		if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.log.Error("commit message", zap.Int64("offset", m.Offset), zap.Error(err))
		}
	}
}

// handle не возвращает ошибок: битые и отклонённые сообщения логируются и коммитятся,
// временные ошибки БД повторяются несколько раз.
func (c *KafkaPaymentConsumer) handle(ctx context.Context, m kafka.Message) {
	var pm PaymentMessage
	if err := json.Unmarshal(m.Value, &pm); err != nil {
		c.log.Error("unmarshal payment message", zap.ByteString("value", m.Value), zap.Error(err))
		return
	}
	id, err := uuid.Parse(pm.ReservationID)
	if err != nil || pm.Status == "" {
		c.log.Warn("invalid payment message", zap.Any("msg", pm))
		return
	}

	in := service.RecordPaymentInput{ReservationID: id, Status: models.PaymentStatus(pm.Status)}
	var res *models.Reservation
	for attempt := 1; ; attempt++ {
		res, err = c.payments.RecordPayment(ctx, in)
		if err == nil || isPermanent(err) || attempt == applyAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.backoff * time.Duration(attempt)):
		}
	}

	switch {
	case err == nil:
		c.log.Info("payment applied",
			zap.Stringer("reservation_id", res.ID),
			zap.String("payment_status", string(res.PaymentStatus)),
		)
	case isPermanent(err):
		c.log.Warn("payment message rejected", zap.String("reservation_id", pm.ReservationID), zap.Error(err))
	default:
		c.log.Error("apply payment failed", zap.String("reservation_id", pm.ReservationID), zap.Error(err))
	}
}

func isPermanent(err error) bool {
	return errors.Is(err, service.ErrNotFound) ||
		errors.Is(err, service.ErrInvalidInput) ||
		errors.Is(err, service.ErrInvalidTransition)
}

func (c *KafkaPaymentConsumer) Close() error { return c.reader.Close() }
