package producer

import (
	"context"
	"encoding/json"
	"time"

	"booking-service/internal/service"

	"github.com/segmentio/kafka-go"
)

const (
	EventReservationCreated = "reservation.created"
	EventStatusChanged      = "reservation.status_changed"
	EventRefundRequested    = "reservation.refund_requested"

	writeTimeout = 5 * time.Second
)

// Envelope: общий формат сообщений в топике событий бронирования.
type Envelope struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// BookingEventProducer реализует service.EventBus поверх Kafka. Ключ сообщения: id брони,
// чтобы события одной брони попадали в одну партицию и шли по порядку.
type BookingEventProducer struct {
	writer messageWriter
	now    func() time.Time
}

var _ service.EventBus = (*BookingEventProducer)(nil)

func NewBookingEventProducer(brokers []string, topic string) *BookingEventProducer {
	return newWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	})
}

func newWithWriter(w messageWriter) *BookingEventProducer {
	return &BookingEventProducer{writer: w, now: time.Now}
}

func (p *BookingEventProducer) PublishReservationCreated(ctx context.Context, e service.ReservationCreatedEvent) error {
	return p.publish(ctx, e.ReservationID.String(), EventReservationCreated, e)
}

func (p *BookingEventProducer) PublishStatusChanged(ctx context.Context, e service.ReservationStatusChangedEvent) error {
	return p.publish(ctx, e.ReservationID.String(), EventStatusChanged, e)
}

func (p *BookingEventProducer) PublishRefundRequested(ctx context.Context, e service.RefundRequestedEvent) error {
	return p.publish(ctx, e.ReservationID.String(), EventRefundRequested, e)
}

func (p *BookingEventProducer) publish(ctx context.Context, key, eventType string, payload any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	value, err := json.Marshal(Envelope{
		Type:       eventType,
		OccurredAt: p.now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(eventType)},
		},
	})
}

func (p *BookingEventProducer) Close() error {
	return p.writer.Close()
}
