package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Event types published by the engine.
const (
	TypeReservationCreated  = "inventory.reservation.created"
	TypeReservationReleased = "inventory.reservation.released"
	TypeConsumptionRecorded = "inventory.consumption.recorded"
	TypeConsumptionReversed = "inventory.consumption.reversed"
	TypeEntityStatusChanged = "inventory.entity.status_changed"
)

// Envelope wraps every published event with an id for consumer-side
// deduplication.
type Envelope struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OrgID      int       `json:"org_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// Producer publishes engine events to Kafka. A nil Producer is valid and
// drops every publish, so services do not care whether a broker is configured.
type Producer struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewProducer(brokers []string, topic string, log *zap.Logger) *Producer {
	if len(brokers) == 0 {
		return nil
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{writer: writer, log: log}
}

// Publish sends one event keyed by the given key. Publishing happens after
// the owning transaction commits; a broker failure is logged, never
// propagated, because the ledger is already the source of truth.
func (p *Producer) Publish(ctx context.Context, eventType string, orgID int, key string, payload any) {
	if p == nil {
		return
	}

	envelope := Envelope{
		ID:         uuid.NewString(),
		Type:       eventType,
		OrgID:      orgID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		p.log.Warn("failed to marshal event", zap.String("type", eventType), zap.Error(err))
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  envelope.OccurredAt,
	})
	if err != nil {
		p.log.Warn("failed to publish event", zap.String("type", eventType), zap.Error(err))
	}
}

func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
