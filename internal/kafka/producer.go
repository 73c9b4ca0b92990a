package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/trogers1052/stock-price-alerts/internal/models"
	"github.com/trogers1052/stock-price-alerts/internal/notify"
)

// EventAlertTriggered is the event type of published alerts.
const EventAlertTriggered = "ALERT_TRIGGERED"

// MessageWriter is the subset of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes alert events to Kafka. It doubles as the "kafka"
// notification channel.
type Producer struct {
	writer MessageWriter
	topic  string
	now    func() time.Time
}

var _ notify.Channel = (*Producer)(nil)

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return NewProducerWithWriter(writer, topic)
}

// NewProducerWithWriter creates a producer on top of an existing writer.
func NewProducerWithWriter(w MessageWriter, topic string) *Producer {
	return &Producer{writer: w, topic: topic, now: time.Now}
}

// Name implements notify.Channel.
func (p *Producer) Name() string { return models.ChannelKafka }

// Send implements notify.Channel.
func (p *Producer) Send(ctx context.Context, msg notify.Message) error {
	_, err := p.PublishAlert(ctx, msg)
	return err
}

// PublishAlert publishes msg as an AlertEvent keyed by symbol, so events for
// one symbol stay ordered within a partition. It returns the event ID.
func (p *Producer) PublishAlert(ctx context.Context, msg notify.Message) (string, error) {
	event := models.AlertEvent{
		ID:            uuid.NewString(),
		EventType:     EventAlertTriggered,
		AlertType:     msg.Kind,
		Symbol:        msg.Symbol,
		Subject:       msg.Subject,
		Body:          msg.Body,
		PercentChange: msg.PercentChange,
		Timestamp:     p.now().UTC(),
	}
	key := event.Symbol
	if key == "" {
		key = event.AlertType
	}
	return event.ID, p.publish(ctx, key, event)
}

func (p *Producer) publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
