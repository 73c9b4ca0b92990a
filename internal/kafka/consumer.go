package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/trogers1052/stock-price-alerts/internal/models"
)

// WatchlistRepository defines the watchlist operations driven by commands
type WatchlistRepository interface {
	AddMonitoredStock(ctx context.Context, m *models.MonitoredStock) error
	RemoveMonitoredStock(ctx context.Context, symbol string) error
}

// MessageReader is the subset of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer applies watchlist commands from Kafka. The monitor picks up the
// change on its next price cycle.
type Consumer struct {
	reader MessageReader
	topic  string
	repo   WatchlistRepository
	logger *slog.Logger
}

// NewConsumer creates a new Kafka consumer for watchlist commands
func NewConsumer(brokers []string, topic, groupID string, repo WatchlistRepository, logger *slog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})
	return NewConsumerWithReader(reader, topic, repo, logger)
}

// NewConsumerWithReader creates a consumer on top of an existing reader.
func NewConsumerWithReader(r MessageReader, topic string, repo WatchlistRepository, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{reader: r, topic: topic, repo: repo, logger: logger}
}

// Start consumes messages until ctx is cancelled. Bad messages are logged
// and skipped.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("starting kafka consumer", "topic", c.topic)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("kafka consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.Info("kafka consumer shutting down")
					return c.reader.Close()
				}
				c.logger.Error("error reading message", "error", err)
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				c.logger.Error("error processing message",
					"partition", msg.Partition, "offset", msg.Offset, "error", err)
			}
		}
	}
}

// processMessage handles a single Kafka message
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	c.logger.Debug("received message",
		"partition", msg.Partition, "offset", msg.Offset, "key", string(msg.Key))

	var event models.WatchlistEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal watchlist event: %w", err)
	}

	symbol := strings.ToUpper(strings.TrimSpace(event.Symbol))
	if symbol == "" {
		return fmt.Errorf("watchlist event %s has no symbol", event.EventType)
	}

	switch event.EventType {
	case models.EventWatchlistAdd:
		if err := c.repo.AddMonitoredStock(ctx, &models.MonitoredStock{Symbol: symbol, Notes: event.Notes}); err != nil {
			return fmt.Errorf("failed to add %s to watchlist: %w", symbol, err)
		}
		c.logger.Info("added to watchlist", "symbol", symbol)
	case models.EventWatchlistRemove:
		if err := c.repo.RemoveMonitoredStock(ctx, symbol); err != nil {
			return fmt.Errorf("failed to remove %s from watchlist: %w", symbol, err)
		}
		c.logger.Info("removed from watchlist", "symbol", symbol)
	default:
		c.logger.Debug("ignoring event type", "event_type", event.EventType)
	}
	return nil
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
