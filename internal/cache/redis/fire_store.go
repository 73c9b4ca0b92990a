// Package redis persists schedule fire state in Redis so a restart on the
// same day does not re-send a scheduled alert.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trogers1052/stock-price-alerts/internal/schedule"
)

var _ schedule.FireStore = (*FireStore)(nil)

// fireTTL outlives a calendar day in any timezone, after which the date can
// no longer match today anyway.
const fireTTL = 48 * time.Hour

// FireStore implements schedule.FireStore.
type FireStore struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewFireStore creates a FireStore. prefix namespaces keys when several
// deployments share one Redis.
func NewFireStore(client *redis.Client, prefix string, logger *slog.Logger) *FireStore {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = "stock-alerts"
	}
	return &FireStore{client: client, prefix: prefix, logger: logger}
}

// Ping checks the connection to the Redis server.
func (s *FireStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *FireStore) key(rule string) string {
	return fmt.Sprintf("%s:schedule:last_fired:%s", s.prefix, rule)
}

// LastFired returns the stored last-fired date for a rule.
func (s *FireStore) LastFired(ctx context.Context, rule string) (string, bool, error) {
	date, err := s.client.Get(ctx, s.key(rule)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get last fired date: %w", err)
	}
	return date, true, nil
}

// MarkFired stores date as the rule's last-fired date.
func (s *FireStore) MarkFired(ctx context.Context, rule, date string) error {
	if err := s.client.Set(ctx, s.key(rule), date, fireTTL).Err(); err != nil {
		s.logger.Error("failed to store last fired date", "rule", rule, "error", err)
		return fmt.Errorf("failed to set last fired date: %w", err)
	}
	return nil
}
