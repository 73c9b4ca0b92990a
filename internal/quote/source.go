// Package quote fetches stock quotes through a globally rate-limited,
// retrying gate in front of an external provider.
package quote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/trogers1052/stock-price-alerts/internal/clock"
	"github.com/trogers1052/stock-price-alerts/internal/models"
)

// Provider performs a single quote lookup against an external API.
// Implementations classify failures as TransientError or PermanentError.
//
//go:generate mockgen -package=quote_test -destination=mock_provider_test.go -source=source.go Provider
type Provider interface {
	Name() string
	Quote(ctx context.Context, symbol string) (*models.Quote, error)
}

// Source is the rate-limited, retrying quote fetcher used by the monitor.
type Source struct {
	provider Provider
	gate     *Gate
	policy   RetryPolicy
	clock    clock.Clock
	logger   *slog.Logger
}

// NewSource creates a Source. The gate must be shared by every caller that
// talks to the same provider account.
func NewSource(p Provider, gate *Gate, policy RetryPolicy, c clock.Clock, logger *slog.Logger) *Source {
	if c == nil {
		c = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		provider: p,
		gate:     gate,
		policy:   policy,
		clock:    c,
		logger:   logger,
	}
}

// Fetch returns the current quote for symbol. Transient failures are retried
// up to policy.MaxRetries times; permanent failures return immediately.
// Errors that the provider left unclassified are treated as transient.
func (s *Source) Fetch(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, Permanent(symbol, errors.New("empty symbol"))
	}

	for attempt := 0; ; attempt++ {
		if _, err := s.gate.Wait(ctx); err != nil {
			return nil, fmt.Errorf("failed to acquire rate limit slot for %s: %w", symbol, err)
		}

		q, err := s.provider.Quote(ctx, symbol)
		if err == nil {
			return q, nil
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch %s interrupted: %w", symbol, ctx.Err())
		}
		if IsPermanent(err) {
			return nil, err
		}
		if !IsTransient(err) {
			err = Transient(symbol, err)
		}

		if attempt >= s.policy.MaxRetries {
			s.logger.Warn("quote fetch retries exhausted",
				"symbol", symbol, "provider", s.provider.Name(), "attempts", attempt+1, "error", err)
			return nil, err
		}

		delay := Delay(attempt+1, s.policy)
		s.logger.Info("retrying quote fetch",
			"symbol", symbol, "attempt", attempt+1, "max_retries", s.policy.MaxRetries,
			"delay", delay, "error", err)
		if err := s.clock.Sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("fetch %s interrupted during backoff: %w", symbol, err)
		}
	}
}
