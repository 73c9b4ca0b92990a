package quote_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/trogers1052/stock-price-alerts/internal/clock"
	"github.com/trogers1052/stock-price-alerts/internal/models"
	"github.com/trogers1052/stock-price-alerts/internal/quote"
)

var testStart = time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC)

func newTestSource(t *testing.T, policy quote.RetryPolicy, minDelay time.Duration) (*quote.Source, *MockProvider, *clock.Fake, *quote.Gate) {
	t.Helper()
	ctrl := gomock.NewController(t)
	provider := NewMockProvider(ctrl)
	provider.EXPECT().Name().Return("mock").AnyTimes()

	fc := clock.NewFake(testStart)
	gate := quote.NewGate(fc, minDelay)
	return quote.NewSource(provider, gate, policy, fc, nil), provider, fc, gate
}

func TestSourceFetch(t *testing.T) {
	policy := quote.RetryPolicy{MaxRetries: 3, Strategy: quote.BackoffFixed, BaseDelay: 5 * time.Second}

	t.Run("returns quote on success", func(t *testing.T) {
		src, provider, _, _ := newTestSource(t, policy, 12*time.Second)
		want := &models.Quote{Symbol: "AAPL", Price: decimal.NewFromFloat(177.25), Timestamp: testStart}
		provider.EXPECT().Quote(gomock.Any(), "AAPL").Return(want, nil).Times(1)

		got, err := src.Fetch(context.Background(), "aapl")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("permanent error is never retried", func(t *testing.T) {
		src, provider, fc, _ := newTestSource(t, policy, 12*time.Second)
		provider.EXPECT().Quote(gomock.Any(), "BOGUS").
			Return(nil, quote.Permanent("BOGUS", errors.New("invalid symbol"))).
			Times(1)

		_, err := src.Fetch(context.Background(), "BOGUS")
		require.Error(t, err)
		assert.True(t, quote.IsPermanent(err))
		assert.Empty(t, fc.Sleeps())
	})

	t.Run("transient error retried exactly max retries times", func(t *testing.T) {
		src, provider, _, _ := newTestSource(t, policy, 0)
		provider.EXPECT().Quote(gomock.Any(), "MSFT").
			Return(nil, quote.Transient("MSFT", errors.New("503"))).
			Times(policy.MaxRetries + 1)

		_, err := src.Fetch(context.Background(), "MSFT")
		require.Error(t, err)
		assert.True(t, quote.IsTransient(err))
	})

	t.Run("zero max retries makes a single attempt", func(t *testing.T) {
		src, provider, _, _ := newTestSource(t, quote.RetryPolicy{}, 0)
		provider.EXPECT().Quote(gomock.Any(), "MSFT").
			Return(nil, quote.Transient("MSFT", errors.New("timeout"))).
			Times(1)

		_, err := src.Fetch(context.Background(), "MSFT")
		assert.True(t, quote.IsTransient(err))
	})

	t.Run("recovers after transient failures", func(t *testing.T) {
		src, provider, fc, _ := newTestSource(t, policy, 0)
		want := &models.Quote{Symbol: "NVDA", Price: decimal.NewFromInt(450)}
		gomock.InOrder(
			provider.EXPECT().Quote(gomock.Any(), "NVDA").Return(nil, quote.Transient("NVDA", errors.New("rate limited"))),
			provider.EXPECT().Quote(gomock.Any(), "NVDA").Return(nil, quote.Transient("NVDA", errors.New("rate limited"))),
			provider.EXPECT().Quote(gomock.Any(), "NVDA").Return(want, nil),
		)

		got, err := src.Fetch(context.Background(), "NVDA")
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, fc.Sleeps())
	})

	t.Run("unclassified errors are retried", func(t *testing.T) {
		src, provider, _, _ := newTestSource(t, quote.RetryPolicy{MaxRetries: 1}, 0)
		provider.EXPECT().Quote(gomock.Any(), "TSLA").Return(nil, errors.New("connection reset")).Times(2)

		_, err := src.Fetch(context.Background(), "TSLA")
		assert.True(t, quote.IsTransient(err))
	})

	t.Run("every attempt consumes a rate limit slot", func(t *testing.T) {
		noBackoff := quote.RetryPolicy{MaxRetries: 2}
		src, provider, fc, gate := newTestSource(t, noBackoff, 12*time.Second)

		var calls []time.Time
		provider.EXPECT().Quote(gomock.Any(), "AMD").
			DoAndReturn(func(ctx context.Context, symbol string) (*models.Quote, error) {
				calls = append(calls, fc.Now())
				return nil, quote.Transient(symbol, errors.New("503"))
			}).
			Times(3)

		_, err := src.Fetch(context.Background(), "AMD")
		require.Error(t, err)
		require.Len(t, calls, 3)
		for i := 1; i < len(calls); i++ {
			assert.GreaterOrEqual(t, calls[i].Sub(calls[i-1]), 12*time.Second)
		}
		assert.Equal(t, calls[2], gate.LastCall())
	})

	t.Run("exponential backoff between attempts", func(t *testing.T) {
		exp := quote.RetryPolicy{MaxRetries: 3, Strategy: quote.BackoffExponential, BaseDelay: time.Second}
		src, provider, fc, _ := newTestSource(t, exp, 0)
		provider.EXPECT().Quote(gomock.Any(), "IBM").Return(nil, quote.Transient("IBM", errors.New("503"))).Times(4)

		_, err := src.Fetch(context.Background(), "IBM")
		require.Error(t, err)
		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, fc.Sleeps())
	})

	t.Run("empty symbol is permanent", func(t *testing.T) {
		src, _, _, _ := newTestSource(t, policy, 0)
		_, err := src.Fetch(context.Background(), "  ")
		assert.True(t, quote.IsPermanent(err))
	})

	t.Run("cancelled context stops before calling provider", func(t *testing.T) {
		src, _, _, _ := newTestSource(t, policy, 0)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := src.Fetch(ctx, "AAPL")
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestErrorClassification(t *testing.T) {
	base := errors.New("boom")

	te := quote.Transient("AAPL", base)
	assert.True(t, quote.IsTransient(te))
	assert.False(t, quote.IsPermanent(te))
	assert.ErrorIs(t, te, base)
	assert.Contains(t, te.Error(), "AAPL")

	pe := quote.Permanent("AAPL", base)
	assert.True(t, quote.IsPermanent(pe))
	assert.False(t, quote.IsTransient(pe))

	wrapped := errors.Join(errors.New("outer"), pe)
	assert.True(t, quote.IsPermanent(wrapped))
}
