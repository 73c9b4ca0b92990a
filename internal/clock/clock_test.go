package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeClock(t *testing.T) {
	start := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)

	t.Run("Sleep advances time and records durations", func(t *testing.T) {
		fc := NewFake(start)
		require.NoError(t, fc.Sleep(context.Background(), 12*time.Second))
		require.NoError(t, fc.Sleep(context.Background(), 0))

		assert.Equal(t, start.Add(12*time.Second), fc.Now())
		assert.Equal(t, []time.Duration{12 * time.Second, 0}, fc.Sleeps())
	})

	t.Run("Sleep honors cancelled context", func(t *testing.T) {
		fc := NewFake(start)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := fc.Sleep(ctx, time.Minute)
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, start, fc.Now())
	})

	t.Run("OnSleep hook sees new time", func(t *testing.T) {
		fc := NewFake(start)
		var seen time.Time
		fc.OnSleep = func(now time.Time) { seen = now }

		require.NoError(t, fc.Sleep(context.Background(), time.Minute))
		assert.Equal(t, start.Add(time.Minute), seen)
	})
}

func TestRealClockSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Real{}.Sleep(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
}
