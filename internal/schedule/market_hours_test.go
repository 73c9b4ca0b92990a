package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarketHours(t *testing.T) {
	hours, err := NewMarketHours(true, "09:30", "16:00", eastern)
	require.NoError(t, err)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before open", at(15, 9, 29), false},
		{"at open", at(15, 9, 30), true},
		{"midday", at(15, 12, 0), true},
		{"at close", at(15, 16, 0), true},
		{"one second after close", at(15, 16, 0).Add(time.Second), false},
		{"late in the close minute", at(15, 16, 0).Add(59 * time.Second), false},
		{"one second before open", at(15, 9, 30).Add(-time.Second), false},
		{"after close", at(15, 16, 1), false},
		{"saturday", at(13, 12, 0), false},
		{"sunday", at(14, 12, 0), false},
		{"utc input converted", time.Date(2024, 1, 15, 15, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hours.IsOpen(tt.now))
		})
	}

	t.Run("disabled is always open", func(t *testing.T) {
		disabled, err := NewMarketHours(false, "", "", nil)
		require.NoError(t, err)
		assert.True(t, disabled.IsOpen(at(13, 3, 0)))
	})

	t.Run("invalid window", func(t *testing.T) {
		_, err := NewMarketHours(true, "16:00", "09:30", eastern)
		assert.Error(t, err)
		_, err = NewMarketHours(true, "9am", "16:00", eastern)
		assert.Error(t, err)
	})
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("09:05")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 9, Minute: 5}, tod)
	assert.Equal(t, "09:05", tod.String())

	_, err = ParseTimeOfDay("25:00")
	assert.Error(t, err)
}
