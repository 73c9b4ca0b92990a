package quote

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelay(t *testing.T) {
	tests := []struct {
		name    string
		attempt int
		policy  RetryPolicy
		want    time.Duration
	}{
		{"fixed first retry", 1, RetryPolicy{Strategy: BackoffFixed, BaseDelay: 12 * time.Second}, 12 * time.Second},
		{"fixed third retry", 3, RetryPolicy{Strategy: BackoffFixed, BaseDelay: 12 * time.Second}, 12 * time.Second},
		{"empty strategy is fixed", 4, RetryPolicy{BaseDelay: time.Second}, time.Second},
		{"exponential first retry", 1, RetryPolicy{Strategy: BackoffExponential, BaseDelay: time.Second}, time.Second},
		{"exponential third retry", 3, RetryPolicy{Strategy: BackoffExponential, BaseDelay: time.Second}, 4 * time.Second},
		{"exponential capped", 10, RetryPolicy{Strategy: BackoffExponential, BaseDelay: time.Second, MaxDelay: 30 * time.Second}, 30 * time.Second},
		{"exponential uncapped large attempt", 200, RetryPolicy{Strategy: BackoffExponential, BaseDelay: time.Second}, time.Duration(1<<63 - 1)},
		{"attempt zero", 0, RetryPolicy{Strategy: BackoffFixed, BaseDelay: time.Second}, 0},
		{"zero base delay", 2, RetryPolicy{Strategy: BackoffExponential}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Delay(tt.attempt, tt.policy))
		})
	}
}

func TestRetryPolicyValidate(t *testing.T) {
	assert.NoError(t, DefaultRetryPolicy().Validate())
	assert.NoError(t, RetryPolicy{Strategy: "FIXED"}.Validate())
	assert.Error(t, RetryPolicy{MaxRetries: -1}.Validate())
	assert.Error(t, RetryPolicy{BaseDelay: -time.Second}.Validate())
	assert.Error(t, RetryPolicy{Strategy: "fibonacci"}.Validate())
}
