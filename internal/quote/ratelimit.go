package quote

import (
	"context"
	"sync"
	"time"

	"github.com/trogers1052/stock-price-alerts/internal/clock"
)

// Gate enforces a minimum interval between outbound calls. One Gate is shared
// by every ticker because the provider's quota is global.
//
// The mutex is held while waiting so concurrent callers queue up and each
// receives a distinct slot at least MinDelay after the previous one.
type Gate struct {
	clock    clock.Clock
	minDelay time.Duration

	mu       sync.Mutex
	lastCall time.Time
}

// NewGate creates a Gate. A zero minDelay disables waiting but still records
// call times.
func NewGate(c clock.Clock, minDelay time.Duration) *Gate {
	if c == nil {
		c = clock.Real{}
	}
	return &Gate{clock: c, minDelay: minDelay}
}

// Wait blocks until the next call is allowed, records the call time and
// returns it. The slot is consumed whether or not the caller's request
// succeeds.
func (g *Gate) Wait(ctx context.Context) (time.Time, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	if !g.lastCall.IsZero() && g.minDelay > 0 {
		wait := g.lastCall.Add(g.minDelay).Sub(g.clock.Now())
		if wait > 0 {
			if err := g.clock.Sleep(ctx, wait); err != nil {
				return time.Time{}, err
			}
		}
	}

	g.lastCall = g.clock.Now()
	return g.lastCall, nil
}

// LastCall returns the time of the most recent granted slot.
func (g *Gate) LastCall() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastCall
}

// MinDelay returns the configured minimum interval.
func (g *Gate) MinDelay() time.Duration { return g.minDelay }
