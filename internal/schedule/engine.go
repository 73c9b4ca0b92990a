// Package schedule fires daily wall-clock alerts at most once per rule per
// calendar day and models the market-hours window.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/trogers1052/stock-price-alerts/internal/models"
)

const dateLayout = "2006-01-02"

// FireStore persists last-fired dates so a restart on the same day does not
// fire a rule twice.
type FireStore interface {
	LastFired(ctx context.Context, key string) (date string, ok bool, err error)
	MarkFired(ctx context.Context, key, date string) error
}

// Fired is a scheduled-alert event.
type Fired struct {
	Rule models.ScheduleRule
	Date string
	At   time.Time
}

type ruleState struct {
	rule      models.ScheduleRule
	trigger   TimeOfDay
	lastFired string
}

// Engine tracks the schedule rules. Eligibility is decided only by comparing
// the rule's last-fired date with today's date in the engine's location:
// a rule is Pending-today while they differ and Fired-today once equal.
type Engine struct {
	loc    *time.Location
	hours  MarketHours
	store  FireStore
	logger *slog.Logger

	mu    sync.Mutex
	rules []*ruleState
}

// NewEngine validates rules and builds an Engine. store may be nil, in which
// case fire state lives only in memory.
func NewEngine(rules []models.ScheduleRule, loc *time.Location, hours MarketHours, store FireStore, logger *slog.Logger) (*Engine, error) {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{loc: loc, hours: hours, store: store, logger: logger}
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		trigger, err := ParseTimeOfDay(r.Time)
		if err != nil {
			return nil, fmt.Errorf("schedule rule %q: %w", r.Key(), err)
		}
		if seen[r.Key()] {
			return nil, fmt.Errorf("duplicate schedule rule %q", r.Key())
		}
		seen[r.Key()] = true
		e.rules = append(e.rules, &ruleState{rule: r, trigger: trigger})
	}
	return e, nil
}

// Restore loads persisted last-fired dates. Rules without a stored date
// stay Pending-today.
func (e *Engine) Restore(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, rs := range e.rules {
		date, ok, err := e.store.LastFired(ctx, rs.rule.Key())
		if err != nil {
			return fmt.Errorf("failed to restore fire state for %q: %w", rs.rule.Key(), err)
		}
		if ok {
			rs.lastFired = date
		}
	}
	return nil
}

// Check returns the rules whose trigger time has passed today and that have
// not fired yet today, marking them Fired-today.
//
// Market hours are judged at the rule's trigger time, not at now, so a check
// that runs late still fires a rule whose trigger fell inside the window. A
// rule triggering outside the window is marked without being emitted, so no
// catch-up fire happens when the market opens.
func (e *Engine) Check(ctx context.Context, now time.Time) []Fired {
	local := now.In(e.loc)
	today := local.Format(dateLayout)
	tod := Of(local)

	e.mu.Lock()
	var fired []Fired
	var marked []*ruleState
	for _, rs := range e.rules {
		if tod.Before(rs.trigger) || rs.lastFired == today {
			continue
		}
		rs.lastFired = today
		marked = append(marked, rs)
		due := time.Date(local.Year(), local.Month(), local.Day(), rs.trigger.Hour, rs.trigger.Minute, 0, 0, e.loc)
		if !e.hours.IsOpen(due) {
			e.logger.Debug("scheduled alert suppressed outside market hours",
				"rule", rs.rule.Key(), "date", today)
			continue
		}
		fired = append(fired, Fired{Rule: rs.rule, Date: today, At: now})
	}
	e.mu.Unlock()

	if e.store != nil {
		for _, rs := range marked {
			if err := e.store.MarkFired(ctx, rs.rule.Key(), today); err != nil {
				e.logger.Warn("failed to persist schedule fire state",
					"rule", rs.rule.Key(), "error", err)
			}
		}
	}
	return fired
}

// LastFired returns the last-fired date for the rule with key.
func (e *Engine) LastFired(key string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, rs := range e.rules {
		if rs.rule.Key() == key {
			return rs.lastFired
		}
	}
	return ""
}

// SetLastFired overrides the last-fired date for the rule with key.
func (e *Engine) SetLastFired(key, date string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, rs := range e.rules {
		if rs.rule.Key() == key {
			rs.lastFired = date
		}
	}
}

// Rules returns the configured rules in order.
func (e *Engine) Rules() []models.ScheduleRule {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.ScheduleRule, len(e.rules))
	for i, rs := range e.rules {
		out[i] = rs.rule
	}
	return out
}

// Location returns the engine's timezone.
func (e *Engine) Location() *time.Location { return e.loc }
