// Package monitor runs the single control loop that drives scheduled
// alerts, price-change checks and history pruning.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/trogers1052/stock-price-alerts/internal/clock"
	"github.com/trogers1052/stock-price-alerts/internal/detector"
	"github.com/trogers1052/stock-price-alerts/internal/models"
	"github.com/trogers1052/stock-price-alerts/internal/notify"
	"github.com/trogers1052/stock-price-alerts/internal/quote"
	"github.com/trogers1052/stock-price-alerts/internal/schedule"
)

// Watchlist lists the enabled symbols in a stable order.
type Watchlist interface {
	GetMonitoredSymbols(ctx context.Context) ([]string, error)
}

// QuoteFetcher is the rate-limited quote source.
type QuoteFetcher interface {
	Fetch(ctx context.Context, symbol string) (*models.Quote, error)
}

// HistoryStore is the append-only quote history.
type HistoryStore interface {
	AppendQuote(ctx context.Context, q *models.Quote) error
	LatestQuote(ctx context.Context, symbol string) (*models.Quote, bool, error)
	PruneQuotesOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AlertRecorder persists dispatched alerts.
type AlertRecorder interface {
	CreateAlertHistory(ctx context.Context, a *models.AlertHistory) error
	DeleteAlertHistoryOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Dispatcher sends a message to named channels.
type Dispatcher interface {
	Send(ctx context.Context, msg notify.Message, channels []string) map[string]notify.Result
}

// Config holds the loop cadences and alert options.
type Config struct {
	ScheduleInterval   time.Duration
	PriceInterval      time.Duration
	PruneInterval      time.Duration
	Retention          time.Duration
	PriceAlertsEnabled bool
	Channels           []string
	Format             FormatOptions
}

func (c *Config) applyDefaults() {
	if c.ScheduleInterval <= 0 {
		c.ScheduleInterval = time.Minute
	}
	if c.PriceInterval <= 0 {
		c.PriceInterval = 15 * time.Minute
	}
	if c.PruneInterval <= 0 {
		c.PruneInterval = 24 * time.Hour
	}
	if c.Retention <= 0 {
		c.Retention = 90 * 24 * time.Hour
	}
}

// Deps are the loop's collaborators. Alerts may be nil.
type Deps struct {
	Watchlist  Watchlist
	Quotes     QuoteFetcher
	History    HistoryStore
	Alerts     AlertRecorder
	Detector   *detector.Detector
	Schedule   *schedule.Engine
	Hours      schedule.MarketHours
	Dispatcher Dispatcher
	Clock      clock.Clock
}

// CycleReport summarizes one price cycle.
type CycleReport struct {
	Checked  int
	Alerts   int
	Failed   []string
	Degraded []string
	Skipped  bool
}

// Loop is the monitor. Run drives it; the Run* methods execute single
// operations and are exported for tests and manual triggers.
type Loop struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	mu       sync.Mutex
	seeded   map[string]bool
	degraded map[string]error

	inflight sync.WaitGroup

	// nextSchedule is the next schedule check due time while Run is active.
	// Only the Run goroutine touches it.
	nextSchedule time.Time
}

// New creates a Loop.
func New(cfg Config, deps Deps, logger *slog.Logger) *Loop {
	cfg.applyDefaults()
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		cfg:      cfg,
		deps:     deps,
		logger:   logger,
		seeded:   make(map[string]bool),
		degraded: make(map[string]error),
	}
}

// Run executes until ctx is cancelled. Each operation keeps its own next
// due time and the loop sleeps until the earliest one. Cancellation is
// honoured between operations and between tickers, never mid-fetch.
// Run waits for in-flight notifications before returning.
func (l *Loop) Run(ctx context.Context) error {
	now := l.deps.Clock.Now()
	l.nextSchedule = now
	nextPrice := now
	nextPrune := now
	defer func() { l.nextSchedule = time.Time{} }()

	l.logger.Info("monitor started",
		"schedule_interval", l.cfg.ScheduleInterval,
		"price_interval", l.cfg.PriceInterval,
		"price_alerts", l.cfg.PriceAlertsEnabled,
		"channels", strings.Join(l.cfg.Channels, ","))

	for ctx.Err() == nil {
		l.scheduleIfDue(ctx)
		if ctx.Err() != nil {
			break
		}
		now = l.deps.Clock.Now()
		if l.cfg.PriceAlertsEnabled && !now.Before(nextPrice) {
			l.RunPriceCycle(ctx)
			nextPrice = advance(nextPrice, l.cfg.PriceInterval, now)
		}
		if ctx.Err() != nil {
			break
		}
		now = l.deps.Clock.Now()
		if !now.Before(nextPrune) {
			l.Prune(ctx)
			nextPrune = advance(nextPrune, l.cfg.PruneInterval, now)
		}

		wake := l.nextSchedule
		if l.cfg.PriceAlertsEnabled && nextPrice.Before(wake) {
			wake = nextPrice
		}
		if nextPrune.Before(wake) {
			wake = nextPrune
		}
		if d := wake.Sub(l.deps.Clock.Now()); d > 0 {
			if err := l.deps.Clock.Sleep(ctx, d); err != nil {
				break
			}
		}
	}

	l.logger.Info("monitor stopping, waiting for notifications")
	l.inflight.Wait()
	return nil
}

// scheduleIfDue runs a schedule check when one is due. The price cycle calls
// it between tickers, so a long cycle delays a scheduled alert by at most one
// fetch. Outside Run it does nothing.
func (l *Loop) scheduleIfDue(ctx context.Context) {
	if l.nextSchedule.IsZero() {
		return
	}
	now := l.deps.Clock.Now()
	if now.Before(l.nextSchedule) {
		return
	}
	l.RunScheduleCheck(ctx, now)
	l.nextSchedule = advance(l.nextSchedule, l.cfg.ScheduleInterval, now)
}

// advance returns the next due time after prev. Missed slots are skipped
// rather than replayed.
func advance(prev time.Time, interval time.Duration, now time.Time) time.Time {
	next := prev.Add(interval)
	if !next.After(now) {
		next = now.Add(interval)
	}
	return next
}

// RunScheduleCheck dispatches one notification per rule that fired. The
// watchlist is loaded before the engine is consulted, so a watchlist error
// leaves the rules pending for the next check.
func (l *Loop) RunScheduleCheck(ctx context.Context, now time.Time) []schedule.Fired {
	if l.deps.Schedule == nil {
		return nil
	}
	symbols, err := l.deps.Watchlist.GetMonitoredSymbols(ctx)
	if err != nil {
		l.logger.Error("failed to load watchlist, scheduled alerts stay pending", "error", err)
		return nil
	}

	fired := l.deps.Schedule.Check(ctx, now)
	if len(fired) == 0 {
		return nil
	}
	if len(symbols) == 0 {
		for _, f := range fired {
			l.logger.Warn("watchlist is empty, skipping scheduled alert", "rule", f.Rule.Key())
		}
		return fired
	}

	quotes := l.currentQuotes(ctx, symbols)
	for _, f := range fired {
		l.logger.Info("sending scheduled alert", "rule", f.Rule.Key(), "date", f.Date)
		l.dispatch(ctx, FormatScheduled(f.Rule, symbols, quotes, l.cfg.Format))
	}
	return fired
}

// currentQuotes fetches a fresh quote per symbol through the shared source
// and stores it. The latest stored quote stands in when a fetch fails or
// shutdown has been requested.
func (l *Loop) currentQuotes(ctx context.Context, symbols []string) map[string]*models.Quote {
	fetchCtx := context.WithoutCancel(ctx)
	out := make(map[string]*models.Quote, len(symbols))

	for _, sym := range symbols {
		if ctx.Err() == nil {
			q, err := l.deps.Quotes.Fetch(fetchCtx, sym)
			if err == nil {
				if err := l.deps.History.AppendQuote(fetchCtx, q); err != nil {
					l.logger.Error("failed to store quote", "symbol", sym, "error", err)
				}
				out[sym] = q
				continue
			}
			l.logger.Warn("quote fetch failed, using stored quote", "symbol", sym, "error", err)
		}

		q, found, err := l.deps.History.LatestQuote(fetchCtx, sym)
		if err != nil {
			l.logger.Warn("failed to load latest quote", "symbol", sym, "error", err)
			continue
		}
		if found {
			out[sym] = q
		}
	}
	return out
}

// RunPriceCycle fetches, stores and evaluates every watchlist symbol once.
// A failure on one symbol never stops the others.
func (l *Loop) RunPriceCycle(ctx context.Context) CycleReport {
	var report CycleReport

	if !l.deps.Hours.IsOpen(l.deps.Clock.Now()) {
		l.logger.Debug("outside market hours, skipping price cycle")
		report.Skipped = true
		return report
	}

	symbols, err := l.deps.Watchlist.GetMonitoredSymbols(ctx)
	if err != nil {
		l.logger.Error("failed to load watchlist", "error", err)
		return report
	}
	l.forgetRemoved(symbols)

	// A started fetch finishes its retries even if shutdown is requested.
	fetchCtx := context.WithoutCancel(ctx)

	for _, sym := range symbols {
		l.scheduleIfDue(ctx)
		if ctx.Err() != nil {
			l.logger.Info("price cycle interrupted", "remaining_from", sym)
			break
		}
		report.Checked++

		l.seedBaseline(fetchCtx, sym)

		q, err := l.deps.Quotes.Fetch(fetchCtx, sym)
		if err != nil {
			report.Failed = append(report.Failed, sym)
			if quote.IsPermanent(err) {
				l.markDegraded(sym, err)
				report.Degraded = append(report.Degraded, sym)
				l.logger.Error("permanent quote failure, symbol degraded", "symbol", sym, "error", err)
			} else {
				l.logger.Warn("quote fetch failed", "symbol", sym, "error", err)
			}
			continue
		}
		l.clearDegraded(sym)

		if err := l.deps.History.AppendQuote(fetchCtx, q); err != nil {
			l.logger.Error("failed to store quote", "symbol", sym, "error", err)
		}

		decision, err := l.deps.Detector.Evaluate(sym, *q)
		if err != nil {
			var de *detector.DataError
			if errors.As(err, &de) {
				l.logger.Warn("skipping symbol with invalid data", "symbol", sym, "reason", de.Reason)
			} else {
				l.logger.Error("failed to evaluate price change", "symbol", sym, "error", err)
			}
			continue
		}
		if !decision.Alert {
			continue
		}

		report.Alerts++
		l.logger.Info("price change alert",
			"symbol", sym,
			"percent_change", decision.PercentChange.StringFixed(2),
			"baseline", decision.Baseline.Price.String(),
			"price", q.Price.String())
		l.dispatch(ctx, FormatPriceAlert(*q, decision, l.cfg.Format))
	}

	l.logger.Debug("price cycle complete",
		"checked", report.Checked, "alerts", report.Alerts, "failed", len(report.Failed))
	return report
}

// Prune removes quote history and alert history older than the retention
// period.
func (l *Loop) Prune(ctx context.Context) {
	cutoff := l.deps.Clock.Now().Add(-l.cfg.Retention)

	n, err := l.deps.History.PruneQuotesOlderThan(ctx, cutoff)
	if err != nil {
		l.logger.Error("failed to prune quote history", "error", err)
	} else if n > 0 {
		l.logger.Info("pruned quote history", "rows", n, "cutoff", cutoff)
	}

	if l.deps.Alerts == nil {
		return
	}
	n, err = l.deps.Alerts.DeleteAlertHistoryOlderThan(ctx, cutoff)
	if err != nil {
		l.logger.Error("failed to prune alert history", "error", err)
	} else if n > 0 {
		l.logger.Info("pruned alert history", "rows", n, "cutoff", cutoff)
	}
}

// Degraded returns the symbols whose last fetch failed permanently, with
// the error.
func (l *Loop) Degraded() map[string]error {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]error, len(l.degraded))
	for k, v := range l.degraded {
		out[k] = v
	}
	return out
}

// Wait blocks until in-flight notifications complete.
func (l *Loop) Wait() { l.inflight.Wait() }

// seedBaseline restores a symbol's baseline from stored history the first
// time it is seen, so a restart keeps measuring from the last observation.
func (l *Loop) seedBaseline(ctx context.Context, sym string) {
	l.mu.Lock()
	done := l.seeded[sym]
	l.seeded[sym] = true
	l.mu.Unlock()
	if done {
		return
	}
	if _, ok := l.deps.Detector.Baseline(sym); ok {
		return
	}

	q, found, err := l.deps.History.LatestQuote(ctx, sym)
	if err != nil {
		l.logger.Warn("failed to load baseline from history", "symbol", sym, "error", err)
		return
	}
	if found && l.deps.Detector.Seed(sym, *q) {
		l.logger.Debug("baseline restored", "symbol", sym, "price", q.Price.String())
	}
}

func (l *Loop) forgetRemoved(symbols []string) {
	current := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		current[s] = true
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for sym := range l.seeded {
		if !current[sym] {
			delete(l.seeded, sym)
			delete(l.degraded, sym)
			l.deps.Detector.Forget(sym)
		}
	}
}

func (l *Loop) markDegraded(sym string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.degraded[sym] = err
}

func (l *Loop) clearDegraded(sym string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.degraded, sym)
}

// dispatch sends msg in the background and records the outcome. The
// dispatcher's per-channel timeout bounds each send.
func (l *Loop) dispatch(ctx context.Context, msg notify.Message) {
	sendCtx := context.WithoutCancel(ctx)
	l.inflight.Add(1)
	go func() {
		defer l.inflight.Done()
		results := l.deps.Dispatcher.Send(sendCtx, msg, l.cfg.Channels)
		l.record(sendCtx, msg, results)
	}()
}

func (l *Loop) record(ctx context.Context, msg notify.Message, results map[string]notify.Result) {
	var sent []string
	for name, res := range results {
		if res.OK() {
			sent = append(sent, name)
		}
	}
	sort.Strings(sent)
	if len(sent) == 0 {
		l.logger.Warn("no notifications were sent", "subject", msg.Subject)
	}

	if l.deps.Alerts == nil {
		return
	}
	entry := &models.AlertHistory{
		Symbol:              msg.Symbol,
		AlertType:           msg.Kind,
		Message:             msg.Body,
		NotificationSent:    len(sent) > 0,
		NotificationChannel: strings.Join(sent, ","),
		TriggeredAt:         l.deps.Clock.Now(),
	}
	if msg.PercentChange != nil {
		entry.TriggeredValue = *msg.PercentChange
	}
	if err := l.deps.Alerts.CreateAlertHistory(ctx, entry); err != nil {
		l.logger.Error("failed to record alert history", "kind", msg.Kind, "error", err)
	}
}
