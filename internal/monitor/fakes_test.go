package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/trogers1052/stock-price-alerts/internal/models"
	"github.com/trogers1052/stock-price-alerts/internal/notify"
)

type fakeWatchlist struct {
	mu      sync.Mutex
	symbols []string
	err     error
}

func (f *fakeWatchlist) GetMonitoredSymbols(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]string(nil), f.symbols...), nil
}

func (f *fakeWatchlist) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fetchResult struct {
	q   *models.Quote
	err error
}

// fakeQuotes replays scripted results per symbol; the last entry repeats.
type fakeQuotes struct {
	mu      sync.Mutex
	script  map[string][]fetchResult
	calls   []string
	onFetch func(symbol string)
}

func (f *fakeQuotes) Fetch(ctx context.Context, symbol string) (*models.Quote, error) {
	f.mu.Lock()
	f.calls = append(f.calls, symbol)
	results := f.script[symbol]
	var r fetchResult
	if len(results) > 0 {
		r = results[0]
		if len(results) > 1 {
			f.script[symbol] = results[1:]
		}
	}
	hook := f.onFetch
	f.mu.Unlock()

	if hook != nil {
		hook(symbol)
	}
	return r.q, r.err
}

func (f *fakeQuotes) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeHistory struct {
	mu       sync.Mutex
	quotes   map[string][]models.Quote
	cutoffs  []time.Time
	appendEr error
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{quotes: make(map[string][]models.Quote)}
}

func (f *fakeHistory) AppendQuote(ctx context.Context, q *models.Quote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendEr != nil {
		return f.appendEr
	}
	f.quotes[q.Symbol] = append(f.quotes[q.Symbol], *q)
	return nil
}

func (f *fakeHistory) LatestQuote(ctx context.Context, symbol string) (*models.Quote, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	qs := f.quotes[symbol]
	if len(qs) == 0 {
		return nil, false, nil
	}
	q := qs[len(qs)-1]
	return &q, true, nil
}

func (f *fakeHistory) PruneQuotesOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	var n int64
	for sym, qs := range f.quotes {
		kept := qs[:0]
		for _, q := range qs {
			if q.Timestamp.Before(cutoff) {
				n++
				continue
			}
			kept = append(kept, q)
		}
		f.quotes[sym] = kept
	}
	return n, nil
}

func (f *fakeHistory) count(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.quotes[symbol])
}

type fakeAlerts struct {
	mu      sync.Mutex
	entries []models.AlertHistory
	cutoffs []time.Time
}

func (f *fakeAlerts) CreateAlertHistory(ctx context.Context, a *models.AlertHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *a)
	return nil
}

func (f *fakeAlerts) DeleteAlertHistoryOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return 0, nil
}

func (f *fakeAlerts) Entries() []models.AlertHistory {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.AlertHistory(nil), f.entries...)
}

type recordingDispatcher struct {
	mu       sync.Mutex
	messages []notify.Message
	failing  map[string]error
}

func (d *recordingDispatcher) Send(ctx context.Context, msg notify.Message, channels []string) map[string]notify.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, msg)
	out := make(map[string]notify.Result, len(channels))
	for _, ch := range channels {
		out[ch] = notify.Result{Channel: ch, Err: d.failing[ch]}
	}
	return out
}

func (d *recordingDispatcher) Messages() []notify.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]notify.Message(nil), d.messages...)
}
