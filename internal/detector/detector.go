// Package detector decides when a ticker's price has moved far enough from
// its baseline to warrant a price-change alert.
package detector

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trogers1052/stock-price-alerts/internal/models"
)

var hundred = decimal.NewFromInt(100)

// DataError reports invalid internal state, such as a zero baseline price.
type DataError struct {
	Symbol string
	Reason string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("invalid data for %s: %s", e.Symbol, e.Reason)
}

// IsDataError reports whether err is or wraps a DataError.
func IsDataError(err error) bool {
	var de *DataError
	return errors.As(err, &de)
}

// Baseline is the reference observation a ticker's next quote is measured
// against.
type Baseline struct {
	Price     decimal.Decimal
	Timestamp time.Time
}

// Decision is the outcome of one evaluation.
type Decision struct {
	Alert         bool
	PercentChange decimal.Decimal
	// Baseline is the reference the quote was measured against.
	Baseline Baseline
}

// Detector holds per-ticker baselines. It is safe for concurrent use.
//
// After an alert the baseline moves to the alerting quote, so the next alert
// needs another threshold-sized move from there rather than from the last
// observed price.
type Detector struct {
	threshold decimal.Decimal

	mu        sync.Mutex
	baselines map[string]Baseline
}

// New creates a Detector. thresholdPercent is compared against the absolute
// percent change; zero alerts on every nonzero move.
func New(thresholdPercent decimal.Decimal) (*Detector, error) {
	if thresholdPercent.IsNegative() {
		return nil, fmt.Errorf("threshold must be >= 0, got %s", thresholdPercent)
	}
	return &Detector{
		threshold: thresholdPercent,
		baselines: make(map[string]Baseline),
	}, nil
}

// Threshold returns the configured threshold percentage.
func (d *Detector) Threshold() decimal.Decimal { return d.threshold }

// Seed sets the baseline for symbol unless one already exists. It reports
// whether the baseline was set.
func (d *Detector) Seed(symbol string, q models.Quote) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.baselines[symbol]; ok {
		return false
	}
	d.baselines[symbol] = Baseline{Price: q.Price, Timestamp: q.Timestamp}
	return true
}

// Baseline returns the current baseline for symbol.
func (d *Detector) Baseline(symbol string) (Baseline, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.baselines[symbol]
	return b, ok
}

// Forget drops the baseline for symbol.
func (d *Detector) Forget(symbol string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.baselines, symbol)
}

// Evaluate compares q against the baseline for symbol.
//
// The first observation seeds the baseline and never alerts. A zero baseline
// yields a DataError; the baseline is then replaced by q when q has a usable
// price so the ticker recovers on its next evaluation.
func (d *Detector) Evaluate(symbol string, q models.Quote) (Decision, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	current := Baseline{Price: q.Price, Timestamp: q.Timestamp}
	base, ok := d.baselines[symbol]
	if !ok {
		d.baselines[symbol] = current
		return Decision{Baseline: current}, nil
	}

	if base.Price.IsZero() {
		if q.Price.IsPositive() {
			d.baselines[symbol] = current
		}
		return Decision{Baseline: base}, &DataError{Symbol: symbol, Reason: "baseline price is zero"}
	}

	pct := q.Price.Sub(base.Price).Div(base.Price).Mul(hundred)
	decision := Decision{PercentChange: pct, Baseline: base}

	if !pct.IsZero() && pct.Abs().GreaterThanOrEqual(d.threshold) {
		decision.Alert = true
		d.baselines[symbol] = current
	}
	return decision, nil
}
