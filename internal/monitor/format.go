package monitor

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/trogers1052/stock-price-alerts/internal/detector"
	"github.com/trogers1052/stock-price-alerts/internal/models"
	"github.com/trogers1052/stock-price-alerts/internal/notify"
)

// DefaultScheduledSubject is the subject line of scheduled alerts.
const DefaultScheduledSubject = "Stock Price Alert"

// FormatOptions controls the optional parts of a quote line.
type FormatOptions struct {
	IncludeVolume     bool
	IncludeDayHighLow bool
}

// FormatQuote renders q as
// "SYMBOL: $price (+change, +pct%) | Vol: n | H: $high L: $low".
func FormatQuote(q models.Quote, opts FormatOptions) string {
	var b strings.Builder
	b.WriteString(q.Symbol)
	b.WriteString(": $")
	b.WriteString(q.Price.StringFixed(2))

	if q.Change != nil && q.ChangePercent != nil {
		b.WriteString(" (")
		b.WriteString(signed(*q.Change))
		b.WriteString(", ")
		b.WriteString(signed(*q.ChangePercent))
		b.WriteString("%)")
	}

	if opts.IncludeVolume && q.Volume != nil && *q.Volume > 0 {
		b.WriteString(" | Vol: ")
		b.WriteString(groupThousands(*q.Volume))
	}
	if opts.IncludeDayHighLow && q.DayHigh != nil && q.DayLow != nil {
		b.WriteString(" | H: $")
		b.WriteString(q.DayHigh.StringFixed(2))
		b.WriteString(" L: $")
		b.WriteString(q.DayLow.StringFixed(2))
	}
	return b.String()
}

// FormatPriceAlert builds the message for a price-change alert.
func FormatPriceAlert(q models.Quote, d detector.Decision, opts FormatOptions) notify.Message {
	direction := "up"
	if d.PercentChange.IsNegative() {
		direction = "down"
	}
	pct := d.PercentChange
	body := q.Symbol + " is " + direction + " " + d.PercentChange.Abs().StringFixed(2) +
		"% since $" + d.Baseline.Price.StringFixed(2) + "\n" + FormatQuote(q, opts)

	return notify.Message{
		Subject:       "Price Alert: " + q.Symbol,
		Body:          body,
		Kind:          models.AlertTypePriceChange,
		Symbol:        q.Symbol,
		PercentChange: &pct,
	}
}

// FormatScheduled builds a scheduled alert: the rule's message followed by
// one line per symbol. Symbols missing from quotes read "no data".
func FormatScheduled(rule models.ScheduleRule, symbols []string, quotes map[string]*models.Quote, opts FormatOptions) notify.Message {
	lines := make([]string, 0, len(symbols)+1)
	lines = append(lines, rule.Message)
	for _, sym := range symbols {
		if q, ok := quotes[sym]; ok && q != nil {
			lines = append(lines, FormatQuote(*q, opts))
		} else {
			lines = append(lines, sym+": no data")
		}
	}
	return notify.Message{
		Subject: DefaultScheduledSubject,
		Body:    strings.Join(lines, "\n"),
		Kind:    models.AlertTypeScheduled,
	}
}

func signed(d decimal.Decimal) string {
	if d.IsNegative() {
		return d.StringFixed(2)
	}
	return "+" + d.StringFixed(2)
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(s) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(s[:lead])
	for i := lead; i < len(s); i += 3 {
		b.WriteByte(',')
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
