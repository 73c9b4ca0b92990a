package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a single price observation for a ticker. ID is zero until the
// quote is stored; AppendQuote sets it.
type Quote struct {
	ID        int64            `json:"id,omitempty"`
	Symbol    string           `json:"symbol"`
	Price     decimal.Decimal  `json:"price"`
	Volume    *int64           `json:"volume,omitempty"`
	DayHigh   *decimal.Decimal `json:"day_high,omitempty"`
	DayLow    *decimal.Decimal `json:"day_low,omitempty"`
	Timestamp time.Time        `json:"timestamp"`

	// Change and ChangePercent are relative to the previous session close.
	Change        *decimal.Decimal `json:"change,omitempty"`
	ChangePercent *decimal.Decimal `json:"change_percent,omitempty"`
}
