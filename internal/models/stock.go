package models

import "time"

// Watchlist command event types
const (
	EventWatchlistAdd    = "WATCHLIST_ADD"
	EventWatchlistRemove = "WATCHLIST_REMOVE"
)

// MonitoredStock represents a ticker on the watchlist
type MonitoredStock struct {
	Symbol    string    `json:"symbol"`
	Enabled   bool      `json:"enabled"`
	Notes     string    `json:"notes,omitempty"`
	AddedAt   time.Time `json:"added_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WatchlistEvent is a Kafka command that mutates the watchlist
type WatchlistEvent struct {
	EventType string    `json:"event_type"`
	Symbol    string    `json:"symbol"`
	Notes     string    `json:"notes,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
