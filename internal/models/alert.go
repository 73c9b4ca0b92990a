package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Alert type constants
const (
	AlertTypeScheduled   = "SCHEDULED"
	AlertTypePriceChange = "PRICE_CHANGE"
)

// Notification channel constants
const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"
	ChannelKafka = "kafka"
)

// AlertHistory represents a dispatched alert record
type AlertHistory struct {
	ID                  int             `json:"id"`
	Symbol              string          `json:"symbol,omitempty"`
	AlertType           string          `json:"alert_type"`
	TriggeredValue      decimal.Decimal `json:"triggered_value,omitempty"`
	Message             string          `json:"message,omitempty"`
	NotificationSent    bool            `json:"notification_sent"`
	NotificationChannel string          `json:"notification_channel,omitempty"`
	TriggeredAt         time.Time       `json:"triggered_at"`
}

// AlertEvent is published to Kafka whenever an alert is dispatched
type AlertEvent struct {
	ID            string           `json:"id"`
	EventType     string           `json:"event_type"`
	AlertType     string           `json:"alert_type"`
	Symbol        string           `json:"symbol,omitempty"`
	Subject       string           `json:"subject"`
	Body          string           `json:"body"`
	PercentChange *decimal.Decimal `json:"percent_change,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
}
