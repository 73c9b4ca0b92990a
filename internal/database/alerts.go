package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trogers1052/stock-price-alerts/internal/models"
)

// CreateAlertHistory records a dispatched alert
func (db *DB) CreateAlertHistory(ctx context.Context, h *models.AlertHistory) error {
	query := `
		INSERT INTO alert_history (
			symbol, alert_type, triggered_value, message,
			notification_sent, notification_channel, triggered_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	if h.TriggeredAt.IsZero() {
		h.TriggeredAt = time.Now()
	}
	var symbol interface{}
	if h.Symbol != "" {
		symbol = h.Symbol
	}

	err := db.conn.QueryRowContext(ctx, query,
		symbol, h.AlertType, h.TriggeredValue, h.Message,
		h.NotificationSent, h.NotificationChannel, h.TriggeredAt.UTC(),
	).Scan(&h.ID)
	if err != nil {
		return fmt.Errorf("failed to create alert history: %w", err)
	}
	return nil
}

// GetRecentAlertHistory retrieves the most recent alerts across all symbols
func (db *DB) GetRecentAlertHistory(ctx context.Context, limit int) ([]*models.AlertHistory, error) {
	query := `
		SELECT id, symbol, alert_type, triggered_value, message,
		       notification_sent, notification_channel, triggered_at
		FROM alert_history
		ORDER BY triggered_at DESC, id DESC
		LIMIT $1
	`
	return db.scanAlertHistory(db.conn.QueryContext(ctx, query, limit))
}

// GetAlertHistoryBySymbol retrieves alert history for a symbol
func (db *DB) GetAlertHistoryBySymbol(ctx context.Context, symbol string, limit int) ([]*models.AlertHistory, error) {
	query := `
		SELECT id, symbol, alert_type, triggered_value, message,
		       notification_sent, notification_channel, triggered_at
		FROM alert_history
		WHERE symbol = $1
		ORDER BY triggered_at DESC, id DESC
		LIMIT $2
	`
	return db.scanAlertHistory(db.conn.QueryContext(ctx, query, symbol, limit))
}

func (db *DB) scanAlertHistory(rows *sql.Rows, err error) ([]*models.AlertHistory, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query alert history: %w", err)
	}
	defer rows.Close()

	var history []*models.AlertHistory
	for rows.Next() {
		var h models.AlertHistory
		var symbol, message, notificationChannel sql.NullString
		var triggeredValue decimal.NullDecimal

		err := rows.Scan(
			&h.ID, &symbol, &h.AlertType, &triggeredValue, &message,
			&h.NotificationSent, &notificationChannel, &h.TriggeredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert history: %w", err)
		}

		if symbol.Valid {
			h.Symbol = symbol.String
		}
		if triggeredValue.Valid {
			h.TriggeredValue = triggeredValue.Decimal
		}
		if message.Valid {
			h.Message = message.String
		}
		if notificationChannel.Valid {
			h.NotificationChannel = notificationChannel.String
		}
		h.TriggeredAt = h.TriggeredAt.UTC()

		history = append(history, &h)
	}
	return history, rows.Err()
}

// DeleteAlertHistoryOlderThan deletes alert history before the cutoff
func (db *DB) DeleteAlertHistoryOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM alert_history WHERE triggered_at < $1`
	result, err := db.conn.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old alert history: %w", err)
	}
	return result.RowsAffected()
}
