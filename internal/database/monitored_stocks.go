package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/trogers1052/stock-price-alerts/internal/models"
)

// AddMonitoredStock adds a symbol to the watchlist, re-enabling it if it
// was removed earlier.
func (db *DB) AddMonitoredStock(ctx context.Context, m *models.MonitoredStock) error {
	query := `
		INSERT INTO monitored_stocks (symbol, enabled, notes, added_at, updated_at)
		VALUES ($1, true, $2, $3, $3)
		ON CONFLICT (symbol) DO UPDATE SET
			enabled = true,
			notes = COALESCE(NULLIF(EXCLUDED.notes, ''), monitored_stocks.notes),
			updated_at = EXCLUDED.updated_at
		RETURNING added_at, updated_at
	`
	m.Symbol = strings.ToUpper(strings.TrimSpace(m.Symbol))
	if m.Symbol == "" {
		return errors.New("symbol is required")
	}

	now := time.Now().UTC()
	err := db.conn.QueryRowContext(ctx, query, m.Symbol, m.Notes, now).Scan(&m.AddedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to add monitored stock: %w", err)
	}
	m.Enabled = true
	return nil
}

// RemoveMonitoredStock disables a symbol. The row is kept so a config seed
// on restart does not bring it back.
func (db *DB) RemoveMonitoredStock(ctx context.Context, symbol string) error {
	query := `UPDATE monitored_stocks SET enabled = false, updated_at = $2 WHERE symbol = $1 AND enabled = true`
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	result, err := db.conn.ExecContext(ctx, query, symbol, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to remove monitored stock: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("monitored stock %s: %w", symbol, ErrNotFound)
	}
	return nil
}

// SeedMonitoredStocks inserts symbols that have never been on the
// watchlist. Existing rows, including removed ones, are left alone.
func (db *DB) SeedMonitoredStocks(ctx context.Context, symbols []string) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO monitored_stocks (symbol, enabled, added_at, updated_at)
		VALUES ($1, true, $2, $2)
		ON CONFLICT (symbol) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	added := 0
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		result, err := stmt.ExecContext(ctx, s, now)
		if err != nil {
			return 0, fmt.Errorf("failed to seed monitored stock %s: %w", s, err)
		}
		n, _ := result.RowsAffected()
		added += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return added, nil
}

// GetMonitoredStockBySymbol retrieves a watchlist entry.
func (db *DB) GetMonitoredStockBySymbol(ctx context.Context, symbol string) (*models.MonitoredStock, error) {
	query := `
		SELECT symbol, enabled, notes, added_at, updated_at
		FROM monitored_stocks
		WHERE symbol = $1
	`
	var m models.MonitoredStock
	var notes sql.NullString

	err := db.conn.QueryRowContext(ctx, query, strings.ToUpper(symbol)).Scan(
		&m.Symbol, &m.Enabled, &notes, &m.AddedAt, &m.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("monitored stock %s: %w", symbol, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get monitored stock: %w", err)
	}
	if notes.Valid {
		m.Notes = notes.String
	}
	return &m, nil
}

// ListMonitoredStocks returns the enabled watchlist ordered by symbol.
func (db *DB) ListMonitoredStocks(ctx context.Context) ([]*models.MonitoredStock, error) {
	query := `
		SELECT symbol, enabled, notes, added_at, updated_at
		FROM monitored_stocks
		WHERE enabled = true
		ORDER BY symbol ASC
	`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query monitored stocks: %w", err)
	}
	defer rows.Close()

	var stocks []*models.MonitoredStock
	for rows.Next() {
		var m models.MonitoredStock
		var notes sql.NullString
		if err := rows.Scan(&m.Symbol, &m.Enabled, &notes, &m.AddedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan monitored stock: %w", err)
		}
		if notes.Valid {
			m.Notes = notes.String
		}
		stocks = append(stocks, &m)
	}
	return stocks, rows.Err()
}

// GetMonitoredSymbols returns just the enabled symbols, ordered by symbol.
func (db *DB) GetMonitoredSymbols(ctx context.Context) ([]string, error) {
	query := `
		SELECT symbol
		FROM monitored_stocks
		WHERE enabled = true
		ORDER BY symbol ASC
	`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get monitored symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}
	return symbols, rows.Err()
}
