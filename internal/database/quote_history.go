package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trogers1052/stock-price-alerts/internal/models"
)

const quoteColumns = `id, symbol, price, volume, day_high, day_low, price_change, change_percent, observed_at`

// AppendQuote stores q as a single INSERT, so a shutdown never leaves a
// partial record. The generated ID is written back to q.ID.
func (db *DB) AppendQuote(ctx context.Context, q *models.Quote) error {
	query := `
		INSERT INTO quote_history (symbol, price, volume, day_high, day_low, price_change, change_percent, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := db.conn.QueryRowContext(ctx, query,
		q.Symbol, q.Price, q.Volume,
		nullDecimal(q.DayHigh), nullDecimal(q.DayLow),
		nullDecimal(q.Change), nullDecimal(q.ChangePercent),
		q.Timestamp.UTC(),
	).Scan(&q.ID)
	if err != nil {
		return fmt.Errorf("failed to append quote: %w", err)
	}
	return nil
}

// LatestQuote returns the most recent stored quote for symbol.
func (db *DB) LatestQuote(ctx context.Context, symbol string) (*models.Quote, bool, error) {
	query := `SELECT ` + quoteColumns + `
		FROM quote_history
		WHERE symbol = $1
		ORDER BY observed_at DESC, id DESC
		LIMIT 1
	`
	q, err := scanQuote(db.conn.QueryRowContext(ctx, query, symbol))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get latest quote: %w", err)
	}
	return q, true, nil
}

// QuoteHistory returns quotes for symbol observed at or after since, newest
// first.
func (db *DB) QuoteHistory(ctx context.Context, symbol string, since time.Time) ([]*models.Quote, error) {
	query := `SELECT ` + quoteColumns + `
		FROM quote_history
		WHERE symbol = $1 AND observed_at >= $2
		ORDER BY observed_at DESC, id DESC
	`
	rows, err := db.conn.QueryContext(ctx, query, symbol, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query quote history: %w", err)
	}
	defer rows.Close()

	var quotes []*models.Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate quote history: %w", err)
	}
	return quotes, nil
}

// PruneQuotesOlderThan deletes quotes observed before cutoff.
func (db *DB) PruneQuotesOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM quote_history WHERE observed_at < $1`
	result, err := db.conn.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune quote history: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuote(row rowScanner) (*models.Quote, error) {
	var q models.Quote
	var volume sql.NullInt64
	var high, low, change, changePct decimal.NullDecimal

	if err := row.Scan(&q.ID, &q.Symbol, &q.Price, &volume, &high, &low, &change, &changePct, &q.Timestamp); err != nil {
		return nil, err
	}
	q.Timestamp = q.Timestamp.UTC()
	if volume.Valid {
		v := volume.Int64
		q.Volume = &v
	}
	if high.Valid {
		h := high.Decimal
		q.DayHigh = &h
	}
	if low.Valid {
		l := low.Decimal
		q.DayLow = &l
	}
	if change.Valid {
		c := change.Decimal
		q.Change = &c
	}
	if changePct.Valid {
		p := changePct.Decimal
		q.ChangePercent = &p
	}
	return &q, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
