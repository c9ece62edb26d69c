package database

import (
	"fmt"
	"time"

	"github.com/jmcnair/stockfolio/internal/models"
)

// UpsertPricePoint records one daily close for a symbol, replacing any
// earlier value for the same day.
func (db *DB) UpsertPricePoint(p *models.PricePoint) error {
	query := `
		INSERT INTO price_history (symbol, date, close, day_change, day_change_percent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol, date) DO UPDATE SET
			close = EXCLUDED.close,
			day_change = EXCLUDED.day_change,
			day_change_percent = EXCLUDED.day_change_percent
		RETURNING id
	`
	err := db.conn.QueryRow(query,
		p.Symbol, p.Date, p.Close, p.DayChange, p.DayChangePercent, time.Now(),
	).Scan(&p.ID)

	if err != nil {
		return fmt.Errorf("failed to upsert price point: %w", err)
	}
	return nil
}

// UpsertPricePointBatch writes a refresh cycle's closes in one transaction
func (db *DB) UpsertPricePointBatch(points []*models.PricePoint) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO price_history (symbol, date, close, day_change, day_change_percent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol, date) DO UPDATE SET
			close = EXCLUDED.close,
			day_change = EXCLUDED.day_change,
			day_change_percent = EXCLUDED.day_change_percent
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, p := range points {
		_, err := stmt.Exec(p.Symbol, p.Date, p.Close, p.DayChange, p.DayChangePercent, now)
		if err != nil {
			return fmt.Errorf("failed to insert price point for %s: %w", p.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetPriceHistory returns the most recent daily closes for a symbol,
// oldest first, capped at limit rows.
func (db *DB) GetPriceHistory(symbol string, limit int) ([]*models.PricePoint, error) {
	query := `
		SELECT id, symbol, date, close, day_change, day_change_percent, created_at
		FROM (
			SELECT id, symbol, date, close, day_change, day_change_percent, created_at
			FROM price_history
			WHERE symbol = $1
			ORDER BY date DESC
			LIMIT $2
		) recent
		ORDER BY date ASC
	`
	rows, err := db.conn.Query(query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var points []*models.PricePoint
	for rows.Next() {
		var p models.PricePoint
		err := rows.Scan(&p.ID, &p.Symbol, &p.Date, &p.Close, &p.DayChange, &p.DayChangePercent, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price point: %w", err)
		}
		points = append(points, &p)
	}
	return points, nil
}
