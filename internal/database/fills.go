package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jmcnair/stockfolio/internal/models"
)

// CreateTradeFill inserts a broker fill for audit
func (db *DB) CreateTradeFill(f *models.TradeFill) error {
	query := `
		INSERT INTO trade_fills (
			user_id, order_id, source, symbol, side, quantity, price, executed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	now := time.Now()
	err := db.conn.QueryRow(query,
		f.UserID, f.OrderID, f.Source, f.Symbol, f.Side, f.Quantity, f.Price, f.ExecutedAt, now,
	).Scan(&f.ID)

	if err != nil {
		return fmt.Errorf("failed to create trade fill: %w", err)
	}
	f.CreatedAt = now
	return nil
}

// TradeFillExists checks whether a fill with the given order_id and source
// was already ingested.
func (db *DB) TradeFillExists(orderID, source string) (bool, error) {
	var exists bool
	err := db.conn.QueryRow(
		`SELECT EXISTS(SELECT 1 FROM trade_fills WHERE order_id = $1 AND source = $2)`,
		orderID, source,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check trade fill existence: %w", err)
	}
	return exists, nil
}

// GetTradeFillsBySymbol retrieves a user's recent fills for a symbol
func (db *DB) GetTradeFillsBySymbol(userID uuid.UUID, symbol string, limit int) ([]*models.TradeFill, error) {
	query := `
		SELECT id, user_id, order_id, source, symbol, side, quantity, price, executed_at, created_at
		FROM trade_fills
		WHERE user_id = $1 AND symbol = $2
		ORDER BY executed_at DESC
		LIMIT $3
	`
	rows, err := db.conn.Query(query, userID, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade fills: %w", err)
	}
	defer rows.Close()

	var fills []*models.TradeFill
	for rows.Next() {
		var f models.TradeFill
		err := rows.Scan(
			&f.ID, &f.UserID, &f.OrderID, &f.Source, &f.Symbol, &f.Side,
			&f.Quantity, &f.Price, &f.ExecutedAt, &f.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade fill: %w", err)
		}
		fills = append(fills, &f)
	}
	return fills, nil
}
