package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jmcnair/stockfolio/internal/apperrors"
	"github.com/jmcnair/stockfolio/internal/models"
)

// AppendClosedPosition inserts a completed-sale record. Rows are immutable
// afterwards; the only later mutation is a user delete.
func (db *DB) AppendClosedPosition(c *models.ClosedPosition) error {
	query := `
		INSERT INTO closed_positions (
			user_id, symbol, name, quantity, buy_price, sell_price,
			invested, realized, pl, pl_percent, purchase_date, closed_date,
			holding_period, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`
	now := time.Now()
	err := db.conn.QueryRow(query,
		c.UserID, c.Symbol, c.Name, c.Quantity, c.BuyPrice, c.SellPrice,
		c.Invested, c.Realized, c.Pl, c.PlPercent, c.PurchaseDate, c.ClosedDate,
		c.HoldingPeriod, now,
	).Scan(&c.ID)

	if err != nil {
		return fmt.Errorf("failed to create closed position: %w", err)
	}
	c.CreatedAt = now
	return nil
}

// GetClosedPositions retrieves a user's sale history, newest first
func (db *DB) GetClosedPositions(userID uuid.UUID) ([]*models.ClosedPosition, error) {
	query := `
		SELECT id, user_id, symbol, name, quantity, buy_price, sell_price,
		       invested, realized, pl, pl_percent, purchase_date, closed_date,
		       holding_period, created_at
		FROM closed_positions
		WHERE user_id = $1
		ORDER BY closed_date DESC, id DESC
	`
	rows, err := db.conn.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query closed positions: %w", err)
	}
	defer rows.Close()

	var positions []*models.ClosedPosition
	for rows.Next() {
		var c models.ClosedPosition
		err := rows.Scan(
			&c.ID, &c.UserID, &c.Symbol, &c.Name, &c.Quantity, &c.BuyPrice, &c.SellPrice,
			&c.Invested, &c.Realized, &c.Pl, &c.PlPercent, &c.PurchaseDate, &c.ClosedDate,
			&c.HoldingPeriod, &c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan closed position: %w", err)
		}
		positions = append(positions, &c)
	}
	return positions, nil
}

// DeleteClosedPosition removes one history record owned by the user
func (db *DB) DeleteClosedPosition(userID uuid.UUID, id int) error {
	result, err := db.conn.Exec(`DELETE FROM closed_positions WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete closed position: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return apperrors.NotFound("closed position", fmt.Sprintf("%d", id))
	}
	return nil
}

// RealizedPl sums the realized P&L across a user's sale history
func (db *DB) RealizedPl(userID uuid.UUID) (decimal.Decimal, error) {
	var pl decimal.NullDecimal
	err := db.conn.QueryRow(
		`SELECT SUM(pl) FROM closed_positions WHERE user_id = $1`, userID,
	).Scan(&pl)
	if err != nil && err != sql.ErrNoRows {
		return decimal.Zero, fmt.Errorf("failed to sum realized pl: %w", err)
	}
	if !pl.Valid {
		return decimal.Zero, nil
	}
	return pl.Decimal, nil
}
