package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/jmcnair/stockfolio/internal/apperrors"
	"github.com/jmcnair/stockfolio/internal/models"
)

const holdingColumns = `id, user_id, symbol, name, sector, quantity, buy_price, current_price,
	       invested, current_value, pl, pl_percent, day_change, day_change_percent,
	       target_price, stop_loss, purchase_date, version, last_updated, created_at`

// CreateHolding inserts a new open position. The (user_id, symbol) unique
// constraint turns a second insert of the same symbol into DuplicateTicker;
// callers route that case through average-in instead.
func (db *DB) CreateHolding(h *models.Holding) error {
	query := `
		INSERT INTO holdings (
			user_id, symbol, name, sector, quantity, buy_price, current_price,
			invested, current_value, pl, pl_percent, day_change, day_change_percent,
			target_price, stop_loss, purchase_date, version, last_updated, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id
	`
	now := time.Now()
	err := db.conn.QueryRow(query,
		h.UserID, h.Symbol, h.Name, nullString(h.Sector), h.Quantity, h.BuyPrice, h.CurrentPrice,
		h.Invested, h.CurrentValue, h.Pl, h.PlPercent, h.DayChange, h.DayChangePercent,
		nullDecimal(h.TargetPrice), nullDecimal(h.StopLoss), h.PurchaseDate, 1, now, now,
	).Scan(&h.ID)

	if isUniqueViolation(err) {
		return apperrors.DuplicateTicker(h.Symbol)
	}
	if err != nil {
		return fmt.Errorf("failed to create holding: %w", err)
	}
	h.Version = 1
	h.LastUpdated = now
	h.CreatedAt = now
	return nil
}

// GetHoldings retrieves all open positions for a user
func (db *DB) GetHoldings(userID uuid.UUID) ([]*models.Holding, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM holdings
		WHERE user_id = $1
		ORDER BY symbol ASC
	`, holdingColumns)
	return db.scanHoldings(db.conn.Query(query, userID))
}

// GetHoldingBySymbol retrieves one user's open position for a symbol
func (db *DB) GetHoldingBySymbol(userID uuid.UUID, symbol string) (*models.Holding, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM holdings
		WHERE user_id = $1 AND symbol = $2
	`, holdingColumns)
	h, err := scanHolding(db.conn.QueryRow(query, userID, symbol))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("holding", symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get holding: %w", err)
	}
	return h, nil
}

// UpdateHolding writes a holding back with an optimistic version check. A
// stale version means another writer (user edit or quote refresh) got there
// first; the caller decides whether to retry or surface the conflict.
func (db *DB) UpdateHolding(h *models.Holding) error {
	query := `
		UPDATE holdings SET
			name = $4, sector = $5, quantity = $6, buy_price = $7, current_price = $8,
			invested = $9, current_value = $10, pl = $11, pl_percent = $12,
			day_change = $13, day_change_percent = $14, target_price = $15, stop_loss = $16,
			purchase_date = $17, version = version + 1, last_updated = $18
		WHERE user_id = $1 AND symbol = $2 AND version = $3
	`
	now := time.Now()
	result, err := db.conn.Exec(query,
		h.UserID, h.Symbol, h.Version,
		h.Name, nullString(h.Sector), h.Quantity, h.BuyPrice, h.CurrentPrice,
		h.Invested, h.CurrentValue, h.Pl, h.PlPercent,
		h.DayChange, h.DayChangePercent, nullDecimal(h.TargetPrice), nullDecimal(h.StopLoss),
		h.PurchaseDate, now,
	)
	if err != nil {
		return fmt.Errorf("failed to update holding: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		// Distinguish a missing row from a stale version.
		var exists bool
		if err := db.conn.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM holdings WHERE user_id = $1 AND symbol = $2)`,
			h.UserID, h.Symbol,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check holding existence: %w", err)
		}
		if exists {
			return apperrors.ConcurrentModification(h.Symbol)
		}
		return apperrors.NotFound("holding", h.Symbol)
	}

	h.Version++
	h.LastUpdated = now
	return nil
}

// DeleteHolding removes an open position without recording a sale
func (db *DB) DeleteHolding(userID uuid.UUID, symbol string) error {
	result, err := db.conn.Exec(`DELETE FROM holdings WHERE user_id = $1 AND symbol = $2`, userID, symbol)
	if err != nil {
		return fmt.Errorf("failed to delete holding: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return apperrors.NotFound("holding", symbol)
	}
	return nil
}

// PromoteWatchlistEntry atomically creates a holding and removes the
// watchlist row for the same symbol. Either both writes land or neither does.
func (db *DB) PromoteWatchlistEntry(userID uuid.UUID, h *models.Holding) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`DELETE FROM watchlist WHERE user_id = $1 AND symbol = $2`, userID, h.Symbol)
	if err != nil {
		return fmt.Errorf("failed to remove watchlist entry: %w", err)
	}
	if rowsAffected, _ := result.RowsAffected(); rowsAffected == 0 {
		return apperrors.NotFound("watchlist entry", h.Symbol)
	}

	now := time.Now()
	err = tx.QueryRow(`
		INSERT INTO holdings (
			user_id, symbol, name, sector, quantity, buy_price, current_price,
			invested, current_value, pl, pl_percent, day_change, day_change_percent,
			target_price, stop_loss, purchase_date, version, last_updated, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id
	`,
		userID, h.Symbol, h.Name, nullString(h.Sector), h.Quantity, h.BuyPrice, h.CurrentPrice,
		h.Invested, h.CurrentValue, h.Pl, h.PlPercent, h.DayChange, h.DayChangePercent,
		nullDecimal(h.TargetPrice), nullDecimal(h.StopLoss), h.PurchaseDate, 1, now, now,
	).Scan(&h.ID)
	if isUniqueViolation(err) {
		return apperrors.DuplicateTicker(h.Symbol)
	}
	if err != nil {
		return fmt.Errorf("failed to create holding: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	h.Version = 1
	h.LastUpdated = now
	h.CreatedAt = now
	return nil
}

// PromoteIntoHolding folds a promoted watchlist entry into an already-open
// position: the holding update (with the optimistic version check) and the
// watchlist delete land in one transaction, so a failure on either side
// leaves both rows as they were.
func (db *DB) PromoteIntoHolding(userID uuid.UUID, h *models.Holding) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	result, err := tx.Exec(`
		UPDATE holdings SET
			name = $4, sector = $5, quantity = $6, buy_price = $7, current_price = $8,
			invested = $9, current_value = $10, pl = $11, pl_percent = $12,
			day_change = $13, day_change_percent = $14, target_price = $15, stop_loss = $16,
			purchase_date = $17, version = version + 1, last_updated = $18
		WHERE user_id = $1 AND symbol = $2 AND version = $3
	`,
		userID, h.Symbol, h.Version,
		h.Name, nullString(h.Sector), h.Quantity, h.BuyPrice, h.CurrentPrice,
		h.Invested, h.CurrentValue, h.Pl, h.PlPercent,
		h.DayChange, h.DayChangePercent, nullDecimal(h.TargetPrice), nullDecimal(h.StopLoss),
		h.PurchaseDate, now,
	)
	if err != nil {
		return fmt.Errorf("failed to update holding: %w", err)
	}
	if rowsAffected, _ := result.RowsAffected(); rowsAffected == 0 {
		var exists bool
		if err := tx.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM holdings WHERE user_id = $1 AND symbol = $2)`,
			userID, h.Symbol,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check holding existence: %w", err)
		}
		if exists {
			return apperrors.ConcurrentModification(h.Symbol)
		}
		return apperrors.NotFound("holding", h.Symbol)
	}

	result, err = tx.Exec(`DELETE FROM watchlist WHERE user_id = $1 AND symbol = $2`, userID, h.Symbol)
	if err != nil {
		return fmt.Errorf("failed to remove watchlist entry: %w", err)
	}
	if rowsAffected, _ := result.RowsAffected(); rowsAffected == 0 {
		return apperrors.NotFound("watchlist entry", h.Symbol)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	h.Version++
	h.LastUpdated = now
	return nil
}

// RecordSale atomically appends a closed position and either updates the
// remaining holding (partial sale) or deletes it (full sale, remaining nil).
// The holding write carries the optimistic version check so a sale racing a
// quote refresh or edit fails cleanly instead of silently losing one side.
func (db *DB) RecordSale(closed *models.ClosedPosition, remaining *models.Holding, priorVersion int64) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	err = tx.QueryRow(`
		INSERT INTO closed_positions (
			user_id, symbol, name, quantity, buy_price, sell_price,
			invested, realized, pl, pl_percent, purchase_date, closed_date,
			holding_period, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`,
		closed.UserID, closed.Symbol, closed.Name, closed.Quantity, closed.BuyPrice, closed.SellPrice,
		closed.Invested, closed.Realized, closed.Pl, closed.PlPercent, closed.PurchaseDate, closed.ClosedDate,
		closed.HoldingPeriod, now,
	).Scan(&closed.ID)
	if err != nil {
		return fmt.Errorf("failed to create closed position: %w", err)
	}

	var result sql.Result
	if remaining == nil {
		result, err = tx.Exec(
			`DELETE FROM holdings WHERE user_id = $1 AND symbol = $2 AND version = $3`,
			closed.UserID, closed.Symbol, priorVersion,
		)
	} else {
		result, err = tx.Exec(`
			UPDATE holdings SET
				quantity = $4, invested = $5, current_value = $6, pl = $7, pl_percent = $8,
				version = version + 1, last_updated = $9
			WHERE user_id = $1 AND symbol = $2 AND version = $3
		`,
			closed.UserID, closed.Symbol, priorVersion,
			remaining.Quantity, remaining.Invested, remaining.CurrentValue, remaining.Pl, remaining.PlPercent,
			now,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to apply sale to holding: %w", err)
	}
	if rowsAffected, _ := result.RowsAffected(); rowsAffected == 0 {
		return apperrors.ConcurrentModification(closed.Symbol)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	closed.CreatedAt = now
	if remaining != nil {
		remaining.Version = priorVersion + 1
		remaining.LastUpdated = now
	}
	return nil
}

// TrackedSymbols returns the distinct symbols across all holdings and
// watchlist entries, for the quote refresher.
func (db *DB) TrackedSymbols() ([]string, error) {
	query := `
		SELECT symbol FROM holdings
		UNION
		SELECT symbol FROM watchlist
		ORDER BY symbol ASC
	`
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get tracked symbols: %w", err)
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
	return symbols, nil
}

// HoldingsBySymbol returns every user's open position for one symbol, for
// fan-out of a refreshed quote.
func (db *DB) HoldingsBySymbol(symbol string) ([]*models.Holding, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM holdings
		WHERE symbol = $1
	`, holdingColumns)
	return db.scanHoldings(db.conn.Query(query, symbol))
}

func (db *DB) scanHoldings(rows *sql.Rows, err error) ([]*models.Holding, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []*models.Holding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	return holdings, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanHolding(row rowScanner) (*models.Holding, error) {
	var h models.Holding
	var sector sql.NullString
	var targetPrice, stopLoss decimal.NullDecimal

	err := row.Scan(
		&h.ID, &h.UserID, &h.Symbol, &h.Name, &sector, &h.Quantity, &h.BuyPrice, &h.CurrentPrice,
		&h.Invested, &h.CurrentValue, &h.Pl, &h.PlPercent, &h.DayChange, &h.DayChangePercent,
		&targetPrice, &stopLoss, &h.PurchaseDate, &h.Version, &h.LastUpdated, &h.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if sector.Valid {
		h.Sector = sector.String
	}
	if targetPrice.Valid {
		h.TargetPrice = &targetPrice.Decimal
	}
	if stopLoss.Valid {
		h.StopLoss = &stopLoss.Decimal
	}
	return &h, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}
