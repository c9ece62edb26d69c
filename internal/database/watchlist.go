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

const watchlistColumns = `id, user_id, symbol, name, sector, current_price, day_change,
	       day_change_percent, target_price, stop_loss, notes, added_at, updated_at`

// CreateWatchlistEntry adds a symbol to a user's watchlist
func (db *DB) CreateWatchlistEntry(w *models.WatchlistEntry) error {
	query := `
		INSERT INTO watchlist (
			user_id, symbol, name, sector, current_price, day_change, day_change_percent,
			target_price, stop_loss, notes, added_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	now := time.Now()
	err := db.conn.QueryRow(query,
		w.UserID, w.Symbol, w.Name, nullString(w.Sector), w.CurrentPrice, w.DayChange, w.DayChangePercent,
		nullDecimal(w.TargetPrice), nullDecimal(w.StopLoss), nullString(w.Notes), now, now,
	).Scan(&w.ID)

	if isUniqueViolation(err) {
		return apperrors.DuplicateWatch(w.Symbol)
	}
	if err != nil {
		return fmt.Errorf("failed to create watchlist entry: %w", err)
	}
	w.AddedAt = now
	w.UpdatedAt = now
	return nil
}

// GetWatchlist retrieves a user's watchlist ordered by symbol
func (db *DB) GetWatchlist(userID uuid.UUID) ([]*models.WatchlistEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM watchlist
		WHERE user_id = $1
		ORDER BY symbol ASC
	`, watchlistColumns)
	return db.scanWatchlist(db.conn.Query(query, userID))
}

// GetWatchlistEntry retrieves one watchlist entry by symbol
func (db *DB) GetWatchlistEntry(userID uuid.UUID, symbol string) (*models.WatchlistEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM watchlist
		WHERE user_id = $1 AND symbol = $2
	`, watchlistColumns)
	w, err := scanWatchlistEntry(db.conn.QueryRow(query, userID, symbol))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("watchlist entry", symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get watchlist entry: %w", err)
	}
	return w, nil
}

// UpdateWatchlistEntry writes back edits or refreshed quote fields
func (db *DB) UpdateWatchlistEntry(w *models.WatchlistEntry) error {
	query := `
		UPDATE watchlist SET
			name = $3, sector = $4, current_price = $5, day_change = $6, day_change_percent = $7,
			target_price = $8, stop_loss = $9, notes = $10, updated_at = $11
		WHERE user_id = $1 AND symbol = $2
	`
	w.UpdatedAt = time.Now()
	result, err := db.conn.Exec(query,
		w.UserID, w.Symbol,
		w.Name, nullString(w.Sector), w.CurrentPrice, w.DayChange, w.DayChangePercent,
		nullDecimal(w.TargetPrice), nullDecimal(w.StopLoss), nullString(w.Notes), w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update watchlist entry: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return apperrors.NotFound("watchlist entry", w.Symbol)
	}
	return nil
}

// DeleteWatchlistEntry removes a symbol from a user's watchlist
func (db *DB) DeleteWatchlistEntry(userID uuid.UUID, symbol string) error {
	result, err := db.conn.Exec(`DELETE FROM watchlist WHERE user_id = $1 AND symbol = $2`, userID, symbol)
	if err != nil {
		return fmt.Errorf("failed to delete watchlist entry: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return apperrors.NotFound("watchlist entry", symbol)
	}
	return nil
}

// WatchlistBySymbol returns every user's watchlist entry for one symbol, for
// fan-out of a refreshed quote.
func (db *DB) WatchlistBySymbol(symbol string) ([]*models.WatchlistEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM watchlist
		WHERE symbol = $1
	`, watchlistColumns)
	return db.scanWatchlist(db.conn.Query(query, symbol))
}

func (db *DB) scanWatchlist(rows *sql.Rows, err error) ([]*models.WatchlistEntry, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	defer rows.Close()

	var entries []*models.WatchlistEntry
	for rows.Next() {
		w, err := scanWatchlistEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan watchlist entry: %w", err)
		}
		entries = append(entries, w)
	}
	return entries, nil
}

func scanWatchlistEntry(row rowScanner) (*models.WatchlistEntry, error) {
	var w models.WatchlistEntry
	var sector, notes sql.NullString
	var targetPrice, stopLoss decimal.NullDecimal

	err := row.Scan(
		&w.ID, &w.UserID, &w.Symbol, &w.Name, &sector, &w.CurrentPrice, &w.DayChange,
		&w.DayChangePercent, &targetPrice, &stopLoss, &notes, &w.AddedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if sector.Valid {
		w.Sector = sector.String
	}
	if notes.Valid {
		w.Notes = notes.String
	}
	if targetPrice.Valid {
		w.TargetPrice = &targetPrice.Decimal
	}
	if stopLoss.Valid {
		w.StopLoss = &stopLoss.Decimal
	}
	return &w, nil
}
