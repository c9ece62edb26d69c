package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jmcnair/stockfolio/internal/apperrors"
	"github.com/jmcnair/stockfolio/internal/models"
)

// CreateUser inserts a user row. Credentials live with the session layer;
// this table only anchors portfolio ownership and cascade deletes.
func (db *DB) CreateUser(u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now()
	_, err := db.conn.Exec(
		`INSERT INTO users (id, email, created_at) VALUES ($1, $2, $3)`,
		u.ID, u.Email, now,
	)
	if isUniqueViolation(err) {
		return apperrors.Validation("email already registered: %s", u.Email)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	u.CreatedAt = now
	return nil
}

// GetUser retrieves a user by ID
func (db *DB) GetUser(id uuid.UUID) (*models.User, error) {
	var u models.User
	err := db.conn.QueryRow(
		`SELECT id, email, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("user", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// DeleteUser removes a user; holdings, watchlist entries and closed
// positions cascade at the schema level.
func (db *DB) DeleteUser(id uuid.UUID) error {
	result, err := db.conn.Exec(`DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return apperrors.NotFound("user", id.String())
	}
	return nil
}
