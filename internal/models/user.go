package models

import (
	"time"

	"github.com/google/uuid"
)

// User owns one portfolio. Authentication lives in the API layer; rows here
// exist so holdings, watchlist entries and closed positions can cascade on
// user deletion.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
