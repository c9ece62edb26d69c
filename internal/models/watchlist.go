package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WatchlistEntry represents a tracked-but-unowned ticker. It carries no
// quantity or cost basis; price fields are refreshed from the quote provider.
type WatchlistEntry struct {
	ID               int              `json:"id"`
	UserID           uuid.UUID        `json:"user_id"`
	Symbol           string           `json:"symbol"`
	Name             string           `json:"name"`
	Sector           string           `json:"sector,omitempty"`
	CurrentPrice     decimal.Decimal  `json:"current_price"`
	DayChange        decimal.Decimal  `json:"day_change"`
	DayChangePercent decimal.Decimal  `json:"day_change_percent"`
	TargetPrice      *decimal.Decimal `json:"target_price,omitempty"`
	StopLoss         *decimal.Decimal `json:"stop_loss,omitempty"`
	Notes            string           `json:"notes,omitempty"`
	AddedAt          time.Time        `json:"added_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}
