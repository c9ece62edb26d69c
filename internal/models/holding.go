package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Holding represents an open position owned by a user.
// Derived fields (Invested, CurrentValue, Pl, PlPercent) are computed by the
// valuation package and stored alongside the primary fields.
type Holding struct {
	ID               int              `json:"id"`
	UserID           uuid.UUID        `json:"user_id"`
	Symbol           string           `json:"symbol"`
	Name             string           `json:"name"`
	Sector           string           `json:"sector,omitempty"`
	Quantity         int64            `json:"quantity"`
	BuyPrice         decimal.Decimal  `json:"buy_price"`
	CurrentPrice     decimal.Decimal  `json:"current_price"`
	Invested         decimal.Decimal  `json:"invested"`
	CurrentValue     decimal.Decimal  `json:"current_value"`
	Pl               decimal.Decimal  `json:"pl"`
	PlPercent        decimal.Decimal  `json:"pl_percent"`
	DayChange        decimal.Decimal  `json:"day_change"`
	DayChangePercent decimal.Decimal  `json:"day_change_percent"`
	TargetPrice      *decimal.Decimal `json:"target_price,omitempty"`
	StopLoss         *decimal.Decimal `json:"stop_loss,omitempty"`
	PurchaseDate     time.Time        `json:"purchase_date"`
	Version          int64            `json:"version"`
	LastUpdated      time.Time        `json:"last_updated"`
	CreatedAt        time.Time        `json:"created_at"`
}
