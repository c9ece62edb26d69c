package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ClosedPosition is an immutable record of a completed sale, full or partial.
// A symbol may appear many times in a user's history; each sale is its own row.
type ClosedPosition struct {
	ID            int             `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Quantity      int64           `json:"quantity"`
	BuyPrice      decimal.Decimal `json:"buy_price"`
	SellPrice     decimal.Decimal `json:"sell_price"`
	Invested      decimal.Decimal `json:"invested"`
	Realized      decimal.Decimal `json:"realized"`
	Pl            decimal.Decimal `json:"pl"`
	PlPercent     decimal.Decimal `json:"pl_percent"`
	PurchaseDate  time.Time       `json:"purchase_date"`
	ClosedDate    time.Time       `json:"closed_date"`
	HoldingPeriod string          `json:"holding_period"`
	CreatedAt     time.Time       `json:"created_at"`
}
