package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a point-in-time price snapshot for a symbol from the quote provider.
type Quote struct {
	Symbol           string          `json:"symbol"`
	Name             string          `json:"name,omitempty"`
	Sector           string          `json:"sector,omitempty"`
	CurrentPrice     decimal.Decimal `json:"current_price"`
	PreviousClose    decimal.Decimal `json:"previous_close"`
	DayChange        decimal.Decimal `json:"day_change"`
	DayChangePercent decimal.Decimal `json:"day_change_percent"`
	FetchedAt        time.Time       `json:"fetched_at"`
}

// QuoteResult is the per-symbol outcome of a batch refresh. Exactly one of
// Quote or Err is set; a failed symbol never aborts the rest of the batch.
type QuoteResult struct {
	Symbol string
	Quote  *Quote
	Err    error
}

// PricePoint is one daily close kept for charting.
type PricePoint struct {
	ID               int             `json:"id"`
	Symbol           string          `json:"symbol"`
	Date             time.Time       `json:"date"`
	Close            decimal.Decimal `json:"close"`
	DayChange        decimal.Decimal `json:"day_change"`
	DayChangePercent decimal.Decimal `json:"day_change_percent"`
	CreatedAt        time.Time       `json:"created_at"`
}
