package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Portfolio event types published to Kafka
const (
	EventHoldingOpened    = "HOLDING_OPENED"
	EventHoldingUpdated   = "HOLDING_UPDATED"
	EventPositionClosed   = "POSITION_CLOSED"
	EventWatchlistAdded   = "WATCHLIST_ADDED"
	EventWatchlistRemoved = "WATCHLIST_REMOVED"
)

// PortfolioEvent represents a Kafka event for portfolio changes
type PortfolioEvent struct {
	EventType string          `json:"event_type"`
	UserID    uuid.UUID       `json:"user_id"`
	Symbol    string          `json:"symbol"`
	Holding   *Holding        `json:"holding,omitempty"`
	Closed    *ClosedPosition `json:"closed_position,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Fill side constants
const (
	FillSideBuy  = "BUY"
	FillSideSell = "SELL"
)

// TradeFill is a broker execution report consumed from Kafka. Fills are
// deduplicated by (OrderID, Source) and then routed through the portfolio
// lifecycle as a buy or a sell.
type TradeFill struct {
	ID         int             `json:"id"`
	UserID     uuid.UUID       `json:"user_id"`
	OrderID    string          `json:"order_id"`
	Source     string          `json:"source"`
	Symbol     string          `json:"symbol"`
	Side       string          `json:"side"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	ExecutedAt time.Time       `json:"executed_at"`
	CreatedAt  time.Time       `json:"created_at"`
}
