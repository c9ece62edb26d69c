package models

import "github.com/shopspring/decimal"

// PortfolioSummary aggregates one user's portfolio for the dashboard.
type PortfolioSummary struct {
	Holdings         int             `json:"holdings"`
	WatchlistEntries int             `json:"watchlist_entries"`
	ClosedPositions  int             `json:"closed_positions"`
	Invested         decimal.Decimal `json:"invested"`
	CurrentValue     decimal.Decimal `json:"current_value"`
	UnrealizedPl     decimal.Decimal `json:"unrealized_pl"`
	UnrealizedPlPct  decimal.Decimal `json:"unrealized_pl_percent"`
	RealizedPl       decimal.Decimal `json:"realized_pl"`
	DayChange        decimal.Decimal `json:"day_change"`
}
