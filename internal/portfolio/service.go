// Package portfolio orchestrates the transitions of a ticker between
// watchlist entry, open holding and closed position for one user, keeping the
// derived valuation fields consistent across every transition. It talks to
// the store and the quote provider through interfaces and does no logging of
// its own; failures come back as typed errors for the API layer to map.
package portfolio

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jmcnair/stockfolio/internal/apperrors"
	"github.com/jmcnair/stockfolio/internal/models"
	"github.com/jmcnair/stockfolio/internal/valuation"
)

// Store is the persistence surface the lifecycle manager drives. The
// multi-row operations (PromoteWatchlistEntry, RecordSale) must be atomic:
// either every row lands or none do.
type Store interface {
	GetHoldings(userID uuid.UUID) ([]*models.Holding, error)
	GetHoldingBySymbol(userID uuid.UUID, symbol string) (*models.Holding, error)
	CreateHolding(h *models.Holding) error
	UpdateHolding(h *models.Holding) error
	DeleteHolding(userID uuid.UUID, symbol string) error
	PromoteWatchlistEntry(userID uuid.UUID, h *models.Holding) error
	PromoteIntoHolding(userID uuid.UUID, h *models.Holding) error
	RecordSale(closed *models.ClosedPosition, remaining *models.Holding, priorVersion int64) error

	GetWatchlist(userID uuid.UUID) ([]*models.WatchlistEntry, error)
	GetWatchlistEntry(userID uuid.UUID, symbol string) (*models.WatchlistEntry, error)
	CreateWatchlistEntry(w *models.WatchlistEntry) error
	UpdateWatchlistEntry(w *models.WatchlistEntry) error
	DeleteWatchlistEntry(userID uuid.UUID, symbol string) error

	GetClosedPositions(userID uuid.UUID) ([]*models.ClosedPosition, error)
	DeleteClosedPosition(userID uuid.UUID, id int) error
	RealizedPl(userID uuid.UUID) (decimal.Decimal, error)

	GetPriceHistory(symbol string, limit int) ([]*models.PricePoint, error)
	GetTradeFillsBySymbol(userID uuid.UUID, symbol string, limit int) ([]*models.TradeFill, error)
}

// QuoteProvider supplies point-in-time quotes for enriching new rows.
type QuoteProvider interface {
	FetchQuote(ctx context.Context, symbol string) (*models.Quote, error)
}

// Service is the lifecycle manager
type Service struct {
	store  Store
	quotes QuoteProvider
}

// NewService creates a lifecycle manager over the given store. The quote
// provider is optional; without one, new rows start at their cost basis and
// pick up market data on the next refresh cycle.
func NewService(store Store, quotes QuoteProvider) *Service {
	return &Service{store: store, quotes: quotes}
}

// AddParams describes a direct buy or a watchlist promotion
type AddParams struct {
	Symbol       string
	Quantity     int64
	BuyPrice     decimal.Decimal
	PurchaseDate time.Time
	TargetPrice  *decimal.Decimal
	StopLoss     *decimal.Decimal
}

// WatchParams describes a new watchlist entry
type WatchParams struct {
	Symbol      string
	TargetPrice *decimal.Decimal
	StopLoss    *decimal.Decimal
	Notes       string
}

func normalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return "", apperrors.Validation("symbol is required")
	}
	return s, nil
}

func (p *AddParams) validate() error {
	if p.Quantity <= 0 {
		return apperrors.Validation("quantity must be positive, got %d", p.Quantity)
	}
	if !p.BuyPrice.IsPositive() {
		return apperrors.Validation("buy price must be positive, got %s", p.BuyPrice)
	}
	return nil
}

// AddToWatchlist starts tracking a ticker the user does not own. A ticker
// already held or already watched is rejected: within one user a symbol
// lives in at most one of the two sets.
func (s *Service) AddToWatchlist(ctx context.Context, userID uuid.UUID, p WatchParams) (*models.WatchlistEntry, error) {
	symbol, err := normalizeSymbol(p.Symbol)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetHoldingBySymbol(userID, symbol); err == nil {
		return nil, apperrors.DuplicateTicker(symbol)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	entry := &models.WatchlistEntry{
		UserID:      userID,
		Symbol:      symbol,
		Name:        symbol,
		TargetPrice: p.TargetPrice,
		StopLoss:    p.StopLoss,
		Notes:       p.Notes,
	}

	if quote := s.tryQuote(ctx, symbol); quote != nil {
		entry.Name = quote.Name
		entry.Sector = quote.Sector
		entry.CurrentPrice = quote.CurrentPrice
		entry.DayChange = quote.DayChange
		entry.DayChangePercent = quote.DayChangePercent
	}

	if err := s.store.CreateWatchlistEntry(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// RemoveFromWatchlist stops tracking a ticker
func (s *Service) RemoveFromWatchlist(ctx context.Context, userID uuid.UUID, symbol string) error {
	sym, err := normalizeSymbol(symbol)
	if err != nil {
		return err
	}
	return s.store.DeleteWatchlistEntry(userID, sym)
}

// AddHolding opens a position for an untracked ticker. It fails with
// DuplicateTicker when the ticker is already held; callers that want
// add-or-average semantics use Buy instead.
func (s *Service) AddHolding(ctx context.Context, userID uuid.UUID, p AddParams) (*models.Holding, error) {
	symbol, err := normalizeSymbol(p.Symbol)
	if err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	p.Symbol = symbol

	h := s.newHolding(ctx, userID, p)
	if err := s.store.CreateHolding(h); err != nil {
		return nil, err
	}
	return h, nil
}

// Buy is the add-or-average entry point: it opens a new position for an
// unheld ticker and folds the purchase into the existing one otherwise.
func (s *Service) Buy(ctx context.Context, userID uuid.UUID, p AddParams) (*models.Holding, error) {
	symbol, err := normalizeSymbol(p.Symbol)
	if err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	p.Symbol = symbol

	existing, err := s.store.GetHoldingBySymbol(userID, symbol)
	if errors.Is(err, apperrors.ErrNotFound) {
		return s.AddHolding(ctx, userID, p)
	}
	if err != nil {
		return nil, err
	}
	return s.averageIn(existing, p.Quantity, p.BuyPrice)
}

func (s *Service) averageIn(existing *models.Holding, quantity int64, buyPrice decimal.Decimal) (*models.Holding, error) {
	updated, err := valuation.AverageIn(*existing, quantity, buyPrice)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateHolding(&updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// PromoteToHolding converts a watchlist entry into an open position,
// atomically removing the entry and creating the holding. When the ticker is
// somehow already held, the buy is folded into the existing position and the
// watchlist entry dropped in the same transaction rather than creating a
// duplicate row.
func (s *Service) PromoteToHolding(ctx context.Context, userID uuid.UUID, p AddParams) (*models.Holding, error) {
	symbol, err := normalizeSymbol(p.Symbol)
	if err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	p.Symbol = symbol

	entry, err := s.store.GetWatchlistEntry(userID, symbol)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.GetHoldingBySymbol(userID, symbol)
	if err == nil {
		updated, err := valuation.AverageIn(*existing, p.Quantity, p.BuyPrice)
		if err != nil {
			return nil, err
		}
		if err := s.store.PromoteIntoHolding(userID, &updated); err != nil {
			return nil, err
		}
		return &updated, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	h := s.newHolding(ctx, userID, p)
	// Carry tracked prices and targets over from the watchlist entry unless
	// the caller supplied their own.
	if h.CurrentPrice.Equal(h.BuyPrice) && entry.CurrentPrice.IsPositive() {
		h.CurrentPrice = entry.CurrentPrice
		h.DayChangePercent = entry.DayChangePercent
		h.DayChange = entry.DayChange.Mul(decimal.NewFromInt(h.Quantity))
		*h = valuation.Revalue(*h)
	}
	if h.TargetPrice == nil {
		h.TargetPrice = entry.TargetPrice
	}
	if h.StopLoss == nil {
		h.StopLoss = entry.StopLoss
	}
	if entry.Name != "" {
		h.Name = entry.Name
	}
	if entry.Sector != "" {
		h.Sector = entry.Sector
	}

	if err := s.store.PromoteWatchlistEntry(userID, h); err != nil {
		return nil, err
	}
	return h, nil
}

// Sell closes part or all of a position, appending an immutable closed
// position record. A full sale removes the holding; a partial sale leaves
// the remainder at the original cost basis. Both writes land atomically.
func (s *Service) Sell(ctx context.Context, userID uuid.UUID, symbol string, quantity int64, price decimal.Decimal, date time.Time) (*models.ClosedPosition, *models.Holding, error) {
	sym, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, nil, err
	}

	holding, err := s.store.GetHoldingBySymbol(userID, sym)
	if err != nil {
		return nil, nil, err
	}

	if date.IsZero() {
		date = time.Now()
	}

	closed, remaining, err := valuation.CloseOut(*holding, quantity, price, date)
	if err != nil {
		return nil, nil, err
	}

	if err := s.store.RecordSale(&closed, remaining, holding.Version); err != nil {
		return nil, nil, err
	}
	return &closed, remaining, nil
}

// EditTerms is a direct correction of a holding's primary fields. Any field
// left nil keeps its value; the valuation is re-derived afterwards.
type EditTerms struct {
	Quantity     *int64
	BuyPrice     *decimal.Decimal
	TargetPrice  *decimal.Decimal
	StopLoss     *decimal.Decimal
	PurchaseDate *time.Time
}

// Edit applies a manual correction to an open position
func (s *Service) Edit(ctx context.Context, userID uuid.UUID, symbol string, terms EditTerms) (*models.Holding, error) {
	sym, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	holding, err := s.store.GetHoldingBySymbol(userID, sym)
	if err != nil {
		return nil, err
	}

	if terms.Quantity != nil {
		if *terms.Quantity <= 0 {
			return nil, apperrors.Validation("quantity must be positive, got %d", *terms.Quantity)
		}
		holding.Quantity = *terms.Quantity
	}
	if terms.BuyPrice != nil {
		if !terms.BuyPrice.IsPositive() {
			return nil, apperrors.Validation("buy price must be positive, got %s", terms.BuyPrice)
		}
		holding.BuyPrice = *terms.BuyPrice
	}
	if terms.TargetPrice != nil {
		holding.TargetPrice = terms.TargetPrice
	}
	if terms.StopLoss != nil {
		holding.StopLoss = terms.StopLoss
	}
	if terms.PurchaseDate != nil {
		holding.PurchaseDate = *terms.PurchaseDate
	}

	updated := valuation.Revalue(*holding)
	if err := s.store.UpdateHolding(&updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DiscardHolding deletes an open position without recording a sale
func (s *Service) DiscardHolding(ctx context.Context, userID uuid.UUID, symbol string) error {
	sym, err := normalizeSymbol(symbol)
	if err != nil {
		return err
	}
	return s.store.DeleteHolding(userID, sym)
}

// Holdings lists a user's open positions
func (s *Service) Holdings(ctx context.Context, userID uuid.UUID) ([]*models.Holding, error) {
	return s.store.GetHoldings(userID)
}

// Holding retrieves one open position by symbol
func (s *Service) Holding(ctx context.Context, userID uuid.UUID, symbol string) (*models.Holding, error) {
	sym, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	return s.store.GetHoldingBySymbol(userID, sym)
}

// Watchlist lists a user's watchlist
func (s *Service) Watchlist(ctx context.Context, userID uuid.UUID) ([]*models.WatchlistEntry, error) {
	return s.store.GetWatchlist(userID)
}

// ClosedPositions lists a user's sale history
func (s *Service) ClosedPositions(ctx context.Context, userID uuid.UUID) ([]*models.ClosedPosition, error) {
	return s.store.GetClosedPositions(userID)
}

// DeleteClosedPosition removes one record from the sale history
func (s *Service) DeleteClosedPosition(ctx context.Context, userID uuid.UUID, id int) error {
	return s.store.DeleteClosedPosition(userID, id)
}

// PriceHistory returns recent daily closes for a symbol, oldest first
func (s *Service) PriceHistory(ctx context.Context, symbol string, limit int) ([]*models.PricePoint, error) {
	sym, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 90
	}
	return s.store.GetPriceHistory(sym, limit)
}

// Fills returns a user's recent broker fills for a symbol
func (s *Service) Fills(ctx context.Context, userID uuid.UUID, symbol string, limit int) ([]*models.TradeFill, error) {
	sym, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return s.store.GetTradeFillsBySymbol(userID, sym, limit)
}

// Summary aggregates the portfolio totals for the dashboard
func (s *Service) Summary(ctx context.Context, userID uuid.UUID) (*models.PortfolioSummary, error) {
	holdings, err := s.store.GetHoldings(userID)
	if err != nil {
		return nil, err
	}
	watchlist, err := s.store.GetWatchlist(userID)
	if err != nil {
		return nil, err
	}
	closed, err := s.store.GetClosedPositions(userID)
	if err != nil {
		return nil, err
	}
	realized, err := s.store.RealizedPl(userID)
	if err != nil {
		return nil, err
	}

	summary := &models.PortfolioSummary{
		Holdings:         len(holdings),
		WatchlistEntries: len(watchlist),
		ClosedPositions:  len(closed),
		RealizedPl:       realized,
	}
	for _, h := range holdings {
		summary.Invested = summary.Invested.Add(h.Invested)
		summary.CurrentValue = summary.CurrentValue.Add(h.CurrentValue)
		summary.UnrealizedPl = summary.UnrealizedPl.Add(h.Pl)
		summary.DayChange = summary.DayChange.Add(h.DayChange)
	}
	if summary.Invested.IsPositive() {
		summary.UnrealizedPlPct = summary.UnrealizedPl.Div(summary.Invested).Mul(decimal.NewFromInt(100))
	}
	return summary, nil
}

// newHolding builds an open position from a buy, enriched with a best-effort
// quote. When no quote is available the position is valued at its cost basis
// until the next refresh; prices are never invented.
func (s *Service) newHolding(ctx context.Context, userID uuid.UUID, p AddParams) *models.Holding {
	purchaseDate := p.PurchaseDate
	if purchaseDate.IsZero() {
		purchaseDate = time.Now()
	}

	h := models.Holding{
		UserID:       userID,
		Symbol:       p.Symbol,
		Name:         p.Symbol,
		Quantity:     p.Quantity,
		BuyPrice:     p.BuyPrice,
		CurrentPrice: p.BuyPrice,
		TargetPrice:  p.TargetPrice,
		StopLoss:     p.StopLoss,
		PurchaseDate: purchaseDate,
	}

	if quote := s.tryQuote(ctx, p.Symbol); quote != nil {
		h.Name = quote.Name
		h.Sector = quote.Sector
		h.CurrentPrice = quote.CurrentPrice
		h.DayChangePercent = quote.DayChangePercent
		h.DayChange = quote.DayChange.Mul(decimal.NewFromInt(p.Quantity))
	}

	h = valuation.Revalue(h)
	return &h
}

func (s *Service) tryQuote(ctx context.Context, symbol string) *models.Quote {
	if s.quotes == nil {
		return nil
	}
	quote, err := s.quotes.FetchQuote(ctx, symbol)
	if err != nil || quote == nil {
		return nil
	}
	if quote.Name == "" {
		quote.Name = symbol
	}
	return quote
}
