// Package valuation derives invested amount, current value and P&L figures
// for holdings and closed positions. Everything here is pure: no I/O, no
// clock, no store. Callers persist the results.
package valuation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jmcnair/stockfolio/internal/apperrors"
	"github.com/jmcnair/stockfolio/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Value holds the derived fields for an open position.
type Value struct {
	Invested     decimal.Decimal
	CurrentValue decimal.Decimal
	Pl           decimal.Decimal
	PlPercent    decimal.Decimal
}

// ValueHolding computes invested, current value and P&L from primary fields.
// PlPercent is zero (not an error) when invested is zero.
func ValueHolding(quantity int64, buyPrice, currentPrice decimal.Decimal) Value {
	qty := decimal.NewFromInt(quantity)
	invested := buyPrice.Mul(qty)
	currentValue := currentPrice.Mul(qty)
	pl := currentValue.Sub(invested)

	plPercent := decimal.Zero
	if invested.IsPositive() {
		plPercent = pl.Div(invested).Mul(hundred)
	}

	return Value{
		Invested:     invested,
		CurrentValue: currentValue,
		Pl:           pl,
		PlPercent:    plPercent,
	}
}

// Revalue rewrites a holding's derived fields from its primary fields.
func Revalue(h models.Holding) models.Holding {
	v := ValueHolding(h.Quantity, h.BuyPrice, h.CurrentPrice)
	h.Invested = v.Invested
	h.CurrentValue = v.CurrentValue
	h.Pl = v.Pl
	h.PlPercent = v.PlPercent
	return h
}

// ApplyQuote overwrites the quote-derived fields of a holding and re-derives
// its valuation. Quantity, buy price and purchase date are never touched.
// A result carrying an error marker leaves the holding exactly as it was:
// a stale price is tolerated, not treated as a failure.
func ApplyQuote(h models.Holding, res models.QuoteResult) models.Holding {
	if res.Err != nil || res.Quote == nil {
		return h
	}
	q := res.Quote

	h.CurrentPrice = q.CurrentPrice
	h.DayChange = q.DayChange.Mul(decimal.NewFromInt(h.Quantity))
	h.DayChangePercent = q.DayChangePercent
	if q.Name != "" {
		h.Name = q.Name
	}
	if q.Sector != "" {
		h.Sector = q.Sector
	}
	return Revalue(h)
}

// AverageIn folds an additional buy into an existing holding, producing a
// volume-weighted average cost. The holding's valuation is re-derived at the
// last known current price.
func AverageIn(h models.Holding, addQuantity int64, addBuyPrice decimal.Decimal) (models.Holding, error) {
	if addQuantity <= 0 {
		return h, apperrors.Validation("quantity must be positive, got %d", addQuantity)
	}
	if !addBuyPrice.IsPositive() {
		return h, apperrors.Validation("buy price must be positive, got %s", addBuyPrice)
	}

	newQuantity := h.Quantity + addQuantity
	newInvested := h.BuyPrice.Mul(decimal.NewFromInt(h.Quantity)).
		Add(addBuyPrice.Mul(decimal.NewFromInt(addQuantity)))

	h.Quantity = newQuantity
	h.BuyPrice = newInvested.Div(decimal.NewFromInt(newQuantity))
	return Revalue(h), nil
}

// CloseOut records a full or partial sale. It returns the immutable closed
// position and the remaining holding, or nil when the position was sold out
// entirely (the caller deletes the row). The remaining holding keeps the
// original buy price and is revalued at the last known current price.
func CloseOut(h models.Holding, sellQuantity int64, sellPrice decimal.Decimal, sellDate time.Time) (models.ClosedPosition, *models.Holding, error) {
	if sellQuantity <= 0 {
		return models.ClosedPosition{}, nil, apperrors.Validation("sell quantity must be positive, got %d", sellQuantity)
	}
	if !sellPrice.IsPositive() {
		return models.ClosedPosition{}, nil, apperrors.Validation("sell price must be positive, got %s", sellPrice)
	}
	if sellQuantity > h.Quantity {
		return models.ClosedPosition{}, nil, apperrors.InsufficientQuantity(h.Symbol, h.Quantity, sellQuantity)
	}

	qty := decimal.NewFromInt(sellQuantity)
	invested := h.BuyPrice.Mul(qty)
	realized := sellPrice.Mul(qty)
	pl := realized.Sub(invested)

	plPercent := decimal.Zero
	if invested.IsPositive() {
		plPercent = pl.Div(invested).Mul(hundred)
	}

	closed := models.ClosedPosition{
		UserID:        h.UserID,
		Symbol:        h.Symbol,
		Name:          h.Name,
		Quantity:      sellQuantity,
		BuyPrice:      h.BuyPrice,
		SellPrice:     sellPrice,
		Invested:      invested,
		Realized:      realized,
		Pl:            pl,
		PlPercent:     plPercent,
		PurchaseDate:  h.PurchaseDate,
		ClosedDate:    sellDate,
		HoldingPeriod: HoldingPeriod(h.PurchaseDate, sellDate),
	}

	if sellQuantity == h.Quantity {
		return closed, nil, nil
	}

	h.Quantity -= sellQuantity
	remaining := Revalue(h)
	return closed, &remaining, nil
}
