package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jmcnair/stockfolio/internal/apperrors"
	"github.com/jmcnair/stockfolio/internal/models"
	"github.com/jmcnair/stockfolio/internal/portfolio"
)

// stubService returns canned results and records the last call arguments
type stubService struct {
	holding    *models.Holding
	holdings   []*models.Holding
	entry      *models.WatchlistEntry
	entries    []*models.WatchlistEntry
	closed     *models.ClosedPosition
	closedList []*models.ClosedPosition
	remaining  *models.Holding
	summary    *models.PortfolioSummary
	err        error

	lastUserID  uuid.UUID
	lastSymbol  string
	lastAdd     portfolio.AddParams
	lastSellQty int64
}

func (s *stubService) AddHolding(ctx context.Context, userID uuid.UUID, p portfolio.AddParams) (*models.Holding, error) {
	s.lastUserID, s.lastAdd = userID, p
	return s.holding, s.err
}

func (s *stubService) Buy(ctx context.Context, userID uuid.UUID, p portfolio.AddParams) (*models.Holding, error) {
	s.lastUserID, s.lastAdd = userID, p
	return s.holding, s.err
}

func (s *stubService) Holdings(ctx context.Context, userID uuid.UUID) ([]*models.Holding, error) {
	s.lastUserID = userID
	return s.holdings, s.err
}

func (s *stubService) Holding(ctx context.Context, userID uuid.UUID, symbol string) (*models.Holding, error) {
	s.lastUserID, s.lastSymbol = userID, symbol
	return s.holding, s.err
}

func (s *stubService) Edit(ctx context.Context, userID uuid.UUID, symbol string, terms portfolio.EditTerms) (*models.Holding, error) {
	s.lastUserID, s.lastSymbol = userID, symbol
	return s.holding, s.err
}

func (s *stubService) DiscardHolding(ctx context.Context, userID uuid.UUID, symbol string) error {
	s.lastUserID, s.lastSymbol = userID, symbol
	return s.err
}

func (s *stubService) Sell(ctx context.Context, userID uuid.UUID, symbol string, quantity int64, price decimal.Decimal, date time.Time) (*models.ClosedPosition, *models.Holding, error) {
	s.lastUserID, s.lastSymbol, s.lastSellQty = userID, symbol, quantity
	return s.closed, s.remaining, s.err
}

func (s *stubService) AddToWatchlist(ctx context.Context, userID uuid.UUID, p portfolio.WatchParams) (*models.WatchlistEntry, error) {
	s.lastUserID, s.lastSymbol = userID, p.Symbol
	return s.entry, s.err
}

func (s *stubService) RemoveFromWatchlist(ctx context.Context, userID uuid.UUID, symbol string) error {
	s.lastUserID, s.lastSymbol = userID, symbol
	return s.err
}

func (s *stubService) Watchlist(ctx context.Context, userID uuid.UUID) ([]*models.WatchlistEntry, error) {
	s.lastUserID = userID
	return s.entries, s.err
}

func (s *stubService) PromoteToHolding(ctx context.Context, userID uuid.UUID, p portfolio.AddParams) (*models.Holding, error) {
	s.lastUserID, s.lastSymbol, s.lastAdd = userID, p.Symbol, p
	return s.holding, s.err
}

func (s *stubService) ClosedPositions(ctx context.Context, userID uuid.UUID) ([]*models.ClosedPosition, error) {
	s.lastUserID = userID
	return s.closedList, s.err
}

func (s *stubService) DeleteClosedPosition(ctx context.Context, userID uuid.UUID, id int) error {
	s.lastUserID = userID
	return s.err
}

func (s *stubService) Summary(ctx context.Context, userID uuid.UUID) (*models.PortfolioSummary, error) {
	s.lastUserID = userID
	return s.summary, s.err
}

func (s *stubService) PriceHistory(ctx context.Context, symbol string, limit int) ([]*models.PricePoint, error) {
	s.lastSymbol = symbol
	return nil, s.err
}

func (s *stubService) Fills(ctx context.Context, userID uuid.UUID, symbol string, limit int) ([]*models.TradeFill, error) {
	s.lastUserID, s.lastSymbol = userID, symbol
	return nil, s.err
}

type stubQuoteProvider struct {
	quote *models.Quote
	err   error
}

func (s *stubQuoteProvider) FetchQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	return s.quote, s.err
}

func newTestRouter(svc PortfolioService, quotes QuoteProvider) http.Handler {
	return SetupRoutes(NewHandler(svc, quotes, nil, zap.NewNop()))
}

func doRequest(t *testing.T, router http.Handler, method, path string, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func sampleHolding() *models.Holding {
	return &models.Holding{
		UserID:       uuid.New(),
		Symbol:       "AAPL",
		Name:         "Apple Inc.",
		Quantity:     10,
		BuyPrice:     decimal.NewFromInt(100),
		CurrentPrice: decimal.NewFromInt(120),
		Invested:     decimal.NewFromInt(1000),
		CurrentValue: decimal.NewFromInt(1200),
		Pl:           decimal.NewFromInt(200),
		PlPercent:    decimal.RequireFromString("20.0049"),
		Version:      1,
	}
}

func TestRequireUser(t *testing.T) {
	router := newTestRouter(&stubService{}, &stubQuoteProvider{})

	rec := doRequest(t, router, "GET", "/api/v1/holdings", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, "GET", "/api/v1/holdings", "not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthSkipsAuth(t *testing.T) {
	router := newTestRouter(&stubService{}, &stubQuoteProvider{})
	rec := doRequest(t, router, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetHoldings(t *testing.T) {
	svc := &stubService{holdings: []*models.Holding{sampleHolding()}}
	router := newTestRouter(svc, &stubQuoteProvider{})
	uid := uuid.New()

	rec := doRequest(t, router, "GET", "/api/v1/holdings", uid.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uid, svc.lastUserID)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	// Percentages are rounded for display only.
	assert.Equal(t, "20", got[0]["pl_percent"])
}

func TestAddHolding(t *testing.T) {
	svc := &stubService{holding: sampleHolding()}
	router := newTestRouter(svc, &stubQuoteProvider{})

	rec := doRequest(t, router, "POST", "/api/v1/holdings", uuid.NewString(), map[string]any{
		"symbol":    "AAPL",
		"quantity":  10,
		"buy_price": "100",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "AAPL", svc.lastAdd.Symbol)
	assert.Equal(t, int64(10), svc.lastAdd.Quantity)
	assert.Equal(t, "100", svc.lastAdd.BuyPrice.String())
}

func TestAddHoldingInvalidBody(t *testing.T) {
	router := newTestRouter(&stubService{}, &stubQuoteProvider{})
	req := httptest.NewRequest("POST", "/api/v1/holdings", bytes.NewBufferString("not json"))
	req.Header.Set("X-User-ID", uuid.NewString())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSellHolding(t *testing.T) {
	closed := &models.ClosedPosition{Symbol: "AAPL", Quantity: 10, Pl: decimal.NewFromInt(500)}
	svc := &stubService{closed: closed, remaining: nil}
	router := newTestRouter(svc, &stubQuoteProvider{})

	rec := doRequest(t, router, "POST", "/api/v1/holdings/AAPL/sell", uuid.NewString(), map[string]any{
		"quantity":   10,
		"sell_price": "150",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "AAPL", svc.lastSymbol)
	assert.Equal(t, int64(10), svc.lastSellQty)

	var got sellResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.Closed)
	assert.Nil(t, got.Remaining)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", apperrors.Validation("bad input"), http.StatusBadRequest},
		{"duplicate", apperrors.DuplicateTicker("AAPL"), http.StatusConflict},
		{"concurrent", apperrors.ConcurrentModification("AAPL"), http.StatusConflict},
		{"insufficient", apperrors.InsufficientQuantity("AAPL", 5, 10), http.StatusUnprocessableEntity},
		{"not found", apperrors.NotFound("holding", "AAPL"), http.StatusNotFound},
		{"quote unavailable", apperrors.QuoteUnavailable("AAPL", nil), http.StatusBadGateway},
		{"store unavailable", apperrors.StoreUnavailable(nil), http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(&stubService{err: tc.err}, &stubQuoteProvider{})
			rec := doRequest(t, router, "GET", "/api/v1/holdings/AAPL", uuid.NewString(), nil)
			assert.Equal(t, tc.status, rec.Code)

			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestPromoteRoutesSymbolFromPath(t *testing.T) {
	svc := &stubService{holding: sampleHolding()}
	router := newTestRouter(svc, &stubQuoteProvider{})

	rec := doRequest(t, router, "POST", "/api/v1/watchlist/MSFT/promote", uuid.NewString(), map[string]any{
		"quantity":  5,
		"buy_price": "410",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "MSFT", svc.lastAdd.Symbol)
}

func TestDeleteClosedPositionBadID(t *testing.T) {
	router := newTestRouter(&stubService{}, &stubQuoteProvider{})
	rec := doRequest(t, router, "DELETE", "/api/v1/closed/abc", uuid.NewString(), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetQuote(t *testing.T) {
	quotes := &stubQuoteProvider{quote: &models.Quote{
		Symbol:       "AAPL",
		CurrentPrice: decimal.RequireFromString("178.50"),
	}}
	router := newTestRouter(&stubService{}, quotes)

	rec := doRequest(t, router, "GET", "/api/v1/quotes/AAPL", uuid.NewString(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "AAPL", got.Symbol)
}

func TestGetQuoteUnavailable(t *testing.T) {
	quotes := &stubQuoteProvider{err: apperrors.QuoteUnavailable("AAPL", nil)}
	router := newTestRouter(&stubService{}, quotes)

	rec := doRequest(t, router, "GET", "/api/v1/quotes/AAPL", uuid.NewString(), nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGetSummaryRoundsPercent(t *testing.T) {
	svc := &stubService{summary: &models.PortfolioSummary{
		Holdings:        2,
		Invested:        decimal.NewFromInt(3000),
		CurrentValue:    decimal.NewFromInt(3100),
		UnrealizedPl:    decimal.NewFromInt(100),
		UnrealizedPlPct: decimal.RequireFromString("3.3333333333333333"),
	}}
	router := newTestRouter(svc, &stubQuoteProvider{})

	rec := doRequest(t, router, "GET", "/api/v1/summary", uuid.NewString(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "3.33", got["unrealized_pl_percent"])
}
