// Package api exposes the portfolio over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jmcnair/stockfolio/internal/apperrors"
	"github.com/jmcnair/stockfolio/internal/kafka"
	"github.com/jmcnair/stockfolio/internal/models"
	"github.com/jmcnair/stockfolio/internal/portfolio"
)

// PortfolioService is the slice of the portfolio service the handlers use
type PortfolioService interface {
	AddHolding(ctx context.Context, userID uuid.UUID, p portfolio.AddParams) (*models.Holding, error)
	Buy(ctx context.Context, userID uuid.UUID, p portfolio.AddParams) (*models.Holding, error)
	Holdings(ctx context.Context, userID uuid.UUID) ([]*models.Holding, error)
	Holding(ctx context.Context, userID uuid.UUID, symbol string) (*models.Holding, error)
	Edit(ctx context.Context, userID uuid.UUID, symbol string, terms portfolio.EditTerms) (*models.Holding, error)
	DiscardHolding(ctx context.Context, userID uuid.UUID, symbol string) error
	Sell(ctx context.Context, userID uuid.UUID, symbol string, quantity int64, price decimal.Decimal, date time.Time) (*models.ClosedPosition, *models.Holding, error)
	AddToWatchlist(ctx context.Context, userID uuid.UUID, p portfolio.WatchParams) (*models.WatchlistEntry, error)
	RemoveFromWatchlist(ctx context.Context, userID uuid.UUID, symbol string) error
	Watchlist(ctx context.Context, userID uuid.UUID) ([]*models.WatchlistEntry, error)
	PromoteToHolding(ctx context.Context, userID uuid.UUID, p portfolio.AddParams) (*models.Holding, error)
	ClosedPositions(ctx context.Context, userID uuid.UUID) ([]*models.ClosedPosition, error)
	DeleteClosedPosition(ctx context.Context, userID uuid.UUID, id int) error
	Summary(ctx context.Context, userID uuid.UUID) (*models.PortfolioSummary, error)
	PriceHistory(ctx context.Context, symbol string, limit int) ([]*models.PricePoint, error)
	Fills(ctx context.Context, userID uuid.UUID, symbol string, limit int) ([]*models.TradeFill, error)
}

// QuoteProvider serves ad-hoc quote lookups
type QuoteProvider interface {
	FetchQuote(ctx context.Context, symbol string) (*models.Quote, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	svc      PortfolioService
	quotes   QuoteProvider
	producer *kafka.Producer
	log      *zap.Logger
}

// NewHandler creates a new Handler. The producer may be nil when Kafka is
// disabled; events are then simply not published.
func NewHandler(svc PortfolioService, quotes QuoteProvider, producer *kafka.Producer, log *zap.Logger) *Handler {
	return &Handler{
		svc:      svc,
		quotes:   quotes,
		producer: producer,
		log:      log,
	}
}

type contextKey string

const userIDKey contextKey = "userID"

// RequireUser resolves the authenticated user from the X-User-ID header.
// Session handling lives in front of this service; the header carries the
// already-authenticated principal.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-User-ID")
		if raw == "" {
			respondError(w, apperrors.Validation("X-User-ID header is required"))
			return
		}
		userID, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, apperrors.Validation("invalid X-User-ID: %s", raw))
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userID(r *http.Request) uuid.UUID {
	id, _ := r.Context().Value(userIDKey).(uuid.UUID)
	return id
}

// GetHoldings handles GET /holdings
func (h *Handler) GetHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.svc.Holdings(r.Context(), userID(r))
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]*models.Holding, 0, len(holdings))
	for _, holding := range holdings {
		out = append(out, presentHolding(holding))
	}
	respondJSON(w, http.StatusOK, out)
}

// GetHolding handles GET /holdings/{symbol}
func (h *Handler) GetHolding(w http.ResponseWriter, r *http.Request) {
	holding, err := h.svc.Holding(r.Context(), userID(r), mux.Vars(r)["symbol"])
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, presentHolding(holding))
}

type holdingRequest struct {
	Symbol       string           `json:"symbol"`
	Quantity     int64            `json:"quantity"`
	BuyPrice     decimal.Decimal  `json:"buy_price"`
	PurchaseDate *time.Time       `json:"purchase_date,omitempty"`
	TargetPrice  *decimal.Decimal `json:"target_price,omitempty"`
	StopLoss     *decimal.Decimal `json:"stop_loss,omitempty"`
}

func (req holdingRequest) params() portfolio.AddParams {
	p := portfolio.AddParams{
		Symbol:      req.Symbol,
		Quantity:    req.Quantity,
		BuyPrice:    req.BuyPrice,
		TargetPrice: req.TargetPrice,
		StopLoss:    req.StopLoss,
	}
	if req.PurchaseDate != nil {
		p.PurchaseDate = *req.PurchaseDate
	}
	return p
}

// AddHolding handles POST /holdings. A symbol already held is averaged into
// rather than rejected.
func (h *Handler) AddHolding(w http.ResponseWriter, r *http.Request) {
	var req holdingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperrors.Validation("invalid request body"))
		return
	}

	holding, err := h.svc.Buy(r.Context(), userID(r), req.params())
	if err != nil {
		respondError(w, err)
		return
	}

	h.publishHolding(r.Context(), holding)
	respondJSON(w, http.StatusCreated, presentHolding(holding))
}

type editRequest struct {
	Quantity     *int64           `json:"quantity,omitempty"`
	BuyPrice     *decimal.Decimal `json:"buy_price,omitempty"`
	TargetPrice  *decimal.Decimal `json:"target_price,omitempty"`
	StopLoss     *decimal.Decimal `json:"stop_loss,omitempty"`
	PurchaseDate *time.Time       `json:"purchase_date,omitempty"`
}

// EditHolding handles PATCH /holdings/{symbol}
func (h *Handler) EditHolding(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperrors.Validation("invalid request body"))
		return
	}

	holding, err := h.svc.Edit(r.Context(), userID(r), mux.Vars(r)["symbol"], portfolio.EditTerms{
		Quantity:     req.Quantity,
		BuyPrice:     req.BuyPrice,
		TargetPrice:  req.TargetPrice,
		StopLoss:     req.StopLoss,
		PurchaseDate: req.PurchaseDate,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	h.publishHolding(r.Context(), holding)
	respondJSON(w, http.StatusOK, presentHolding(holding))
}

// DiscardHolding handles DELETE /holdings/{symbol}. The position is removed
// without recording a sale.
func (h *Handler) DiscardHolding(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DiscardHolding(r.Context(), userID(r), mux.Vars(r)["symbol"]); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sellRequest struct {
	Quantity  int64           `json:"quantity"`
	SellPrice decimal.Decimal `json:"sell_price"`
	SellDate  *time.Time      `json:"sell_date,omitempty"`
}

type sellResponse struct {
	Closed    *models.ClosedPosition `json:"closed_position"`
	Remaining *models.Holding        `json:"remaining_holding"`
}

// SellHolding handles POST /holdings/{symbol}/sell
func (h *Handler) SellHolding(w http.ResponseWriter, r *http.Request) {
	var req sellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperrors.Validation("invalid request body"))
		return
	}

	sellDate := time.Now()
	if req.SellDate != nil {
		sellDate = *req.SellDate
	}

	closed, remaining, err := h.svc.Sell(r.Context(), userID(r), mux.Vars(r)["symbol"], req.Quantity, req.SellPrice, sellDate)
	if err != nil {
		respondError(w, err)
		return
	}

	if h.producer != nil {
		if err := h.producer.PublishPositionClosed(r.Context(), closed, remaining); err != nil {
			h.log.Warn("failed to publish position closed event", zap.Error(err))
		}
	}

	respondJSON(w, http.StatusOK, sellResponse{
		Closed:    presentClosed(closed),
		Remaining: presentHolding(remaining),
	})
}

// GetWatchlist handles GET /watchlist
func (h *Handler) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Watchlist(r.Context(), userID(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

type watchRequest struct {
	Symbol      string           `json:"symbol"`
	TargetPrice *decimal.Decimal `json:"target_price,omitempty"`
	StopLoss    *decimal.Decimal `json:"stop_loss,omitempty"`
	Notes       string           `json:"notes,omitempty"`
}

// AddToWatchlist handles POST /watchlist
func (h *Handler) AddToWatchlist(w http.ResponseWriter, r *http.Request) {
	var req watchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperrors.Validation("invalid request body"))
		return
	}

	entry, err := h.svc.AddToWatchlist(r.Context(), userID(r), portfolio.WatchParams{
		Symbol:      req.Symbol,
		TargetPrice: req.TargetPrice,
		StopLoss:    req.StopLoss,
		Notes:       req.Notes,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	if h.producer != nil {
		if err := h.producer.PublishWatchlistAdded(r.Context(), entry); err != nil {
			h.log.Warn("failed to publish watchlist event", zap.Error(err))
		}
	}

	respondJSON(w, http.StatusCreated, entry)
}

// RemoveFromWatchlist handles DELETE /watchlist/{symbol}
func (h *Handler) RemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	uid := userID(r)

	if err := h.svc.RemoveFromWatchlist(r.Context(), uid, symbol); err != nil {
		respondError(w, err)
		return
	}

	if h.producer != nil {
		if err := h.producer.PublishWatchlistRemoved(r.Context(), uid, symbol); err != nil {
			h.log.Warn("failed to publish watchlist event", zap.Error(err))
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// PromoteWatchlistEntry handles POST /watchlist/{symbol}/promote. The entry
// is converted into an open position in one step; on any failure both lists
// are left untouched.
func (h *Handler) PromoteWatchlistEntry(w http.ResponseWriter, r *http.Request) {
	var req holdingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperrors.Validation("invalid request body"))
		return
	}

	params := req.params()
	params.Symbol = mux.Vars(r)["symbol"]

	holding, err := h.svc.PromoteToHolding(r.Context(), userID(r), params)
	if err != nil {
		respondError(w, err)
		return
	}

	h.publishHolding(r.Context(), holding)
	respondJSON(w, http.StatusCreated, presentHolding(holding))
}

// GetClosedPositions handles GET /closed
func (h *Handler) GetClosedPositions(w http.ResponseWriter, r *http.Request) {
	closed, err := h.svc.ClosedPositions(r.Context(), userID(r))
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]*models.ClosedPosition, 0, len(closed))
	for _, c := range closed {
		out = append(out, presentClosed(c))
	}
	respondJSON(w, http.StatusOK, out)
}

// DeleteClosedPosition handles DELETE /closed/{id}
func (h *Handler) DeleteClosedPosition(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, apperrors.Validation("invalid id: %s", mux.Vars(r)["id"]))
		return
	}

	if err := h.svc.DeleteClosedPosition(r.Context(), userID(r), id); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSummary handles GET /summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Summary(r.Context(), userID(r))
	if err != nil {
		respondError(w, err)
		return
	}
	out := *summary
	out.UnrealizedPlPct = out.UnrealizedPlPct.Round(2)
	respondJSON(w, http.StatusOK, out)
}

// GetQuote handles GET /quotes/{symbol}
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := h.quotes.FetchQuote(r.Context(), mux.Vars(r)["symbol"])
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, quote)
}

// GetPriceHistory handles GET /quotes/{symbol}/history
func (h *Handler) GetPriceHistory(w http.ResponseWriter, r *http.Request) {
	points, err := h.svc.PriceHistory(r.Context(), mux.Vars(r)["symbol"], queryLimit(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, points)
}

// GetFills handles GET /holdings/{symbol}/fills
func (h *Handler) GetFills(w http.ResponseWriter, r *http.Request) {
	fills, err := h.svc.Fills(r.Context(), userID(r), mux.Vars(r)["symbol"], queryLimit(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, fills)
}

func queryLimit(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return limit
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) publishHolding(ctx context.Context, holding *models.Holding) {
	if h.producer == nil {
		return
	}
	var err error
	if holding.Version <= 1 {
		err = h.producer.PublishHoldingOpened(ctx, holding)
	} else {
		err = h.producer.PublishHoldingUpdated(ctx, holding)
	}
	if err != nil {
		h.log.Warn("failed to publish holding event", zap.Error(err))
	}
}

// presentHolding rounds percentage fields for display. Stored values keep
// full precision; rounding happens only at the API boundary.
func presentHolding(h *models.Holding) *models.Holding {
	if h == nil {
		return nil
	}
	out := *h
	out.PlPercent = out.PlPercent.Round(2)
	out.DayChangePercent = out.DayChangePercent.Round(2)
	return &out
}

func presentClosed(c *models.ClosedPosition) *models.ClosedPosition {
	if c == nil {
		return nil
	}
	out := *c
	out.PlPercent = out.PlPercent.Round(2)
	return &out
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondError(w http.ResponseWriter, err error) {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		respondJSON(w, appErr.StatusCode(), errorResponse{Error: appErr.Message})
		return
	}
	respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}
