package quotes

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jmcnair/stockfolio/internal/config"
	"github.com/jmcnair/stockfolio/internal/models"
	"github.com/jmcnair/stockfolio/internal/valuation"
)

// RefreshStore is the persistence surface the refresher writes through.
// Holding updates go through the optimistic version check, so a refresh
// racing a user edit loses cleanly and is skipped.
type RefreshStore interface {
	TrackedSymbols() ([]string, error)
	HoldingsBySymbol(symbol string) ([]*models.Holding, error)
	UpdateHolding(h *models.Holding) error
	WatchlistBySymbol(symbol string) ([]*models.WatchlistEntry, error)
	UpdateWatchlistEntry(w *models.WatchlistEntry) error
	UpsertPricePointBatch(points []*models.PricePoint) error
}

// Refresher periodically pulls quotes for every tracked symbol and fans them
// out to holdings, watchlist entries and the price history.
type Refresher struct {
	provider Provider
	store    RefreshStore
	log      *zap.Logger

	interval         time.Duration
	batchSize        int
	perSymbolTimeout time.Duration

	running atomic.Bool
}

// NewRefresher creates a refresher from config
func NewRefresher(provider Provider, store RefreshStore, log *zap.Logger, cfg config.QuotesConfig) *Refresher {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 8
	}
	return &Refresher{
		provider:         provider,
		store:            store,
		log:              log,
		interval:         cfg.RefreshInterval,
		batchSize:        batchSize,
		perSymbolTimeout: cfg.PerSymbolTimeout,
	}
}

// Run refreshes on the configured interval until the context is cancelled.
// A cycle still in flight when the next tick fires is left alone and the
// tick skipped; cycles never queue up behind a slow provider.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !r.running.CompareAndSwap(false, true) {
				r.log.Warn("quote refresh cycle still running, skipping tick")
				continue
			}
			go func() {
				defer r.running.Store(false)
				if err := r.RefreshOnce(ctx); err != nil {
					r.log.Error("quote refresh cycle failed", zap.Error(err))
				}
			}()
		}
	}
}

// RefreshOnce runs a single refresh cycle over all tracked symbols
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	symbols, err := r.store.TrackedSymbols()
	if err != nil {
		return err
	}
	if len(symbols) == 0 {
		return nil
	}

	results := r.FetchBatch(ctx, symbols)

	var points []*models.PricePoint
	refreshed, failed := 0, 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			r.log.Warn("quote unavailable, keeping last known values",
				zap.String("symbol", res.Symbol), zap.Error(res.Err))
			continue
		}
		refreshed++
		r.applyToHoldings(res)
		r.applyToWatchlist(res)
		points = append(points, &models.PricePoint{
			Symbol:           res.Symbol,
			Date:             res.Quote.FetchedAt.Truncate(24 * time.Hour),
			Close:            res.Quote.CurrentPrice,
			DayChange:        res.Quote.DayChange,
			DayChangePercent: res.Quote.DayChangePercent,
		})
	}

	if len(points) > 0 {
		if err := r.store.UpsertPricePointBatch(points); err != nil {
			r.log.Error("failed to record price history", zap.Error(err))
		}
	}

	r.log.Info("quote refresh cycle complete",
		zap.Int("symbols", len(symbols)), zap.Int("refreshed", refreshed), zap.Int("failed", failed))
	return nil
}

// FetchBatch fetches quotes for a symbol set with bounded concurrency. Each
// symbol gets its own timeout; one slow or failing symbol never blocks the
// rest, and a failure is reported as that symbol's error marker only.
func (r *Refresher) FetchBatch(ctx context.Context, symbols []string) []models.QuoteResult {
	results := make([]models.QuoteResult, len(symbols))
	sem := make(chan struct{}, r.batchSize)

	var wg sync.WaitGroup
	for i, symbol := range symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			fetchCtx := ctx
			if r.perSymbolTimeout > 0 {
				var cancel context.CancelFunc
				fetchCtx, cancel = context.WithTimeout(ctx, r.perSymbolTimeout)
				defer cancel()
			}

			quote, err := r.provider.FetchQuote(fetchCtx, symbol)
			if err != nil {
				results[i] = models.QuoteResult{Symbol: symbol, Err: err}
				return
			}
			results[i] = models.QuoteResult{Symbol: symbol, Quote: quote}
		}(i, symbol)
	}
	wg.Wait()

	return results
}

func (r *Refresher) applyToHoldings(res models.QuoteResult) {
	holdings, err := r.store.HoldingsBySymbol(res.Symbol)
	if err != nil {
		r.log.Error("failed to load holdings for refresh",
			zap.String("symbol", res.Symbol), zap.Error(err))
		return
	}

	for _, h := range holdings {
		updated := valuation.ApplyQuote(*h, res)
		if err := r.store.UpdateHolding(&updated); err != nil {
			// A user edit or sell won the race; their write stands and this
			// symbol picks up the next cycle.
			r.log.Debug("skipping refreshed holding",
				zap.String("symbol", res.Symbol), zap.Error(err))
		}
	}
}

func (r *Refresher) applyToWatchlist(res models.QuoteResult) {
	entries, err := r.store.WatchlistBySymbol(res.Symbol)
	if err != nil {
		r.log.Error("failed to load watchlist for refresh",
			zap.String("symbol", res.Symbol), zap.Error(err))
		return
	}

	for _, w := range entries {
		w.CurrentPrice = res.Quote.CurrentPrice
		w.DayChange = res.Quote.DayChange
		w.DayChangePercent = res.Quote.DayChangePercent
		if res.Quote.Name != "" {
			w.Name = res.Quote.Name
		}
		if err := r.store.UpdateWatchlistEntry(w); err != nil {
			r.log.Debug("skipping refreshed watchlist entry",
				zap.String("symbol", res.Symbol), zap.Error(err))
		}
	}
}
