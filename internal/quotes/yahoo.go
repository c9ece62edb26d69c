// Package quotes integrates the external market-data provider: a Yahoo
// Finance chart-API client, a Redis cache in front of it, and the background
// refresher that fans fresh prices out to stored holdings and watchlists.
package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jmcnair/stockfolio/internal/apperrors"
	"github.com/jmcnair/stockfolio/internal/config"
	"github.com/jmcnair/stockfolio/internal/models"
)

// validSymbol matches stock symbols like AAPL, MSFT, 600519.SS, 0700.HK
var validSymbol = regexp.MustCompile(`^[A-Za-z0-9^.\-]{1,12}(\.[A-Za-z]{1,4})?$`)

func validateSymbol(symbol string) error {
	if symbol == "" {
		return apperrors.Validation("symbol cannot be empty")
	}
	if len(symbol) > 20 {
		return apperrors.Validation("symbol too long: %s", symbol)
	}
	if !validSymbol.MatchString(symbol) {
		return apperrors.Validation("invalid symbol format: %s", symbol)
	}
	return nil
}

// Client fetches quotes from the Yahoo Finance chart API. The fallback host
// is tried when the primary fails; beyond that a symbol's quote is reported
// unavailable, never synthesized.
type Client struct {
	httpClient *http.Client
	baseURLs   []string
}

// NewClient creates a Yahoo Finance client from config
func NewClient(cfg config.QuotesConfig) *Client {
	urls := []string{cfg.BaseURL}
	if cfg.FallbackURL != "" && cfg.FallbackURL != cfg.BaseURL {
		urls = append(urls, cfg.FallbackURL)
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURLs: urls,
	}
}

// FetchQuote fetches a real-time quote for one symbol
func (c *Client) FetchQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	if err := validateSymbol(symbol); err != nil {
		return nil, err
	}

	var lastErr error
	for _, base := range c.baseURLs {
		quote, err := c.fetchFrom(ctx, base, symbol)
		if err == nil {
			return quote, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, apperrors.QuoteUnavailable(symbol, lastErr)
}

func (c *Client) fetchFrom(ctx context.Context, base, symbol string) (*models.Quote, error) {
	url := fmt.Sprintf("%s/%s?interval=1d&range=1d", base, symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", "stockfolio/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching quote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if result.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo error: %s", result.Chart.Error.Description)
	}
	if len(result.Chart.Result) == 0 {
		return nil, fmt.Errorf("no data for symbol: %s", symbol)
	}

	meta := result.Chart.Result[0].Meta
	price := decimal.NewFromFloat(meta.RegularMarketPrice)
	prevClose := decimal.NewFromFloat(meta.ChartPreviousClose)

	dayChange := decimal.Zero
	dayChangePercent := decimal.Zero
	if prevClose.IsPositive() {
		dayChange = price.Sub(prevClose)
		dayChangePercent = dayChange.Div(prevClose).Mul(decimal.NewFromInt(100))
	}

	name := meta.LongName
	if name == "" {
		name = meta.ShortName
	}

	return &models.Quote{
		Symbol:           symbol,
		Name:             name,
		CurrentPrice:     price,
		PreviousClose:    prevClose,
		DayChange:        dayChange,
		DayChangePercent: dayChangePercent,
		FetchedAt:        time.Unix(meta.RegularMarketTime, 0),
	}, nil
}

// Yahoo chart API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta chartMeta `json:"meta"`
}

type chartMeta struct {
	Symbol             string  `json:"symbol"`
	LongName           string  `json:"longName"`
	ShortName          string  `json:"shortName"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
	ChartPreviousClose float64 `json:"chartPreviousClose"`
	RegularMarketTime  int64   `json:"regularMarketTime"`
}
