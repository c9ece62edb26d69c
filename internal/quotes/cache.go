package quotes

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jmcnair/stockfolio/internal/models"
)

// Provider supplies quotes for single symbols
type Provider interface {
	FetchQuote(ctx context.Context, symbol string) (*models.Quote, error)
}

// CachedProvider puts a short-TTL Redis cache in front of a Provider. Cache
// failures degrade to a direct fetch; they never fail a quote request.
type CachedProvider struct {
	provider Provider
	rdb      *redis.Client
	ttl      time.Duration
}

// NewCachedProvider wraps a provider with a Redis cache
func NewCachedProvider(provider Provider, rdb *redis.Client, ttl time.Duration) *CachedProvider {
	return &CachedProvider{provider: provider, rdb: rdb, ttl: ttl}
}

func cacheKey(symbol string) string {
	return "quote:" + symbol
}

// FetchQuote returns the cached quote when fresh, fetching and caching
// otherwise
func (c *CachedProvider) FetchQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	if data, err := c.rdb.Get(ctx, cacheKey(symbol)).Bytes(); err == nil {
		var quote models.Quote
		if err := json.Unmarshal(data, &quote); err == nil {
			return &quote, nil
		}
	}

	quote, err := c.provider.FetchQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(quote); err == nil {
		c.rdb.Set(ctx, cacheKey(symbol), data, c.ttl)
	}
	return quote, nil
}
