// Package prices resolves crypto spot prices through an ordered fetcher chain
// behind the two-tier cache, and keeps a daily close history for the regime
// multiple fallback.
package prices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/cache"
	"github.com/rs/zerolog"
)

const priceTTL = 15 * time.Minute

// CacheKey is the cache key for a ticker's USD price
func CacheKey(ticker string) string {
	return fmt.Sprintf("PRICE_CRYPTO_%s_USD", strings.ToUpper(ticker))
}

// Service is run-scoped; it shares the run's cache
type Service struct {
	cache    *cache.Cache
	fetchers []Fetcher
	log      zerolog.Logger
}

// NewService creates a price service over the given fetchers, tried in order
func NewService(c *cache.Cache, fetchers []Fetcher, log zerolog.Logger) *Service {
	return &Service{
		cache:    c,
		fetchers: fetchers,
		log:      log.With().Str("service", "prices").Logger(),
	}
}

// Get returns the USD price of ticker. bypass skips the cache read but the
// fresh price is still cached.
func (s *Service) Get(ctx context.Context, ticker string, bypass bool) (float64, error) {
	key := CacheKey(ticker)

	var cached float64
	if s.cache != nil && s.cache.Get(ctx, key, &cached, bypass) && cached > 0 {
		return cached, nil
	}

	var errs []error
	for _, f := range s.fetchers {
		price, err := f.FetchUSD(ctx, ticker)
		if err != nil {
			s.log.Warn().Err(err).Str("source", f.Name()).Str("ticker", ticker).Msg("Price source failed")
			errs = append(errs, err)
			continue
		}

		if s.cache != nil {
			if err := s.cache.Put(ctx, key, price, priceTTL); err != nil {
				s.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to cache price")
			}
		}
		s.log.Debug().Str("source", f.Name()).Str("ticker", ticker).Float64("price", price).Msg("Price fetched")
		return price, nil
	}

	if len(errs) == 0 {
		return 0, fmt.Errorf("no price sources configured for %s", ticker)
	}
	return 0, fmt.Errorf("all price sources failed for %s: %w", ticker, errors.Join(errs...))
}
