package geocoding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"incidentwatch/logging"
)

const (
	DefaultCacheTTL    = 7 * 24 * time.Hour
	DefaultNegativeTTL = 6 * time.Hour
)

// Chain tries each strategy in order until one resolves the text, recording
// the satisfying tier on the result. Outcomes, including misses, are cached.
type Chain struct {
	strategies  []Strategy
	cache       Cache
	ttl         time.Duration
	negativeTTL time.Duration
}

// ChainConfig configures a Chain.
type ChainConfig struct {
	Cache       Cache         // optional
	TTL         time.Duration // default 7 days
	NegativeTTL time.Duration // default 6 hours
}

// NewChain builds a chain over strategies, tried in the given order.
func NewChain(cfg ChainConfig, strategies ...Strategy) *Chain {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheTTL
	}
	if cfg.NegativeTTL <= 0 {
		cfg.NegativeTTL = DefaultNegativeTTL
	}
	return &Chain{strategies: strategies, cache: cfg.Cache, ttl: cfg.TTL, negativeTTL: cfg.NegativeTTL}
}

// Tiers returns the strategy names in order.
func (c *Chain) Tiers() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Resolve implements Geocoder.
func (c *Chain) Resolve(ctx context.Context, text string) (Result, error) {
	key := CacheKey(text)
	if key == "" {
		return Result{}, ErrNotFound
	}

	if c.cache != nil {
		entry, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			logging.Warn("geocode cache read failed", "location", text, "err", err)
		} else if ok {
			if !entry.Found {
				return Result{}, ErrNotFound
			}
			return entry.Result, nil
		}
	}

	var lastErr error
	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		res, err := s.Geocode(ctx, text)
		if err == nil {
			res.Tier = s.Name()
			c.store(ctx, key, Entry{Result: res, Found: true}, c.ttl)
			return res, nil
		}
		if !errors.Is(err, ErrNotFound) {
			logging.Warn("geocoding tier failed", "tier", s.Name(), "location", text, "err", err)
			lastErr = err
		}
	}

	// Only cache a miss when every tier answered; transient failures retry.
	if lastErr != nil {
		return Result{}, fmt.Errorf("all geocoding tiers failed for %q: %w", text, lastErr)
	}
	c.store(ctx, key, Entry{Found: false}, c.negativeTTL)
	return Result{}, ErrNotFound
}

func (c *Chain) store(ctx context.Context, key string, entry Entry, ttl time.Duration) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, entry, ttl); err != nil {
		logging.Warn("geocode cache write failed", "key", key, "err", err)
	}
}
