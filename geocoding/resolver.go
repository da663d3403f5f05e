package geocoding

import (
	"context"
	"errors"
	"sync"
	"time"

	"incidentwatch/extraction"
	"incidentwatch/logging"
	"incidentwatch/types"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	DefaultConcurrency = 4
	DefaultTimeout     = 5 * time.Second
	DefaultRate        = 5 // requests per second
)

// ResolverConfig bounds calls to the geocoder.
type ResolverConfig struct {
	Concurrency int
	Timeout     time.Duration // per lookup
	// RatePerSecond limits lookups; zero uses DefaultRate, negative disables.
	RatePerSecond float64
}

// Resolver attaches coordinates to incident locations that extraction could
// not resolve. A failed lookup leaves the location unresolved.
type Resolver struct {
	geocoder    Geocoder
	concurrency int
	timeout     time.Duration
	limiter     *rate.Limiter
}

// NewResolver builds a resolver around geocoder.
func NewResolver(geocoder Geocoder, cfg ResolverConfig) *Resolver {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	limit := rate.Limit(cfg.RatePerSecond)
	switch {
	case cfg.RatePerSecond == 0:
		limit = DefaultRate
	case cfg.RatePerSecond < 0:
		limit = rate.Inf
	}
	return &Resolver{
		geocoder:    geocoder,
		concurrency: cfg.Concurrency,
		timeout:     cfg.Timeout,
		limiter:     rate.NewLimiter(limit, cfg.Concurrency),
	}
}

// ResolveStats summarizes one ResolveIncidents call.
type ResolveStats struct {
	Lookups    int
	Resolved   int
	Unresolved int
}

// ResolveIncidents geocodes each distinct unresolved address once and applies
// the results to every incident carrying it. Placeholder locations are left
// alone. It never returns early because one lookup failed.
func (r *Resolver) ResolveIncidents(ctx context.Context, incidents []*types.Incident) ResolveStats {
	pending := make(map[string][]*types.Incident)
	texts := make(map[string]string)
	for _, inc := range incidents {
		if !needsGeocoding(inc) {
			continue
		}
		key := CacheKey(inc.Location.Address)
		if key == "" {
			continue
		}
		pending[key] = append(pending[key], inc)
		texts[key] = inc.Location.Address
	}

	var stats ResolveStats
	if len(pending) == 0 {
		return stats
	}

	var mu sync.Mutex
	results := make(map[string]Result, len(pending))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for key, text := range texts {
		g.Go(func() error {
			res, err := r.lookup(ctx, text)
			if err != nil {
				if !errors.Is(err, ErrNotFound) {
					logging.Warn("geocoding failed, location left unresolved", "location", text, "err", err)
				}
				return nil
			}
			mu.Lock()
			results[key] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	stats.Lookups = len(texts)
	for key, group := range pending {
		res, ok := results[key]
		for _, inc := range group {
			if !ok {
				stats.Unresolved++
				continue
			}
			inc.Location.Lat, inc.Location.Lon = res.Lat, res.Lon
			inc.Location.Address = res.Address
			inc.Location.Resolved = true
			inc.Location.Tier = res.Tier
			stats.Resolved++
		}
	}
	logging.Info("geocoding complete", "lookups", stats.Lookups, "resolved", stats.Resolved, "unresolved", stats.Unresolved)
	return stats
}

func (r *Resolver) lookup(ctx context.Context, text string) (Result, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Result{}, err
	}
	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.geocoder.Resolve(lookupCtx, text)
}

func needsGeocoding(inc *types.Incident) bool {
	if inc == nil || inc.Location == nil {
		return false
	}
	loc := inc.Location
	return !loc.Resolved && loc.Tier != extraction.TierPlaceholder && loc.Address != ""
}
