package geocoding

import (
	"context"
	"errors"
	"math"
)

// ErrNotFound is returned when no strategy can resolve a location.
var ErrNotFound = errors.New("location not found")

// Result is a resolved location.
type Result struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Address    string  `json:"address"`
	Confidence float64 `json:"confidence"` // 0..1
	// Tier names the strategy that produced the result.
	Tier string `json:"tier"`
}

// Geocoder resolves free-text location names.
type Geocoder interface {
	Resolve(ctx context.Context, text string) (Result, error)
}

// Strategy is one tier of a fallback chain, for example a static dictionary
// or a remote provider.
type Strategy interface {
	Name() string
	Geocode(ctx context.Context, text string) (Result, error)
}

// StrategyFunc adapts a function to the Strategy interface.
type StrategyFunc struct {
	Label string
	Fn    func(ctx context.Context, text string) (Result, error)
}

func (s StrategyFunc) Name() string { return s.Label }

func (s StrategyFunc) Geocode(ctx context.Context, text string) (Result, error) {
	return s.Fn(ctx, text)
}

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between two points using the
// haversine formula.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	rLat1 := lat1 * math.Pi / 180.0
	rLat2 := lat2 * math.Pi / 180.0
	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLon := (lon2 - lon1) * math.Pi / 180.0

	hSin := math.Sin(dLat / 2)
	hSin *= hSin

	vSin := math.Sin(dLon / 2)
	vSin *= vSin

	h := hSin + math.Cos(rLat1)*math.Cos(rLat2)*vSin
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(math.Min(h, 1)))
}
