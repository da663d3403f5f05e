package geocoding

import (
	"context"

	"incidentwatch/extraction"
	"incidentwatch/fingerprint"
)

// GazetteerStrategy resolves against the static place dictionary. It is the
// last tier of most chains.
type GazetteerStrategy struct {
	gazetteer *extraction.Gazetteer
}

// NewGazetteerStrategy wraps g; nil uses the embedded gazetteer.
func NewGazetteerStrategy(g *extraction.Gazetteer) *GazetteerStrategy {
	if g == nil {
		g = extraction.DefaultGazetteer()
	}
	return &GazetteerStrategy{gazetteer: g}
}

func (s *GazetteerStrategy) Name() string { return "gazetteer" }

// Geocode looks the text up as a whole, then falls back to the most specific
// place mentioned inside it.
func (s *GazetteerStrategy) Geocode(_ context.Context, text string) (Result, error) {
	if p, ok := s.gazetteer.Lookup(text); ok && p.HasCoordinates() {
		return Result{Lat: p.Lat, Lon: p.Lon, Address: p.Name, Confidence: 0.9}, nil
	}

	var located []extraction.PlaceMatch
	for _, m := range s.gazetteer.Match(fingerprint.Normalize(text)) {
		if m.Place.HasCoordinates() {
			located = append(located, m)
		}
	}
	if best, ok := extraction.Best(located); ok {
		return Result{Lat: best.Place.Lat, Lon: best.Place.Lon, Address: best.Place.Name, Confidence: 0.7}, nil
	}
	return Result{}, ErrNotFound
}
