package deduplication

import "math"

// With 128-component signatures the default banding is 16 bands of 8 rows.
// The probability that a pair with similarity s shares a bucket is
// 1 - (1 - s^8)^16:
//
//	s = 0.9  -> 0.9999
//	s = 0.8  -> 0.9470
//	s = 0.7  -> 0.6133
//	s = 0.5  -> 0.0607
//	s = 0.3  -> 0.0010
//
// The curve's knee sits near (1/16)^(1/8) = 0.707, just below the 0.8
// confirmation threshold, so candidates that reach confirmation are mostly
// real near-duplicates while recall at 0.8 stays above 0.9.
const (
	DefaultBands = 16
	DefaultRows  = 8
)

// CollisionProbability returns the probability that two signatures with
// Jaccard similarity s share at least one of bands buckets of rows rows.
func CollisionProbability(s float64, bands, rows int) float64 {
	if s <= 0 {
		return 0
	}
	if s >= 1 {
		return 1
	}
	return 1 - math.Pow(1-math.Pow(s, float64(rows)), float64(bands))
}

// ThresholdKnee approximates the similarity at which collision probability
// rises steeply.
func ThresholdKnee(bands, rows int) float64 {
	return math.Pow(1/float64(bands), 1/float64(rows))
}
