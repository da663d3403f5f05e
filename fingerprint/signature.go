package fingerprint

import (
	"errors"
	"fmt"
)

// ErrLengthMismatch is returned when two signatures of different lengths are
// compared.
var ErrLengthMismatch = errors.New("signature length mismatch")

// Signature is a MinHash signature: one minimum hash value per hash function.
// A nil or empty signature is degenerate and never similar to anything.
type Signature []uint64

// Degenerate reports whether the signature was computed from too little text
// to be compared.
func (s Signature) Degenerate() bool {
	return len(s) == 0
}

// Compare returns the fraction of matching components of a and b, an
// estimate of the Jaccard similarity of the underlying shingle sets.
func Compare(a, b Signature) (float64, error) {
	if a.Degenerate() || b.Degenerate() {
		return 0, nil
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(a), len(b))
	}
	matches := 0
	for i := range a {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(a)), nil
}

// Similarity is Compare with errors collapsed to zero similarity.
func Similarity(a, b Signature) float64 {
	sim, err := Compare(a, b)
	if err != nil {
		return 0
	}
	return sim
}
