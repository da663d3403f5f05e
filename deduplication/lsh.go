package deduplication

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"incidentwatch/fingerprint"

	"github.com/cespare/xxhash/v2"
)

// ErrBadBands is returned when bands*rows does not match the signature length.
var ErrBadBands = errors.New("bands*rows must equal signature length")

type bucketKey struct {
	band int
	hash uint64
}

// Index is a banded LSH index over MinHash signatures. Two signatures that
// agree on every row of at least one band land in a shared bucket.
// An Index is not safe for concurrent use; each batch builds its own.
type Index struct {
	bands   int
	rows    int
	buckets map[bucketKey][]string
	order   map[string]int
	sigs    map[string]fingerprint.Signature
}

// NewIndex creates an empty index with the given banding.
func NewIndex(bands, rows int) (*Index, error) {
	if bands <= 0 || rows <= 0 {
		return nil, fmt.Errorf("%w: bands=%d rows=%d", ErrBadBands, bands, rows)
	}
	return &Index{
		bands:   bands,
		rows:    rows,
		buckets: make(map[bucketKey][]string),
		order:   make(map[string]int),
		sigs:    make(map[string]fingerprint.Signature),
	}, nil
}

// SignatureLength is the only signature length this index accepts.
func (ix *Index) SignatureLength() int {
	return ix.bands * ix.rows
}

// Len returns the number of indexed ids.
func (ix *Index) Len() int {
	return len(ix.order)
}

// Insert adds id under every band bucket of sig. Degenerate signatures are not
// indexed. Re-inserting a known id is a no-op.
func (ix *Index) Insert(id string, sig fingerprint.Signature) error {
	if sig.Degenerate() {
		return nil
	}
	if len(sig) != ix.SignatureLength() {
		return fmt.Errorf("%w: got %d, want %d", fingerprint.ErrLengthMismatch, len(sig), ix.SignatureLength())
	}
	if _, ok := ix.order[id]; ok {
		return nil
	}
	ix.order[id] = len(ix.order)
	ix.sigs[id] = sig
	for band := 0; band < ix.bands; band++ {
		key := bucketKey{band: band, hash: ix.bandHash(sig, band)}
		ix.buckets[key] = append(ix.buckets[key], id)
	}
	return nil
}

// Candidates returns every indexed id sharing at least one band bucket with
// sig, in insertion order.
func (ix *Index) Candidates(sig fingerprint.Signature) []string {
	if sig.Degenerate() || len(sig) != ix.SignatureLength() {
		return nil
	}
	seen := make(map[string]struct{})
	var found []string
	for band := 0; band < ix.bands; band++ {
		key := bucketKey{band: band, hash: ix.bandHash(sig, band)}
		for _, id := range ix.buckets[key] {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			found = append(found, id)
		}
	}
	sort.Slice(found, func(i, j int) bool {
		return ix.order[found[i]] < ix.order[found[j]]
	})
	return found
}

// Signature returns the stored signature for id.
func (ix *Index) Signature(id string) (fingerprint.Signature, bool) {
	sig, ok := ix.sigs[id]
	return sig, ok
}

func (ix *Index) bandHash(sig fingerprint.Signature, band int) uint64 {
	buf := make([]byte, 8*ix.rows)
	start := band * ix.rows
	for i := 0; i < ix.rows; i++ {
		binary.LittleEndian.PutUint64(buf[i*8:], sig[start+i])
	}
	return xxhash.Sum64(buf)
}
