package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"math/bits"
	"strings"

	"incidentwatch/types"

	"github.com/cespare/xxhash/v2"
)

const (
	DefaultShingleWidth        = 3
	DefaultNumHashes           = 128
	DefaultMinTokens           = 5
	DefaultSeed         uint64 = 0x1d8e4e27c47d124f
)

// mersenne61 is the modulus of the universal hash family, 2^61 - 1.
const mersenne61 uint64 = (1 << 61) - 1

// Config controls shingling and signature size. Signatures produced with
// different configs are not comparable.
type Config struct {
	ShingleWidth int    // tokens per shingle, default 3
	NumHashes    int    // signature length, default 128
	MinTokens    int    // below this the signature is degenerate, default 5
	Seed         uint64 // seeds the hash coefficients
}

// Hasher computes content fingerprints and MinHash signatures. It is safe for
// concurrent use.
type Hasher struct {
	width     int
	minTokens int
	a, b      []uint64
}

// NewHasher builds a hasher whose coefficients are derived from cfg.Seed, so
// the same config yields the same signatures in every process.
func NewHasher(cfg Config) *Hasher {
	cfg = applyConfigDefaults(cfg)

	h := &Hasher{
		width:     cfg.ShingleWidth,
		minTokens: cfg.MinTokens,
		a:         make([]uint64, cfg.NumHashes),
		b:         make([]uint64, cfg.NumHashes),
	}
	state := cfg.Seed
	for i := 0; i < cfg.NumHashes; i++ {
		h.a[i] = splitmix64(&state)%(mersenne61-1) + 1
		h.b[i] = splitmix64(&state) % mersenne61
	}
	return h
}

// NumHashes returns the signature length.
func (h *Hasher) NumHashes() int {
	return len(h.a)
}

// Fingerprint returns the hex sha256 of the normalized text.
func (h *Hasher) Fingerprint(text string) string {
	return Fingerprint(text)
}

// Fingerprint returns the hex sha256 of the normalized text. Empty normalized
// text yields an empty fingerprint.
func Fingerprint(text string) string {
	normalized := Normalize(text)
	if normalized == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Signature computes the MinHash signature of the text's token shingles.
func (h *Hasher) Signature(text string) Signature {
	tokens := Tokens(text)
	if len(tokens) < h.minTokens || len(tokens) == 0 {
		return nil
	}

	shingles := shingleHashes(tokens, h.width)
	sig := make(Signature, len(h.a))
	for i := range sig {
		sig[i] = math.MaxUint64
	}
	for _, x := range shingles {
		for i := range sig {
			hi, lo := bits.Mul64(h.a[i], x)
			v := bits.Rem64(hi, lo, mersenne61) + h.b[i]
			if v >= mersenne61 {
				v -= mersenne61
			}
			if v < sig[i] {
				sig[i] = v
			}
		}
	}
	return sig
}

// Annotate fills in the article's fingerprint and signature from its body.
// Values already present are recomputed so they always match the body.
func (h *Hasher) Annotate(article *types.Article) {
	if article == nil {
		return
	}
	body := article.Body()
	article.ContentFingerprint = h.Fingerprint(body)
	article.MinHashSignature = h.Signature(body)
}

// shingleHashes returns the distinct base hashes of the width-token windows.
// Texts shorter than one window hash as a single shingle.
func shingleHashes(tokens []string, width int) []uint64 {
	if len(tokens) < width {
		width = len(tokens)
	}
	seen := make(map[uint64]struct{}, len(tokens))
	out := make([]uint64, 0, len(tokens))
	for i := 0; i+width <= len(tokens); i++ {
		x := xxhash.Sum64String(strings.Join(tokens[i:i+width], " ")) % mersenne61
		if _, ok := seen[x]; ok {
			continue
		}
		seen[x] = struct{}{}
		out = append(out, x)
	}
	return out
}

func splitmix64(state *uint64) uint64 {
	*state += 0x9e3779b97f4a7c15
	z := *state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.ShingleWidth <= 0 {
		cfg.ShingleWidth = DefaultShingleWidth
	}
	if cfg.NumHashes <= 0 {
		cfg.NumHashes = DefaultNumHashes
	}
	if cfg.MinTokens <= 0 {
		cfg.MinTokens = DefaultMinTokens
	}
	if cfg.Seed == 0 {
		cfg.Seed = DefaultSeed
	}
	return cfg
}
