package deduplication

import (
	"context"
	"errors"
	"fmt"
	"time"

	"incidentwatch/fingerprint"
	"incidentwatch/logging"
	"incidentwatch/types"
)

const (
	SimilarityThreshold float64       = 0.8
	Horizon             time.Duration = 24 * time.Hour
)

// SeenSet is an optional cross-run memory of content fingerprints.
type SeenSet interface {
	Lookup(ctx context.Context, fingerprint string) (id string, ok bool, err error)
	Add(ctx context.Context, fingerprint, id string) error
}

// DeduplicatorConfig holds configuration for the deduplicator
type DeduplicatorConfig struct {
	SimilarityThreshold float64       // Default: 0.8
	Horizon             time.Duration // Default: 24h
	Bands               int           // Default: 16
	Rows                int           // Default: 8
	Hasher              *fingerprint.Hasher
	// Seen is consulted after the in-memory exact-match set. Optional.
	Seen SeenSet
	Now  func() time.Time
}

// Deduplicator decides whether incoming articles repeat something in the
// recency window. It holds no per-batch state; each batch runs in a Session.
type Deduplicator struct {
	hasher    *fingerprint.Hasher
	threshold float64
	horizon   time.Duration
	bands     int
	rows      int
	seen      SeenSet
	now       func() time.Time
}

// NewDeduplicator creates a new instance of the deduplicator
func NewDeduplicator(config DeduplicatorConfig) (*Deduplicator, error) {
	cfg := applyDedupDefaults(config)
	if cfg.Bands*cfg.Rows != cfg.Hasher.NumHashes() {
		return nil, fmt.Errorf("%w: %d*%d != %d", ErrBadBands, cfg.Bands, cfg.Rows, cfg.Hasher.NumHashes())
	}
	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		return nil, fmt.Errorf("similarity threshold %v out of range (0,1]", cfg.SimilarityThreshold)
	}
	return &Deduplicator{
		hasher:    cfg.Hasher,
		threshold: cfg.SimilarityThreshold,
		horizon:   cfg.Horizon,
		bands:     cfg.Bands,
		rows:      cfg.Rows,
		seen:      cfg.Seen,
		now:       cfg.Now,
	}, nil
}

// Hasher returns the hasher used to annotate articles.
func (d *Deduplicator) Hasher() *fingerprint.Hasher {
	return d.hasher
}

// Horizon returns the recency window length.
func (d *Deduplicator) Horizon() time.Duration {
	return d.horizon
}

// Session holds the exact-match set and LSH index for one batch.
type Session struct {
	d         *Deduplicator
	exact     map[string]string
	index     *Index
	checkedAt time.Time
}

// NewSession builds the in-memory structures from window. Window articles
// older than the horizon are ignored; missing hashes are computed.
func (d *Deduplicator) NewSession(window []*types.Article) *Session {
	// bands and rows were validated in NewDeduplicator
	index, _ := NewIndex(d.bands, d.rows)
	s := &Session{
		d:         d,
		exact:     make(map[string]string, len(window)),
		index:     index,
		checkedAt: d.now(),
	}
	cutoff := s.checkedAt.Add(-d.horizon)
	skipped := 0
	for _, a := range window {
		if a == nil {
			continue
		}
		if ts := articleTime(a); !ts.IsZero() && ts.Before(cutoff) {
			skipped++
			continue
		}
		if a.ContentFingerprint == "" && a.Body() != "" {
			d.hasher.Annotate(a)
		}
		s.Absorb(a)
	}
	logging.Debug("dedup session ready", "window", len(window), "indexed", index.Len(), "stale", skipped)
	return s
}

// Check classifies article against everything absorbed so far, without
// absorbing it.
func (s *Session) Check(ctx context.Context, article *types.Article) types.DuplicateDecision {
	decision := types.DuplicateDecision{Kind: types.DuplicateNone, CheckedAt: s.checkedAt}
	if article == nil {
		return decision
	}

	fp, sig := article.ContentFingerprint, fingerprint.Signature(article.MinHashSignature)
	if fp == "" {
		fp = s.d.hasher.Fingerprint(article.Body())
		sig = s.d.hasher.Signature(article.Body())
	}
	if fp == "" {
		return decision
	}

	if id, ok := s.exact[fp]; ok {
		decision.Kind, decision.MatchingID, decision.Similarity = types.DuplicateExact, id, 1
		return decision
	}
	if s.d.seen != nil {
		id, ok, err := s.d.seen.Lookup(ctx, fp)
		if err != nil {
			logging.Warn("seen-set lookup failed", "article", article.ID, "err", err)
		}
		if ok {
			decision.Kind, decision.MatchingID, decision.Similarity = types.DuplicateExact, id, 1
			return decision
		}
	}

	if sig.Degenerate() {
		return decision
	}
	if len(sig) != s.index.SignatureLength() {
		logging.Warn("signature length mismatch, treating as unique",
			"article", article.ID, "got", len(sig), "want", s.index.SignatureLength())
		return decision
	}

	var bestID string
	var best float64
	for _, id := range s.index.Candidates(sig) {
		other, _ := s.index.Signature(id)
		sim, err := fingerprint.Compare(sig, other)
		if err != nil {
			if errors.Is(err, fingerprint.ErrLengthMismatch) {
				logging.Warn("skipping candidate", "article", article.ID, "candidate", id, "err", err)
			}
			continue
		}
		if sim >= s.d.threshold && sim > best {
			best, bestID = sim, id
		}
	}
	if bestID != "" {
		decision.Kind, decision.MatchingID, decision.Similarity = types.DuplicateFuzzy, bestID, best
	}
	return decision
}

// Absorb adds the article to the exact-match set and the LSH index.
func (s *Session) Absorb(article *types.Article) {
	if article == nil || article.ContentFingerprint == "" {
		return
	}
	if _, ok := s.exact[article.ContentFingerprint]; !ok {
		s.exact[article.ContentFingerprint] = article.ID
	}
	if err := s.index.Insert(article.ID, article.MinHashSignature); err != nil {
		logging.Warn("not indexing article", "article", article.ID, "err", err)
	}
}

// Process annotates article, checks it and absorbs it when unique.
func (s *Session) Process(ctx context.Context, article *types.Article) types.DuplicateDecision {
	s.d.hasher.Annotate(article)
	decision := s.Check(ctx, article)
	if decision.IsDuplicate() {
		return decision
	}
	s.Absorb(article)
	if s.d.seen != nil && article.ContentFingerprint != "" {
		if err := s.d.seen.Add(ctx, article.ContentFingerprint, article.ID); err != nil {
			logging.Warn("seen-set add failed", "article", article.ID, "err", err)
		}
	}
	return decision
}

// IsDuplicate checks one article against window.
func (d *Deduplicator) IsDuplicate(ctx context.Context, article *types.Article, window []*types.Article) types.DuplicateDecision {
	if article != nil {
		d.hasher.Annotate(article)
	}
	return d.NewSession(window).Check(ctx, article)
}

// BatchResult is the outcome of deduplicating one batch.
type BatchResult struct {
	Unique  []*types.Article
	Results []types.ArticleResult
	Exact   int
	Fuzzy   int
	Errors  int
}

// ProcessBatch deduplicates articles against window and against each other,
// in input order. A failure on one article is recorded and the batch goes on.
func (d *Deduplicator) ProcessBatch(ctx context.Context, articles []*types.Article, window []*types.Article) *BatchResult {
	session := d.NewSession(window)
	result := &BatchResult{Results: make([]types.ArticleResult, 0, len(articles))}

	for _, article := range articles {
		if article == nil {
			continue
		}
		r := session.processIsolated(ctx, article)
		switch r.Status {
		case types.StatusNew:
			result.Unique = append(result.Unique, article)
		case types.StatusDuplicate:
			if r.Decision.Kind == types.DuplicateExact {
				result.Exact++
			} else {
				result.Fuzzy++
			}
			logging.Debug("duplicate article", "article", article.ID, "kind", r.Decision.Kind,
				"match", r.Decision.MatchingID, "similarity", r.Decision.Similarity)
		default:
			result.Errors++
		}
		result.Results = append(result.Results, r)
	}

	logging.Info("deduplication complete", "total", len(articles), "unique", len(result.Unique),
		"exact", result.Exact, "fuzzy", result.Fuzzy, "errors", result.Errors)
	return result
}

func (s *Session) processIsolated(ctx context.Context, article *types.Article) (r types.ArticleResult) {
	r.Article = article
	defer func() {
		if p := recover(); p != nil {
			logging.Error("deduplication panicked", "article", article.ID, "panic", p)
			r.Status = types.StatusError
			r.Error = fmt.Sprint(p)
		}
	}()

	r.Decision = s.Process(ctx, article)
	if r.Decision.IsDuplicate() {
		r.Status = types.StatusDuplicate
	} else {
		r.Status = types.StatusNew
	}
	return r
}

func articleTime(a *types.Article) time.Time {
	if !a.PublishedAt.IsZero() {
		return a.PublishedAt
	}
	return a.FetchedAt
}

func applyDedupDefaults(config DeduplicatorConfig) DeduplicatorConfig {
	if config.SimilarityThreshold == 0 {
		config.SimilarityThreshold = SimilarityThreshold
	}
	if config.Horizon == 0 {
		config.Horizon = Horizon
	}
	if config.Bands == 0 {
		config.Bands = DefaultBands
	}
	if config.Rows == 0 {
		config.Rows = DefaultRows
	}
	if config.Hasher == nil {
		config.Hasher = fingerprint.NewHasher(fingerprint.Config{})
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return config
}
