package types

import "time"

// DuplicateKind classifies the outcome of a duplicate check.
type DuplicateKind string

const (
	DuplicateNone  DuplicateKind = "none"
	DuplicateExact DuplicateKind = "exact"
	DuplicateFuzzy DuplicateKind = "fuzzy"
)

// DuplicateDecision contains the result of a deduplication check
type DuplicateDecision struct {
	Kind       DuplicateKind `json:"kind"`
	MatchingID string        `json:"matching_id,omitempty"`
	Similarity float64       `json:"similarity,omitempty"`
	CheckedAt  time.Time     `json:"checked_at"`
}

// IsDuplicate reports whether the decision discards the article.
func (d DuplicateDecision) IsDuplicate() bool {
	return d.Kind == DuplicateExact || d.Kind == DuplicateFuzzy
}

// Article processing status values
const (
	StatusNew       = "new"
	StatusDuplicate = "duplicate"
	StatusFailed    = "failed"
	StatusError     = "error"
)

// ArticleResult represents the processing outcome for a single article
type ArticleResult struct {
	Article  *Article          `json:"article"`
	Status   string            `json:"status"`
	Decision DuplicateDecision `json:"decision"`
	Error    string            `json:"error,omitempty"`
}

// FailedWrite records one item a batch write could not persist.
type FailedWrite struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BatchWriteResult reports partial success of a batched write. Items listed in
// Saved stay written even when others fail.
type BatchWriteResult struct {
	Saved  []string      `json:"saved"`
	Failed []FailedWrite `json:"failed,omitempty"`
}

// FailedIDs returns the ids of items that were not written.
func (r BatchWriteResult) FailedIDs() []string {
	ids := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		ids = append(ids, f.ID)
	}
	return ids
}

// Merge folds other into r.
func (r *BatchWriteResult) Merge(other BatchWriteResult) {
	r.Saved = append(r.Saved, other.Saved...)
	r.Failed = append(r.Failed, other.Failed...)
}
