package deduplication

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"incidentwatch/fingerprint"
	"incidentwatch/types"
)

const reportBody = "Residents of the eastern district said that security forces closed several " +
	"roads on Thursday evening after a gathering outside the municipal building grew " +
	"larger than expected. Shop owners lowered their shutters early and public buses " +
	"were diverted around the area for several hours. Witnesses described a tense but " +
	"mostly calm atmosphere, with small groups chanting slogans before moving toward " +
	"the main square. Local officials have not released any statement about the " +
	"closures or about reports that some people were taken away in unmarked vehicles."

var fixedNow = time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestDeduplicator(t *testing.T, seen SeenSet) *Deduplicator {
	t.Helper()
	cfg := DeduplicatorConfig{Now: func() time.Time { return fixedNow }}
	if seen != nil {
		cfg.Seen = seen
	}
	d, err := NewDeduplicator(cfg)
	if err != nil {
		t.Fatalf("failed to create deduplicator: %v", err)
	}
	return d
}

func article(id, body string) *types.Article {
	return &types.Article{
		ID:          id,
		Title:       "Report " + id,
		Content:     body,
		Source:      types.SourceTelegram,
		PublishedAt: fixedNow.Add(-time.Hour),
	}
}

func TestExactDuplicateWithDifferentID(t *testing.T) {
	d := newTestDeduplicator(t, nil)
	batch := []*types.Article{
		article("a1", reportBody),
		article("a2", "  "+reportBody+"\n"),
	}

	result := d.ProcessBatch(context.Background(), batch, nil)

	if len(result.Unique) != 1 || result.Unique[0].ID != "a1" {
		t.Fatalf("expected only a1 to be unique, got %d unique", len(result.Unique))
	}
	second := result.Results[1].Decision
	if second.Kind != types.DuplicateExact || second.MatchingID != "a1" {
		t.Fatalf("expected a2 exact duplicate of a1, got %+v", second)
	}
}

func TestFuzzyDuplicateWithPromoSentence(t *testing.T) {
	d := newTestDeduplicator(t, nil)
	batch := []*types.Article{
		article("orig", reportBody),
		article("promo", reportBody+" Join our channel for the latest updates."),
	}

	result := d.ProcessBatch(context.Background(), batch, nil)

	decision := result.Results[1].Decision
	if decision.Kind != types.DuplicateFuzzy {
		t.Fatalf("expected fuzzy duplicate, got %+v", decision)
	}
	if decision.MatchingID != "orig" {
		t.Fatalf("expected match against orig, got %s", decision.MatchingID)
	}
	if decision.Similarity < SimilarityThreshold {
		t.Fatalf("expected similarity >= %.2f, got %.2f", SimilarityThreshold, decision.Similarity)
	}
}

func TestUnrelatedArticlesAreUnique(t *testing.T) {
	d := newTestDeduplicator(t, nil)
	batch := []*types.Article{
		article("a", reportBody),
		article("b", "Forecasters expect heavy snow across the northern mountains this weekend, with temperatures well below freezing and travel warnings for the main passes."),
	}

	result := d.ProcessBatch(context.Background(), batch, nil)
	if len(result.Unique) != 2 {
		t.Fatalf("expected both articles unique, got %d", len(result.Unique))
	}
}

func TestReprocessingAbsorbedBatchIsAllDuplicates(t *testing.T) {
	d := newTestDeduplicator(t, nil)
	first := []*types.Article{
		article("a", reportBody),
		article("b", "Forecasters expect heavy snow across the northern mountains this weekend, with temperatures well below freezing."),
		article("c", "تظاهرات گسترده در تهران و بازداشت چند دانشجو در نزدیکی دانشگاه گزارش شده است و نیروهای امنیتی مستقر شدند"),
	}
	result := d.ProcessBatch(context.Background(), first, nil)
	if len(result.Unique) != len(first) {
		t.Fatalf("first run: expected %d unique, got %d", len(first), len(result.Unique))
	}

	again := make([]*types.Article, len(first))
	for i, a := range first {
		copied := *a
		copied.ID = a.ID + "-again"
		again[i] = &copied
	}
	second := d.ProcessBatch(context.Background(), again, result.Unique)
	if len(second.Unique) != 0 {
		t.Fatalf("second run: expected no unique articles, got %d", len(second.Unique))
	}
	if second.Exact != len(first) {
		t.Fatalf("second run: expected %d exact duplicates, got %d", len(first), second.Exact)
	}
}

func TestDegenerateArticlesAreNeverFuzzyMatched(t *testing.T) {
	d := newTestDeduplicator(t, nil)
	batch := []*types.Article{
		article("e1", ""),
		article("e2", "   "),
		article("s1", "breaking news"),
		article("s2", "urgent update"),
	}

	result := d.ProcessBatch(context.Background(), batch, nil)
	if len(result.Unique) != len(batch) {
		t.Fatalf("expected all degenerate articles unique, got %d of %d", len(result.Unique), len(batch))
	}
	for _, r := range result.Results {
		if r.Decision.Kind != types.DuplicateNone {
			t.Fatalf("article %s got %s, want none", r.Article.ID, r.Decision.Kind)
		}
	}
}

func TestSignatureLengthMismatchIsNotSimilar(t *testing.T) {
	d := newTestDeduplicator(t, nil)
	stored := article("old", reportBody)
	d.Hasher().Annotate(stored)

	incoming := article("new", reportBody+" Join our channel for the latest updates.")
	incoming.ContentFingerprint = fingerprint.Fingerprint(incoming.Body())
	incoming.MinHashSignature = fingerprint.NewHasher(fingerprint.Config{NumHashes: 64}).Signature(incoming.Body())

	decision := d.NewSession([]*types.Article{stored}).Check(context.Background(), incoming)
	if decision.Kind != types.DuplicateNone {
		t.Fatalf("mismatched signature should be treated as not similar, got %+v", decision)
	}
}

func TestWindowOutsideHorizonIsIgnored(t *testing.T) {
	d := newTestDeduplicator(t, nil)
	old := article("old", reportBody)
	old.PublishedAt = fixedNow.Add(-48 * time.Hour)

	decision := d.IsDuplicate(context.Background(), article("new", reportBody), []*types.Article{old})
	if decision.IsDuplicate() {
		t.Fatalf("article outside the horizon must not match, got %+v", decision)
	}

	recent := article("recent", reportBody)
	decision = d.IsDuplicate(context.Background(), article("new", reportBody), []*types.Article{recent})
	if decision.Kind != types.DuplicateExact || decision.MatchingID != "recent" {
		t.Fatalf("expected exact match against recent, got %+v", decision)
	}
}

type fakeSeenSet struct {
	ids     map[string]string
	failGet bool
}

func (f *fakeSeenSet) Lookup(_ context.Context, fp string) (string, bool, error) {
	if f.failGet {
		return "", false, errors.New("connection refused")
	}
	id, ok := f.ids[fp]
	return id, ok, nil
}

func (f *fakeSeenSet) Add(_ context.Context, fp, id string) error {
	if _, ok := f.ids[fp]; !ok {
		f.ids[fp] = id
	}
	return nil
}

func TestSeenSetCatchesCrossRunDuplicates(t *testing.T) {
	seen := &fakeSeenSet{ids: map[string]string{}}
	d := newTestDeduplicator(t, seen)

	d.ProcessBatch(context.Background(), []*types.Article{article("run1", reportBody)}, nil)
	result := d.ProcessBatch(context.Background(), []*types.Article{article("run2", reportBody)}, nil)

	decision := result.Results[0].Decision
	if decision.Kind != types.DuplicateExact || decision.MatchingID != "run1" {
		t.Fatalf("expected exact duplicate from seen set, got %+v", decision)
	}
}

func TestSeenSetFailureDoesNotAbortBatch(t *testing.T) {
	d := newTestDeduplicator(t, &fakeSeenSet{ids: map[string]string{}, failGet: true})

	batch := []*types.Article{article("a", reportBody), article("b", reportBody)}
	result := d.ProcessBatch(context.Background(), batch, nil)
	if len(result.Unique) != 1 || result.Exact != 1 {
		t.Fatalf("expected in-memory dedup to continue, got unique=%d exact=%d", len(result.Unique), result.Exact)
	}
}

func TestNewDeduplicatorRejectsBadBanding(t *testing.T) {
	_, err := NewDeduplicator(DeduplicatorConfig{Bands: 10, Rows: 10})
	if !errors.Is(err, ErrBadBands) {
		t.Fatalf("expected ErrBadBands, got %v", err)
	}
}

func TestBatchOrderIsInputOrder(t *testing.T) {
	d := newTestDeduplicator(t, nil)
	batch := make([]*types.Article, 0, 5)
	for i := 0; i < 5; i++ {
		batch = append(batch, article(fmt.Sprintf("n%d", i), fmt.Sprintf("%s Update number %d from the field office today.", reportBody[:120], i)))
	}
	result := d.ProcessBatch(context.Background(), batch, nil)
	for i, r := range result.Results {
		if r.Article.ID != batch[i].ID {
			t.Fatalf("result %d is %s, want %s", i, r.Article.ID, batch[i].ID)
		}
	}
}
