package extraction

import (
	"testing"
	"time"

	"incidentwatch/types"
)

func incidentAt(id string, kind types.IncidentType, address string, conf float64, ts time.Time) *types.Incident {
	return &types.Incident{
		ID:            id,
		Type:          kind,
		Location:      &types.Location{Address: address, Resolved: true, Tier: TierGazetteer},
		Confidence:    conf,
		Timestamp:     ts,
		SourceArticle: types.ArticleRef{ID: "art-" + id},
	}
}

func TestMergeDuplicatesKeepsHighestConfidence(t *testing.T) {
	base := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	in := []*types.Incident{
		incidentAt("low", types.IncidentProtest, "Tehran", 45, base.Add(20*time.Minute)),
		incidentAt("high", types.IncidentProtest, "tehran", 70, base),
		incidentAt("other-type", types.IncidentArrest, "Tehran", 50, base),
		incidentAt("later", types.IncidentProtest, "Tehran", 60, base.Add(3*time.Hour)),
		incidentAt("elsewhere", types.IncidentProtest, "Shiraz", 40, base),
	}

	out := MergeDuplicates(in, time.Hour)

	ids := map[string]*types.Incident{}
	for _, inc := range out {
		ids[inc.ID] = inc
	}
	if len(out) != 4 {
		t.Fatalf("expected 4 incidents after merge, got %d", len(out))
	}
	if _, ok := ids["low"]; ok {
		t.Fatalf("lower-confidence duplicate should be merged away")
	}
	high := ids["high"]
	if high == nil || len(high.RelatedArticles) != 1 || high.RelatedArticles[0].ID != "art-low" {
		t.Fatalf("expected merged source in related articles, got %+v", high)
	}
	for i := 1; i < len(out); i++ {
		if out[i].Confidence > out[i-1].Confidence {
			t.Fatalf("merge output must be sorted by confidence")
		}
	}
}

func TestMergeDuplicatesIgnoresPlaceholderLocations(t *testing.T) {
	base := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	a := incidentAt("a", types.IncidentProtest, "Tehran, Iran", 30, base)
	b := incidentAt("b", types.IncidentProtest, "Tehran, Iran", 32, base)
	a.Location.Tier, b.Location.Tier = TierPlaceholder, TierPlaceholder

	if out := MergeDuplicates([]*types.Incident{a, b}, time.Hour); len(out) != 2 {
		t.Fatalf("placeholder-located incidents must not be merged, got %d", len(out))
	}
}

func TestMergeDuplicatesIgnoresUnresolvedLocatives(t *testing.T) {
	base := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	tehran := incidentAt("tehran", types.IncidentProtest, "university", 60, base)
	shiraz := incidentAt("shiraz", types.IncidentProtest, "university", 55, base.Add(10*time.Minute))
	tehran.Location.Resolved, tehran.Location.Tier = false, ""
	shiraz.Location.Resolved, shiraz.Location.Tier = false, ""

	out := MergeDuplicates([]*types.Incident{tehran, shiraz}, time.Hour)
	if len(out) != 2 {
		t.Fatalf("incidents sharing only a generic locative must not merge, got %d", len(out))
	}
	if len(out[0].RelatedArticles) != 0 {
		t.Fatalf("no source should be folded, got %+v", out[0].RelatedArticles)
	}
}

func TestExtractBatchKeepsLocativeOnlyIncidentsApart(t *testing.T) {
	e := NewExtractor(nil, nil, Config{Now: func() time.Time { return extractNow }})
	articles := []*types.Article{
		{ID: "u1", Content: "Students held a protest and demonstration at the university", PublishedAt: extractNow},
		{ID: "u2", Content: "A protest and demonstration broke out at the university gates", PublishedAt: extractNow.Add(5 * time.Minute)},
	}
	incidents, failed := e.ExtractBatch(articles, time.Hour)
	if len(failed) != 0 {
		t.Fatalf("unexpected failures %v", failed)
	}
	protests := 0
	for _, inc := range incidents {
		if inc.Type == types.IncidentProtest {
			protests++
		}
	}
	if protests != 2 {
		t.Fatalf("expected two separate protest incidents, got %d", protests)
	}
}
