package extraction

import (
	"math"
	"strings"
	"testing"
	"time"

	"incidentwatch/types"
)

var extractNow = time.Date(2024, 3, 14, 15, 30, 0, 0, time.UTC)

func newTestExtractor() *Extractor {
	return NewExtractor(nil, nil, Config{Now: func() time.Time { return extractNow }})
}

func byType(incidents []*types.Incident) map[types.IncidentType]*types.Incident {
	out := make(map[types.IncidentType]*types.Incident, len(incidents))
	for _, inc := range incidents {
		out[inc.Type] = inc
	}
	return out
}

func TestExtractProtestAndArrestInTehran(t *testing.T) {
	e := newTestExtractor()
	article := &types.Article{
		ID:          "tg-1001",
		Content:     "Large protest in Tehran, several arrested near the university",
		Source:      types.SourceTelegram,
		PublishedAt: extractNow.Add(-2 * time.Hour),
	}

	incidents := e.Extract(article)
	if len(incidents) < 2 {
		t.Fatalf("expected at least 2 incidents, got %d", len(incidents))
	}

	found := byType(incidents)
	protest, ok := found[types.IncidentProtest]
	if !ok {
		t.Fatalf("expected a protest incident")
	}
	arrest, ok := found[types.IncidentArrest]
	if !ok {
		t.Fatalf("expected an arrest incident")
	}

	if !e.Persistable(protest) || protest.NeedsReview {
		t.Fatalf("protest confidence %.1f should clear the persistence threshold", protest.Confidence)
	}
	for _, inc := range []*types.Incident{protest, arrest} {
		if inc.Location == nil || !strings.Contains(inc.Location.Address, "Tehran") {
			t.Fatalf("%s: expected Tehran-area location, got %+v", inc.Type, inc.Location)
		}
		if !inc.Location.Resolved || inc.Location.Tier != TierGazetteer {
			t.Fatalf("%s: expected gazetteer-resolved location, got %+v", inc.Type, inc.Location)
		}
		if !inc.Timestamp.Equal(article.PublishedAt) {
			t.Fatalf("%s: timestamp should come from publishedAt", inc.Type)
		}
		if inc.SourceArticle.ID != article.ID {
			t.Fatalf("%s: source article not recorded", inc.Type)
		}
	}

	if incidents[0].Confidence < incidents[len(incidents)-1].Confidence {
		t.Fatalf("incidents must be ordered by descending confidence")
	}
	if got := strings.Join(protest.Keywords, ","); !strings.HasPrefix(got, "protest") || !strings.Contains(got, "tehran") {
		t.Fatalf("unexpected protest keywords %q", got)
	}
	if got := arrest.Keywords; len(got) < 2 || got[0] != "arrest" && got[0] != "arrested" {
		t.Fatalf("unexpected arrest keywords %v", got)
	}
}

func TestExtractWeatherReportYieldsNothing(t *testing.T) {
	e := newTestExtractor()
	article := &types.Article{
		ID:    "rss-weather",
		Title: "Weekend forecast",
		Content: "Forecasters expect heavy rain and strong winds across the northern provinces on Friday, " +
			"with temperatures dropping to near freezing in Tabriz and Rasht. Drivers are advised to " +
			"carry chains on mountain roads and to check conditions before travelling.",
		Source: types.SourceRSS,
	}

	if incidents := e.Extract(article); len(incidents) != 0 {
		t.Fatalf("expected no incidents, got %d (first: %s %.1f)", len(incidents), incidents[0].Type, incidents[0].Confidence)
	}
}

func TestExtractFarsi(t *testing.T) {
	e := newTestExtractor()
	article := &types.Article{
		ID:      "fa-1",
		Content: "تظاهرات گسترده در مشهد؛ چند نفر بازداشت شدند و گزارش‌هایی از زخمی شدن معترضان منتشر شده است",
	}

	found := byType(e.Extract(article))
	for _, kind := range []types.IncidentType{types.IncidentProtest, types.IncidentArrest, types.IncidentInjury} {
		inc, ok := found[kind]
		if !ok {
			t.Fatalf("expected %s incident from Farsi text", kind)
		}
		if inc.Location.Address != "Mashhad" {
			t.Fatalf("%s: expected Mashhad, got %q", kind, inc.Location.Address)
		}
	}
}

func TestExtractWithoutLocationUsesPlaceholder(t *testing.T) {
	e := newTestExtractor()
	article := &types.Article{ID: "vague", Content: "Witnesses say a protest took place this afternoon."}

	incidents := e.Extract(article)
	if len(incidents) != 1 {
		t.Fatalf("expected 1 incident, got %d", len(incidents))
	}
	inc := incidents[0]
	if inc.Location == nil || inc.Location.Resolved || inc.Location.Tier != TierPlaceholder {
		t.Fatalf("expected unresolved placeholder location, got %+v", inc.Location)
	}
	want := 10*ScoreFactor - NoLocationPenalty
	if inc.Confidence != want {
		t.Fatalf("confidence = %.1f; want %.1f", inc.Confidence, want)
	}
	if !inc.NeedsReview || e.Persistable(inc) {
		t.Fatalf("placeholder-located single keyword should need review")
	}
}

func TestExtractDiscardsWeakCandidates(t *testing.T) {
	e := newTestExtractor()
	// "crowd" alone scores 16, minus the penalty: below the minimum
	article := &types.Article{ID: "weak", Content: "A crowd waited for the bus this morning."}
	if incidents := e.Extract(article); len(incidents) != 0 {
		t.Fatalf("expected weak candidate to be discarded, got %d", len(incidents))
	}
}

func TestExtractCapsAndBoundsConfidence(t *testing.T) {
	e := newTestExtractor()
	article := &types.Article{
		ID: "all",
		Content: "Protesters rallied at Azadi Square in Tehran chanting slogans during a demonstration. " +
			"Dozens were arrested and detained, many taken into custody and jailed. " +
			"Several were injured and wounded, others beaten. One student was killed.",
	}

	incidents := e.Extract(article)
	if len(incidents) != MaxPerArticle {
		t.Fatalf("expected %d incidents after cap, got %d", MaxPerArticle, len(incidents))
	}
	for i, inc := range incidents {
		if inc.Confidence < 0 || inc.Confidence > 100 {
			t.Fatalf("confidence %.1f out of bounds", inc.Confidence)
		}
		if i > 0 && inc.Confidence > incidents[i-1].Confidence {
			t.Fatalf("incidents not sorted by confidence")
		}
	}
	if found := byType(incidents); found[types.IncidentDeath] != nil {
		t.Fatalf("the weakest category should have been cut")
	}
	if incidents[0].Location.Address != "Azadi Square, Tehran" {
		t.Fatalf("district should win over city, got %q", incidents[0].Location.Address)
	}
}

func TestExtractEmptyArticle(t *testing.T) {
	e := newTestExtractor()
	if got := e.Extract(&types.Article{ID: "empty"}); got != nil {
		t.Fatalf("expected nil for empty article, got %d", len(got))
	}
	if got := e.Extract(nil); got != nil {
		t.Fatalf("expected nil for nil article")
	}
}

func TestExtractIDsAreDeterministic(t *testing.T) {
	e := newTestExtractor()
	article := &types.Article{ID: "same", Content: "Large protest in Tehran"}
	a, b := e.Extract(article), e.Extract(article)
	if len(a) != 1 || len(b) != 1 || a[0].ID != b[0].ID {
		t.Fatalf("expected the same incident id across runs")
	}
}

func TestTitleAndDescription(t *testing.T) {
	long := strings.Repeat("word ", 40)
	if got := Title(long); len([]rune(got)) != MaxTitleLength || !strings.HasSuffix(got, "...") {
		t.Fatalf("expected truncated title of %d runes, got %d: %q", MaxTitleLength, len([]rune(got)), got)
	}
	if got := Title("Short headline. Second sentence."); got != "Short headline." {
		t.Fatalf("Title = %q", got)
	}
	desc := Description("One. Two! Three? Four.")
	if desc != "One. Two! Three?" {
		t.Fatalf("Description = %q", desc)
	}
	if got := Description(strings.Repeat("x", 800)); len([]rune(got)) > MaxDescriptionLength {
		t.Fatalf("description exceeds bound: %d", len([]rune(got)))
	}
}

func TestReporterFallsBackToHost(t *testing.T) {
	if got := Reporter(&types.Article{Author: "  Channel_One "}); got != "channel_one" {
		t.Fatalf("Reporter = %q", got)
	}
	if got := Reporter(&types.Article{URL: "https://www.example.org/x"}); got != "example.org" {
		t.Fatalf("Reporter = %q", got)
	}
	if got := Reporter(&types.Article{Source: types.SourceSocial}); got != "social" {
		t.Fatalf("Reporter = %q", got)
	}
}

func TestSingleInflectedWordScoresOnce(t *testing.T) {
	e := newTestExtractor()
	article := &types.Article{ID: "one-word", Content: "Two students were arrested in Tehran this morning"}

	found := byType(e.Extract(article))
	arrest, ok := found[types.IncidentArrest]
	if !ok {
		t.Fatalf("expected an arrest incident")
	}
	if want := math.Min(10*ScoreFactor+LocationBonus, 100); arrest.Confidence != want {
		t.Fatalf("confidence = %.1f; want %.1f", arrest.Confidence, want)
	}
	if len(arrest.Keywords) != 2 || arrest.Keywords[0] != "arrest" {
		t.Fatalf("expected one term and the place, got %v", arrest.Keywords)
	}
}
