package extraction

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strings"
	"time"

	"incidentwatch/fingerprint"
	"incidentwatch/logging"
	"incidentwatch/types"

	"github.com/google/uuid"
)

const (
	ScoreFactor       float64 = 4
	LocationBonus     float64 = 20
	NoLocationPenalty float64 = 10
	MinConfidence     float64 = 30
	PersistThreshold  float64 = 40
	MaxPerArticle     int     = 3
)

// Location tiers set by extraction.
const (
	TierGazetteer   = "gazetteer"
	TierPlaceholder = "placeholder"
)

// incidentNamespace scopes incident ids derived from article ids.
var incidentNamespace = uuid.MustParse("6f1c2a8e-3d4b-5e6f-8a9b-0c1d2e3f4a5b")

// DefaultLocation is the placeholder used when no place is mentioned.
var DefaultLocation = types.Location{
	Lat:     35.6892,
	Lon:     51.3890,
	Address: "Tehran, Iran",
	Tier:    TierPlaceholder,
}

// Config tunes scoring. Zero values take the package defaults.
type Config struct {
	ScoreFactor       float64
	LocationBonus     float64
	NoLocationPenalty float64
	MinConfidence     float64
	PersistThreshold  float64
	MaxPerArticle     int
	DefaultLocation   *types.Location
	Now               func() time.Time
}

// Extractor turns article text into candidate incidents.
type Extractor struct {
	cfg       Config
	tables    *Tables
	gazetteer *Gazetteer
}

// NewExtractor builds an extractor. Nil tables or gazetteer fall back to the
// embedded defaults.
func NewExtractor(tables *Tables, gazetteer *Gazetteer, cfg Config) *Extractor {
	if tables == nil {
		tables = DefaultTables()
	}
	if gazetteer == nil {
		gazetteer = DefaultGazetteer()
	}
	return &Extractor{cfg: applyConfigDefaults(cfg), tables: tables, gazetteer: gazetteer}
}

// Gazetteer returns the gazetteer used for location matching.
func (e *Extractor) Gazetteer() *Gazetteer {
	return e.gazetteer
}

// Persistable reports whether inc cleared the persistence threshold.
func (e *Extractor) Persistable(inc *types.Incident) bool {
	return inc != nil && inc.Confidence >= e.cfg.PersistThreshold
}

type keywordHit struct {
	term string
	pos  int
}

// Extract scores the article against every category and returns up to
// MaxPerArticle candidates in descending confidence. Candidates below
// MinConfidence are dropped; those below PersistThreshold are flagged for
// review.
func (e *Extractor) Extract(article *types.Article) []*types.Incident {
	if article == nil {
		return nil
	}
	raw := article.Text()
	normalized := fingerprint.Normalize(raw)
	if normalized == "" {
		return nil
	}

	extractedAt := e.cfg.Now()
	places := e.gazetteer.Match(normalized)
	location, locationFound := e.locationFor(places)
	timestamp := ResolveTimestamp(article.PublishedAt, normalized, extractedAt)
	title := Title(raw)
	description := Description(raw)

	var out []*types.Incident
	for _, kind := range types.IncidentTypes {
		score, hits := e.score(kind, normalized)
		if score == 0 {
			continue
		}

		confidence := math.Min(float64(score)*e.cfg.ScoreFactor, 100)
		if locationFound {
			confidence = math.Min(confidence+e.cfg.LocationBonus, 100)
		} else {
			confidence = math.Max(confidence-e.cfg.NoLocationPenalty, 0)
		}
		if confidence < e.cfg.MinConfidence {
			continue
		}

		keywords := make([]string, 0, len(hits)+len(places))
		for _, h := range hits {
			keywords = append(keywords, h.term)
		}
		for _, p := range places {
			keywords = append(keywords, p.Alias)
		}

		loc := location
		out = append(out, &types.Incident{
			ID:            uuid.NewSHA1(incidentNamespace, []byte(article.ID+"|"+string(kind))).String(),
			Type:          kind,
			Title:         title,
			Description:   description,
			Location:      &loc,
			Confidence:    confidence,
			NeedsReview:   confidence < e.cfg.PersistThreshold,
			Timestamp:     timestamp,
			ExtractedAt:   extractedAt,
			Keywords:      keywords,
			SourceArticle: article.Ref(),
			Reporter:      Reporter(article),
			MediaHash:     article.ImageHash,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if len(out) > e.cfg.MaxPerArticle {
		out = out[:e.cfg.MaxPerArticle]
	}
	return out
}

// ExtractBatch extracts from every article and merges duplicates across the
// batch. An article that fails extraction is reported and skipped.
func (e *Extractor) ExtractBatch(articles []*types.Article, mergeWindow time.Duration) ([]*types.Incident, []string) {
	var all []*types.Incident
	var failed []string
	for _, a := range articles {
		incidents, err := e.extractIsolated(a)
		if err != nil {
			logging.Warn("extraction failed", "article", a.ID, "err", err)
			failed = append(failed, a.ID)
			continue
		}
		all = append(all, incidents...)
	}
	merged := MergeDuplicates(all, mergeWindow)
	logging.Info("extraction complete", "articles", len(articles), "candidates", len(all),
		"incidents", len(merged), "failed", len(failed))
	return merged, failed
}

func (e *Extractor) extractIsolated(a *types.Article) (out []*types.Incident, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("extraction panicked: %v", p)
		}
	}()
	return e.Extract(a), nil
}

// score sums the weights of matched terms of a category, returning the hits
// in order of first appearance.
func (e *Extractor) score(kind types.IncidentType, normalized string) (int, []keywordHit) {
	total := 0
	var hits []keywordHit
	seen := make(map[string]bool)
	for _, term := range e.tables.Terms(kind) {
		if seen[term.Text] {
			continue
		}
		pos := firstIndex(normalized, term.Text)
		if pos < 0 {
			continue
		}
		seen[term.Text] = true
		total += term.Weight
		hits = append(hits, keywordHit{term: term.Text, pos: pos})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	return total, hits
}

func (e *Extractor) locationFor(matches []PlaceMatch) (types.Location, bool) {
	best, ok := Best(matches)
	if !ok {
		return *e.cfg.DefaultLocation, false
	}
	loc := types.Location{Address: best.Place.Name}
	if best.Place.HasCoordinates() {
		loc.Lat, loc.Lon = best.Place.Lat, best.Place.Lon
		loc.Resolved = true
		loc.Tier = TierGazetteer
	}
	return loc, true
}

// Reporter returns the apparent identity behind an article: its author, or
// the source host when no author is given.
func Reporter(a *types.Article) string {
	if a == nil {
		return ""
	}
	if author := strings.TrimSpace(a.Author); author != "" {
		return strings.ToLower(author)
	}
	if u, err := url.Parse(a.URL); err == nil && u.Host != "" {
		return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	}
	return string(a.Source)
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.ScoreFactor == 0 {
		cfg.ScoreFactor = ScoreFactor
	}
	if cfg.LocationBonus == 0 {
		cfg.LocationBonus = LocationBonus
	}
	if cfg.NoLocationPenalty == 0 {
		cfg.NoLocationPenalty = NoLocationPenalty
	}
	if cfg.MinConfidence == 0 {
		cfg.MinConfidence = MinConfidence
	}
	if cfg.PersistThreshold == 0 {
		cfg.PersistThreshold = PersistThreshold
	}
	if cfg.MaxPerArticle == 0 {
		cfg.MaxPerArticle = MaxPerArticle
	}
	loc := DefaultLocation
	if cfg.DefaultLocation != nil {
		loc = *cfg.DefaultLocation
	}
	loc.Resolved = false
	loc.Tier = TierPlaceholder
	cfg.DefaultLocation = &loc
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return cfg
}
