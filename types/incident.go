package types

import "time"

// IncidentType is the category of a reported event.
type IncidentType string

const (
	IncidentProtest IncidentType = "protest"
	IncidentArrest  IncidentType = "arrest"
	IncidentInjury  IncidentType = "injury"
	IncidentDeath   IncidentType = "death"
	IncidentOther   IncidentType = "other"
)

// IncidentTypes lists the scored categories in a fixed order.
var IncidentTypes = []IncidentType{IncidentProtest, IncidentArrest, IncidentInjury, IncidentDeath}

// Location is a place attached to an incident. Resolved is false while the
// location is a placeholder or the geocoder could not resolve it.
type Location struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Address  string  `json:"address"`
	Resolved bool    `json:"resolved"`
	// Tier names the geocoding strategy that produced the coordinates.
	Tier string `json:"tier,omitempty"`
}

// HasCoordinates reports whether the location carries usable coordinates.
func (l *Location) HasCoordinates() bool {
	return l != nil && (l.Lat != 0 || l.Lon != 0)
}

// Incident is a structured event extracted from one or more articles
type Incident struct {
	ID          string       `json:"id"`
	Type        IncidentType `json:"type"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Location    *Location    `json:"location,omitempty"`
	Confidence  float64      `json:"confidence"`

	// BaseConfidence is the confidence before corroboration. Boosts are
	// computed from it so that repeated analysis does not compound.
	BaseConfidence float64 `json:"base_confidence,omitempty"`

	Verified        bool         `json:"verified"`
	NeedsReview     bool         `json:"needs_review,omitempty"`
	Timestamp       time.Time    `json:"timestamp"`
	ExtractedAt     time.Time    `json:"extracted_at"`
	Keywords        []string     `json:"keywords"`
	SourceArticle   ArticleRef   `json:"source_article"`
	RelatedArticles []ArticleRef `json:"related_articles,omitempty"`
	Upvotes         int          `json:"upvotes"`

	// Reporter is the apparent identity that posted the source article.
	Reporter  string `json:"reporter,omitempty"`
	MediaHash string `json:"media_hash,omitempty"`
}

// AddRelated appends ref unless an article with the same id is already
// referenced. It reports whether the list changed.
func (inc *Incident) AddRelated(ref ArticleRef) bool {
	if ref.ID == "" || ref.ID == inc.SourceArticle.ID {
		return false
	}
	for _, existing := range inc.RelatedArticles {
		if existing.ID == ref.ID {
			return false
		}
	}
	inc.RelatedArticles = append(inc.RelatedArticles, ref)
	return true
}

// Clone returns a deep copy of the incident.
func (inc *Incident) Clone() *Incident {
	if inc == nil {
		return nil
	}
	out := *inc
	if inc.Location != nil {
		loc := *inc.Location
		out.Location = &loc
	}
	out.Keywords = append([]string(nil), inc.Keywords...)
	out.RelatedArticles = append([]ArticleRef(nil), inc.RelatedArticles...)
	return &out
}
