package corroboration

import (
	"math"
	"sort"
	"time"

	"incidentwatch/deduplication"
	"incidentwatch/fingerprint"
	"incidentwatch/geocoding"
	"incidentwatch/logging"
	"incidentwatch/types"
)

const (
	DefaultRadiusKm           = 2.0
	DefaultWindow             = 3 * time.Hour
	DefaultAnalysisWindow     = 24 * time.Hour
	DefaultAlpha              = 0.15
	DefaultVerifiedThreshold  = 80.0
	DefaultVerifiedMinSources = 2
	DefaultMediaMaxDistance   = 6
	DefaultMediaWindow        = 30 * time.Minute
	DefaultCoordinationWindow = time.Hour
	DefaultTextSimilarity     = 0.8
	DefaultSuspicionFloor     = 50.0
	DefaultMinGroupSize       = 2
	maxConfidence             = 100.0
)

// Config tunes the engine. Zero values take the defaults above.
type Config struct {
	RadiusKm           float64
	Window             time.Duration // corroboration time window
	AnalysisWindow     time.Duration // rolling pool window
	Alpha              float64
	VerifiedThreshold  float64
	VerifiedMinSources int

	MediaMaxDistance   int
	MediaWindow        time.Duration
	CoordinationWindow time.Duration
	TextSimilarity     float64
	SuspicionFloor     float64

	Hasher *fingerprint.Hasher
	// Now anchors the analysis window; nil anchors it at the newest incident.
	Now func() time.Time
}

// Engine cross-references incidents. It is stateless between calls.
type Engine struct {
	cfg Config
}

// NewEngine creates an engine with cfg.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: applyConfigDefaults(cfg)}
}

// Result is the outcome of one analysis run. Incidents holds a scored copy of
// every input incident, in input order.
type Result struct {
	Incidents []*types.Incident         `json:"incidents"`
	Groups    []types.CoordinationGroup `json:"coordination_groups"`
	Stats     Stats                     `json:"stats"`
}

// Stats summarizes an analysis run.
type Stats struct {
	Analyzed     int `json:"analyzed"`
	Corroborated int `json:"corroborated"`
	Verified     int `json:"verified"`
	Amplified    int `json:"amplified"`
	Groups       int `json:"groups"`
}

// member is an incident inside the analysis window with its derived keys.
type member struct {
	inc       *types.Incident
	canonical string
	textFP    string
	textSig   fingerprint.Signature
}

// Config returns the effective configuration, defaults applied.
func (e *Engine) Config() Config {
	return e.cfg
}

// Analyze scores the pool and detects coordination groups. Input incidents
// are not modified.
func (e *Engine) Analyze(pool []*types.Incident) Result {
	out := make([]*types.Incident, 0, len(pool))
	for _, inc := range pool {
		if inc == nil {
			continue
		}
		c := inc.Clone()
		if c.BaseConfidence == 0 {
			c.BaseConfidence = c.Confidence
		}
		out = append(out, c)
	}

	members := e.window(out)
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].inc.Timestamp.Before(members[j].inc.Timestamp)
	})

	groups, groupOf := e.detectCoordination(members)
	stats := e.corroborate(members, groupOf)
	stats.Analyzed = len(members)
	stats.Groups = len(groups)

	logging.Info("corroboration complete", "pool", len(out), "analyzed", stats.Analyzed,
		"corroborated", stats.Corroborated, "verified", stats.Verified,
		"amplified", stats.Amplified, "groups", stats.Groups)
	return Result{Incidents: out, Groups: groups, Stats: stats}
}

func (e *Engine) window(incidents []*types.Incident) []*member {
	var anchor time.Time
	if e.cfg.Now != nil {
		anchor = e.cfg.Now()
	} else {
		for _, inc := range incidents {
			if inc.Timestamp.After(anchor) {
				anchor = inc.Timestamp
			}
		}
	}
	cutoff := anchor.Add(-e.cfg.AnalysisWindow)

	members := make([]*member, 0, len(incidents))
	for _, inc := range incidents {
		if inc.Timestamp.IsZero() || inc.Timestamp.Before(cutoff) || inc.Timestamp.After(anchor) {
			continue
		}
		text := inc.Description
		if text == "" {
			text = inc.Title
		}
		members = append(members, &member{
			inc:       inc,
			canonical: deduplication.CanonicalURL(inc.SourceArticle.URL),
			textFP:    e.cfg.Hasher.Fingerprint(text),
			textSig:   e.cfg.Hasher.Signature(text),
		})
	}
	return members
}

// corroborate raises confidence for each incident backed by independent
// reports nearby in space and time. members must be sorted by timestamp.
func (e *Engine) corroborate(members []*member, groupOf map[string]string) Stats {
	var stats Stats
	for i, target := range members {
		if !located(target.inc) {
			continue
		}
		reporters := make(map[string]bool)
		var related []types.ArticleRef
		amplified := false

		for j, other := range members {
			if i == j {
				continue
			}
			dt := absDuration(other.inc.Timestamp.Sub(target.inc.Timestamp))
			if dt > e.cfg.Window {
				if j > i {
					break
				}
				continue
			}
			if !e.independent(target, other, groupOf) {
				continue
			}
			if other.inc.Type != target.inc.Type || !located(other.inc) {
				continue
			}
			if geocoding.DistanceKm(target.inc.Location.Lat, target.inc.Location.Lon,
				other.inc.Location.Lat, other.inc.Location.Lon) > e.cfg.RadiusKm {
				continue
			}
			if e.sameMedia(target.inc, other.inc, dt) {
				amplified = true
				continue
			}
			reporters[reporterKey(other)] = true
			related = append(related, other.inc.SourceArticle)
		}

		if amplified {
			stats.Amplified++
		}
		k := len(reporters)
		if k == 0 {
			continue
		}

		inc := target.inc
		boosted := Boost(inc.BaseConfidence, k, e.cfg.Alpha)
		if boosted > inc.Confidence {
			inc.Confidence = boosted
		}
		added := 0
		for _, ref := range related {
			if inc.AddRelated(ref) {
				added++
			}
		}
		if inc.Confidence >= e.cfg.VerifiedThreshold && k >= e.cfg.VerifiedMinSources {
			inc.Verified = true
		}
		if inc.Verified {
			stats.Verified++
		}
		stats.Corroborated++
		logging.Debug("incident corroborated", "incident", inc.ID, "sources", k,
			"confidence", inc.Confidence, "related_added", added)
	}
	return stats
}

// independent reports whether other can count as a separate source for
// target: a different article, reporter and canonical source, and not a
// fellow member of a coordination group.
func (e *Engine) independent(target, other *member, groupOf map[string]string) bool {
	if other.inc.SourceArticle.ID != "" && other.inc.SourceArticle.ID == target.inc.SourceArticle.ID {
		return false
	}
	if syndicated(target, other) {
		return false
	}
	if g, ok := groupOf[target.inc.ID]; ok && groupOf[other.inc.ID] == g {
		return false
	}
	return true
}

func (e *Engine) sameMedia(a, b *types.Incident, dt time.Duration) bool {
	if dt > e.cfg.MediaWindow {
		return false
	}
	d, ok := MediaDistance(a.MediaHash, b.MediaHash)
	return ok && d <= e.cfg.MediaMaxDistance
}

// Boost returns confidence c raised by k independent corroborators:
// c + (100-c)*(1-(1-alpha)^k). It never lowers c and never exceeds 100.
func Boost(c float64, k int, alpha float64) float64 {
	if c >= maxConfidence {
		return maxConfidence
	}
	if c < 0 {
		c = 0
	}
	if k <= 0 || alpha <= 0 {
		return c
	}
	boosted := c + (maxConfidence-c)*(1-math.Pow(1-alpha, float64(k)))
	return math.Min(math.Max(boosted, c), maxConfidence)
}

func located(inc *types.Incident) bool {
	return inc.Location != nil && inc.Location.Resolved && inc.Location.HasCoordinates()
}

// syndicated reports whether two members are explained by one source
// republishing: the same reporter or the same canonical URL.
func syndicated(a, b *member) bool {
	if a.inc.Reporter != "" && a.inc.Reporter == b.inc.Reporter {
		return true
	}
	return a.canonical != "" && a.canonical == b.canonical
}

func reporterKey(m *member) string {
	if m.inc.Reporter != "" {
		return "r:" + m.inc.Reporter
	}
	if m.canonical != "" {
		return "u:" + m.canonical
	}
	return "a:" + m.inc.SourceArticle.ID
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.RadiusKm <= 0 {
		cfg.RadiusKm = DefaultRadiusKm
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.AnalysisWindow <= 0 {
		cfg.AnalysisWindow = DefaultAnalysisWindow
	}
	if cfg.Alpha <= 0 || cfg.Alpha >= 1 {
		cfg.Alpha = DefaultAlpha
	}
	if cfg.VerifiedThreshold <= 0 {
		cfg.VerifiedThreshold = DefaultVerifiedThreshold
	}
	if cfg.VerifiedMinSources <= 0 {
		cfg.VerifiedMinSources = DefaultVerifiedMinSources
	}
	if cfg.MediaMaxDistance <= 0 {
		cfg.MediaMaxDistance = DefaultMediaMaxDistance
	}
	if cfg.MediaWindow <= 0 {
		cfg.MediaWindow = DefaultMediaWindow
	}
	if cfg.CoordinationWindow <= 0 {
		cfg.CoordinationWindow = DefaultCoordinationWindow
	}
	if cfg.TextSimilarity <= 0 {
		cfg.TextSimilarity = DefaultTextSimilarity
	}
	if cfg.SuspicionFloor <= 0 {
		cfg.SuspicionFloor = DefaultSuspicionFloor
	}
	if cfg.Hasher == nil {
		cfg.Hasher = fingerprint.NewHasher(fingerprint.Config{})
	}
	return cfg
}
