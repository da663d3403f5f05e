package extraction

import (
	"sort"
	"strings"
	"time"

	"incidentwatch/types"
)

// MergeWindow is the default span within which two incidents of the same
// type at the same place are treated as one event.
const MergeWindow = time.Hour

// MergeDuplicates collapses incidents that share type and location and whose
// timestamps fall within window of each other. The highest-confidence
// instance is kept; the source articles of dropped instances are folded into
// its related articles. Incidents on placeholder or otherwise unresolved
// locations are never merged.
// The result is ordered by descending confidence.
func MergeDuplicates(incidents []*types.Incident, window time.Duration) []*types.Incident {
	if window <= 0 {
		window = MergeWindow
	}
	ordered := make([]*types.Incident, 0, len(incidents))
	for _, inc := range incidents {
		if inc != nil {
			ordered = append(ordered, inc)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Confidence != ordered[j].Confidence {
			return ordered[i].Confidence > ordered[j].Confidence
		}
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	kept := make([]*types.Incident, 0, len(ordered))
	byKey := make(map[string][]*types.Incident)
	for _, inc := range ordered {
		key, ok := mergeKey(inc)
		if !ok {
			kept = append(kept, inc)
			continue
		}
		var into *types.Incident
		for _, k := range byKey[key] {
			if absDuration(k.Timestamp.Sub(inc.Timestamp)) <= window {
				into = k
				break
			}
		}
		if into == nil {
			byKey[key] = append(byKey[key], inc)
			kept = append(kept, inc)
			continue
		}
		into.AddRelated(inc.SourceArticle)
		for _, ref := range inc.RelatedArticles {
			into.AddRelated(ref)
		}
	}
	return kept
}

func mergeKey(inc *types.Incident) (string, bool) {
	loc := inc.Location
	// an unresolved name such as "university" does not pin down one place
	if loc == nil || !loc.Resolved || loc.Tier == TierPlaceholder || strings.TrimSpace(loc.Address) == "" {
		return "", false
	}
	return string(inc.Type) + "|" + strings.ToLower(strings.TrimSpace(loc.Address)), true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
