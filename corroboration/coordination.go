package corroboration

import (
	"sort"
	"strings"
	"time"

	"incidentwatch/fingerprint"
	"incidentwatch/logging"
	"incidentwatch/types"

	"github.com/google/uuid"
)

// Suspicion score weights.
const (
	weightSize      = 0.40
	weightTightness = 0.35
	weightDiversity = 0.25
)

var groupNamespace = uuid.MustParse("0b7c5d3e-9a41-5f2b-8c6d-4e1f2a3b5c7d")

type linkKind uint8

const (
	linkText linkKind = 1 << iota
	linkMedia
)

// unionFind groups member indexes into connected components.
type unionFind struct {
	parent []int
	links  []linkKind
}

func newUnionFind(n int) *unionFind {
	u := &unionFind{parent: make([]int, n), links: make([]linkKind, n)}
	for i := range u.parent {
		u.parent[i] = i
	}
	return u
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int, kind linkKind) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
		u.links[ra] |= u.links[rb]
	}
	u.links[ra] |= kind
}

// detectCoordination links members that share near-identical text or media,
// come from different identities and fall inside the coordination window.
// Components are cut so that no cluster spans more than the window, and those
// scoring at or above the floor become groups. members must be
// sorted by timestamp. The returned map sends member ids to group ids.
func (e *Engine) detectCoordination(members []*member) ([]types.CoordinationGroup, map[string]string) {
	groupOf := make(map[string]string)
	if len(members) < DefaultMinGroupSize {
		return nil, groupOf
	}

	uf := newUnionFind(len(members))
	for i := range members {
		for j := i + 1; j < len(members); j++ {
			dt := members[j].inc.Timestamp.Sub(members[i].inc.Timestamp)
			if dt > e.cfg.CoordinationWindow {
				break
			}
			if syndicated(members[i], members[j]) {
				continue
			}
			if kind := e.link(members[i], members[j], dt); kind != 0 {
				uf.union(i, j, kind)
			}
		}
	}

	components := make(map[int][]int)
	var roots []int
	for i := range members {
		r := uf.find(i)
		if _, ok := components[r]; !ok {
			roots = append(roots, r)
		}
		components[r] = append(components[r], i)
	}

	var groups []types.CoordinationGroup
	for _, root := range roots {
		idx := components[root]
		if len(idx) < DefaultMinGroupSize {
			continue
		}
		for _, c := range e.splitByWindow(members, idx) {
			g := e.buildGroup(members, c.idx, c.links)
			if g.SuspicionScore < e.cfg.SuspicionFloor {
				logging.Debug("cluster below suspicion floor, treating as syndication",
					"members", len(c.idx), "score", g.SuspicionScore)
				continue
			}
			for _, id := range g.MemberIncidentIDs {
				groupOf[id] = g.ID
			}
			groups = append(groups, g)
		}
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].SuspicionScore > groups[j].SuspicionScore })
	return groups, groupOf
}

type cluster struct {
	idx   []int
	links linkKind
}

// splitByWindow cuts a linked component, whose indexes are in time order,
// into runs spanning at most the coordination window, then keeps the linked
// parts of each run with at least two members. Chained links never produce a
// cluster wider than the window.
func (e *Engine) splitByWindow(members []*member, idx []int) []cluster {
	var out []cluster
	start := 0
	for end := 1; end <= len(idx); end++ {
		if end < len(idx) {
			span := members[idx[end]].inc.Timestamp.Sub(members[idx[start]].inc.Timestamp)
			if span <= e.cfg.CoordinationWindow {
				continue
			}
		}
		out = append(out, e.relink(members, idx[start:end])...)
		start = end
	}
	return out
}

// relink finds the components of run using only links between its members.
func (e *Engine) relink(members []*member, run []int) []cluster {
	if len(run) < DefaultMinGroupSize {
		return nil
	}
	uf := newUnionFind(len(run))
	for i := range run {
		for j := i + 1; j < len(run); j++ {
			a, b := members[run[i]], members[run[j]]
			if syndicated(a, b) {
				continue
			}
			if kind := e.link(a, b, b.inc.Timestamp.Sub(a.inc.Timestamp)); kind != 0 {
				uf.union(i, j, kind)
			}
		}
	}
	byRoot := make(map[int]*cluster)
	var roots []int
	for i := range run {
		r := uf.find(i)
		c, ok := byRoot[r]
		if !ok {
			c = &cluster{}
			byRoot[r] = c
			roots = append(roots, r)
		}
		c.idx = append(c.idx, run[i])
	}
	var out []cluster
	for _, r := range roots {
		c := byRoot[r]
		if len(c.idx) < DefaultMinGroupSize {
			continue
		}
		c.links = uf.links[uf.find(r)]
		out = append(out, *c)
	}
	return out
}

func (e *Engine) link(a, b *member, dt time.Duration) linkKind {
	var kind linkKind
	if e.sameMedia(a.inc, b.inc, dt) {
		kind |= linkMedia
	}
	if a.textFP != "" && a.textFP == b.textFP {
		kind |= linkText
	} else if sim := fingerprint.Similarity(a.textSig, b.textSig); sim >= e.cfg.TextSimilarity {
		kind |= linkText
	}
	return kind
}

func (e *Engine) buildGroup(members []*member, idx []int, links linkKind) types.CoordinationGroup {
	ids := make([]string, 0, len(idx))
	reporters := make(map[string]bool)
	first, last := members[idx[0]].inc.Timestamp, members[idx[0]].inc.Timestamp
	for _, i := range idx {
		m := members[i]
		ids = append(ids, m.inc.ID)
		reporters[reporterKey(m)] = true
		if m.inc.Timestamp.Before(first) {
			first = m.inc.Timestamp
		}
		if m.inc.Timestamp.After(last) {
			last = m.inc.Timestamp
		}
	}
	sort.Strings(ids)

	spread := last.Sub(first)
	g := types.CoordinationGroup{
		ID:                    uuid.NewSHA1(groupNamespace, []byte(strings.Join(ids, ","))).String(),
		ContentClusterID:      contentClusterID(members[idx[0]], links),
		MemberIncidentIDs:     ids,
		DistinctReporterCount: len(reporters),
		TimeSpread:            spread,
		SuspicionScore:        SuspicionScore(len(ids), spread, len(reporters), e.cfg.CoordinationWindow),
		FirstSeen:             first,
		LastSeen:              last,
		Reason:                reason(links),
	}
	return g
}

// SuspicionScore rates a cluster of n members from distinct reporters spread
// over spread: larger, tighter and more diverse clusters score higher.
// The result is in [0, 100].
func SuspicionScore(n int, spread time.Duration, distinct int, window time.Duration) float64 {
	if n < 1 {
		return 0
	}
	size := 1 - 1/float64(n)
	tightness := 1.0
	if window > 0 {
		tightness = 1 - float64(spread)/float64(window)
	}
	tightness = clamp01(tightness)
	diversity := clamp01(float64(distinct) / float64(n))
	return 100 * (weightSize*size + weightTightness*tightness + weightDiversity*diversity)
}

func contentClusterID(m *member, links linkKind) string {
	if links&linkMedia != 0 && m.inc.MediaHash != "" {
		return "media:" + strings.ToLower(m.inc.MediaHash)
	}
	fp := m.textFP
	if len(fp) > 16 {
		fp = fp[:16]
	}
	return "text:" + fp
}

func reason(links linkKind) types.CoordinationReason {
	switch {
	case links&linkText != 0 && links&linkMedia != 0:
		return types.ReasonTextMedia
	case links&linkMedia != 0:
		return types.ReasonMedia
	default:
		return types.ReasonText
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
