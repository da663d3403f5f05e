package extraction

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"

	"incidentwatch/fingerprint"

	"gopkg.in/yaml.v3"
)

//go:embed gazetteer.yaml
var defaultGazetteer []byte

// PlaceKind orders how specific a place name is.
type PlaceKind string

const (
	KindDistrict PlaceKind = "district"
	KindCity     PlaceKind = "city"
	KindLocative PlaceKind = "locative"
)

func (k PlaceKind) rank() int {
	switch k {
	case KindDistrict:
		return 0
	case KindCity:
		return 1
	default:
		return 2
	}
}

// Place is a gazetteer entry.
type Place struct {
	Name    string    `yaml:"name"`
	Kind    PlaceKind `yaml:"kind"`
	City    string    `yaml:"city"`
	Aliases []string  `yaml:"aliases"`
	Lat     float64   `yaml:"lat"`
	Lon     float64   `yaml:"lon"`
}

// HasCoordinates reports whether the entry carries coordinates.
func (p Place) HasCoordinates() bool {
	return p.Lat != 0 || p.Lon != 0
}

// PlaceMatch is a place found in text.
type PlaceMatch struct {
	Place Place
	Alias string
	Pos   int
}

type alias struct {
	text  string
	place int
}

// Gazetteer finds known place names in normalized text.
type Gazetteer struct {
	places  []Place
	aliases []alias
	byName  map[string]int
}

// DefaultGazetteer returns the embedded gazetteer.
func DefaultGazetteer() *Gazetteer {
	g, err := ParseGazetteer(defaultGazetteer)
	if err != nil {
		panic(fmt.Sprintf("embedded gazetteer is invalid: %v", err))
	}
	return g
}

// LoadGazetteerFile reads a gazetteer from a YAML file.
func LoadGazetteerFile(path string) (*Gazetteer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open gazetteer: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read gazetteer: %w", err)
	}
	return ParseGazetteer(data)
}

// ParseGazetteer decodes a YAML gazetteer.
func ParseGazetteer(data []byte) (*Gazetteer, error) {
	var doc struct {
		Places []Place `yaml:"places"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode gazetteer: %w", err)
	}

	g := &Gazetteer{byName: make(map[string]int)}
	for _, p := range doc.Places {
		if p.Name == "" {
			return nil, fmt.Errorf("gazetteer entry without name")
		}
		switch p.Kind {
		case KindDistrict, KindCity, KindLocative:
		case "":
			p.Kind = KindLocative
		default:
			return nil, fmt.Errorf("place %q: unknown kind %q", p.Name, p.Kind)
		}
		idx := len(g.places)
		g.places = append(g.places, p)
		g.byName[fingerprint.Normalize(p.Name)] = idx
		for _, a := range append([]string{p.Name}, p.Aliases...) {
			if n := fingerprint.Normalize(a); n != "" {
				g.aliases = append(g.aliases, alias{text: n, place: idx})
				g.byName[n] = idx
			}
		}
	}
	// longer aliases first so "enghelab square" wins over "square"
	sort.SliceStable(g.aliases, func(i, j int) bool {
		return len(g.aliases[i].text) > len(g.aliases[j].text)
	})
	return g, nil
}

// Places returns every entry.
func (g *Gazetteer) Places() []Place {
	return g.places
}

// Lookup finds a place by name or alias.
func (g *Gazetteer) Lookup(name string) (Place, bool) {
	idx, ok := g.byName[fingerprint.Normalize(name)]
	if !ok {
		return Place{}, false
	}
	return g.places[idx], true
}

// Match returns the places mentioned in normalized text in order of first
// appearance, one match per place. Text covered by a longer alias is not
// matched again by a shorter one.
func (g *Gazetteer) Match(normalized string) []PlaceMatch {
	if normalized == "" {
		return nil
	}
	covered := make([]bool, len(normalized))
	seen := make(map[int]bool)
	var matches []PlaceMatch
	for _, a := range g.aliases {
		for _, pos := range findAll(normalized, a.text) {
			if covered[pos] {
				continue
			}
			for i := pos; i < pos+len(a.text); i++ {
				covered[i] = true
			}
			if !seen[a.place] {
				seen[a.place] = true
				matches = append(matches, PlaceMatch{Place: g.places[a.place], Alias: a.text, Pos: pos})
			}
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Pos < matches[j].Pos })
	return matches
}

// Best picks the most specific match: districts over cities over generic
// locatives, earliest first within a kind.
func Best(matches []PlaceMatch) (PlaceMatch, bool) {
	if len(matches) == 0 {
		return PlaceMatch{}, false
	}
	best := matches[0]
	for _, m := range matches[1:] {
		if m.Place.Kind.rank() < best.Place.Kind.rank() {
			best = m
		}
	}
	return best, true
}
