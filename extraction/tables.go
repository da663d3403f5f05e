package extraction

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"incidentwatch/fingerprint"
	"incidentwatch/types"

	"gopkg.in/yaml.v3"
)

//go:embed keywords.yaml
var defaultKeywords []byte

// Term is one weighted keyword of a category.
type Term struct {
	Text     string // normalized form used for matching
	Weight   int
	Language string
}

// Tables maps each incident category to its weighted terms across all
// languages.
type Tables struct {
	categories map[types.IncidentType][]Term
	languages  []string
}

// rawTables mirrors the YAML layout: language -> category -> term -> weight.
type rawTables map[string]map[string]map[string]int

// DefaultTables returns the embedded English and Farsi tables.
func DefaultTables() *Tables {
	t, err := ParseTables(defaultKeywords)
	if err != nil {
		panic(fmt.Sprintf("embedded keyword tables are invalid: %v", err))
	}
	return t
}

// LoadTablesFile reads tables from a YAML file.
func LoadTablesFile(path string) (*Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyword tables: %w", err)
	}
	defer f.Close()
	return LoadTables(f)
}

// LoadTables reads tables from YAML.
func LoadTables(r io.Reader) (*Tables, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyword tables: %w", err)
	}
	return ParseTables(data)
}

// ParseTables decodes YAML tables and normalizes every term. Unknown
// categories and non-positive weights are rejected.
func ParseTables(data []byte) (*Tables, error) {
	var raw rawTables
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode keyword tables: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("keyword tables are empty")
	}

	t := &Tables{categories: make(map[types.IncidentType][]Term)}
	for lang, categories := range raw {
		t.languages = append(t.languages, lang)
		for category, terms := range categories {
			kind := types.IncidentType(strings.ToLower(category))
			if !scoredCategory(kind) {
				return nil, fmt.Errorf("language %s: unknown category %q", lang, category)
			}
			for text, weight := range terms {
				if weight <= 0 {
					return nil, fmt.Errorf("language %s category %s: term %q has weight %d", lang, category, text, weight)
				}
				normalized := fingerprint.Normalize(text)
				if normalized == "" {
					continue
				}
				t.categories[kind] = append(t.categories[kind], Term{Text: normalized, Weight: weight, Language: lang})
			}
		}
	}
	for kind := range t.categories {
		terms := t.categories[kind]
		sort.Slice(terms, func(i, j int) bool {
			if terms[i].Weight != terms[j].Weight {
				return terms[i].Weight > terms[j].Weight
			}
			return terms[i].Text < terms[j].Text
		})
	}
	sort.Strings(t.languages)
	return t, nil
}

// Terms returns the terms of a category, heaviest first.
func (t *Tables) Terms(kind types.IncidentType) []Term {
	return t.categories[kind]
}

// Languages returns the languages present in the tables.
func (t *Tables) Languages() []string {
	return t.languages
}

func scoredCategory(kind types.IncidentType) bool {
	for _, k := range types.IncidentTypes {
		if k == kind {
			return true
		}
	}
	return false
}
