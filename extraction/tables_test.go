package extraction

import (
	"strings"
	"testing"

	"incidentwatch/types"
)

func TestDefaultTablesCoverAllCategoriesInBothLanguages(t *testing.T) {
	tables := DefaultTables()
	if got := strings.Join(tables.Languages(), ","); got != "en,fa" {
		t.Fatalf("languages = %s; want en,fa", got)
	}
	for _, kind := range types.IncidentTypes {
		langs := map[string]bool{}
		for _, term := range tables.Terms(kind) {
			langs[term.Language] = true
			if term.Weight <= 0 {
				t.Fatalf("%s: term %q has weight %d", kind, term.Text, term.Weight)
			}
		}
		if !langs["en"] || !langs["fa"] {
			t.Fatalf("%s: expected terms in both languages, got %v", kind, langs)
		}
	}
}

func TestParseTablesRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"unknown category": "en:\n  weather:\n    rain: 5\n",
		"zero weight":      "en:\n  protest:\n    protest: 0\n",
		"empty":            "",
		"not yaml":         "en: [unclosed",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseTables([]byte(doc)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestParseTablesNormalizesTerms(t *testing.T) {
	tables, err := LoadTables(strings.NewReader("fa:\n  death:\n    \"كشته\": 12\nen:\n  death:\n    KILLED: 12\n"))
	if err != nil {
		t.Fatalf("LoadTables: %v", err)
	}
	terms := tables.Terms(types.IncidentDeath)
	got := map[string]bool{}
	for _, term := range terms {
		got[term.Text] = true
	}
	if !got["killed"] || !got["کشته"] {
		t.Fatalf("expected normalized terms, got %v", got)
	}
}

func TestCustomTablesDriveScoring(t *testing.T) {
	tables, err := ParseTables([]byte("en:\n  protest:\n    sit down: 10\n"))
	if err != nil {
		t.Fatalf("ParseTables: %v", err)
	}
	e := NewExtractor(tables, nil, Config{})
	incidents := e.Extract(&types.Article{ID: "x", Content: "Workers held a sit down outside the bazaar"})
	if len(incidents) != 1 || incidents[0].Type != types.IncidentProtest {
		t.Fatalf("expected one protest incident from custom table, got %d", len(incidents))
	}
}

func TestDefaultTablesCountEachWordOnce(t *testing.T) {
	tables := DefaultTables()
	for _, kind := range types.IncidentTypes {
		terms := tables.Terms(kind)
		for _, a := range terms {
			for _, b := range terms {
				if a.Text != b.Text && strings.HasPrefix(b.Text, a.Text) {
					t.Fatalf("%s: %q also matches %q, so one word would score twice", kind, a.Text, b.Text)
				}
			}
		}
	}
}
