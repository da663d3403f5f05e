package extraction

import (
	"strings"
	"unicode/utf8"
)

const (
	MaxTitleLength       = 120
	MaxDescriptionLength = 500
	DescriptionSentences = 3
	ellipsis             = "..."
)

// findAll returns the byte offsets where term occurs in normalized text at
// the start of a token. Matching is a substring match anchored on the left,
// so a term also matches inflected forms that extend it.
func findAll(text, term string) []int {
	if term == "" {
		return nil
	}
	var out []int
	offset := 0
	for {
		i := strings.Index(text[offset:], term)
		if i < 0 {
			return out
		}
		pos := offset + i
		if pos == 0 || text[pos-1] == ' ' {
			out = append(out, pos)
		}
		offset = pos + 1
		if offset >= len(text) {
			return out
		}
	}
}

func firstIndex(text, term string) int {
	if all := findAll(text, term); len(all) > 0 {
		return all[0]
	}
	return -1
}

// sentences splits raw text on sentence terminators and newlines.
func sentences(text string) []string {
	var out []string
	var b strings.Builder
	flush := func() {
		if s := strings.Join(strings.Fields(b.String()), " "); s != "" {
			out = append(out, s)
		}
		b.Reset()
	}
	for _, r := range text {
		switch r {
		case '.', '!', '?', '؟', '。':
			b.WriteRune(r)
			flush()
		case '\n', '\r':
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return out
}

// truncate shortens s to at most max runes, ending in an ellipsis when cut.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	cut := strings.TrimSpace(string(runes[:max-len(ellipsis)]))
	return cut + ellipsis
}

// Title returns the first sentence of text if it fits, otherwise a truncated
// prefix with an ellipsis.
func Title(text string) string {
	parts := sentences(text)
	if len(parts) == 0 {
		return ""
	}
	return truncate(parts[0], MaxTitleLength)
}

// Description returns the first few sentences of text bounded in length.
func Description(text string) string {
	parts := sentences(text)
	if len(parts) > DescriptionSentences {
		parts = parts[:DescriptionSentences]
	}
	return truncate(strings.Join(parts, " "), MaxDescriptionLength)
}
