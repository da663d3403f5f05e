package fingerprint

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// farsiFold maps Arabic-script variants onto the forms used in Persian text
// so that the same word typed on different keyboards normalizes identically.
var farsiFold = map[rune]rune{
	'ي': 'ی', // arabic yeh
	'ى': 'ی', // alef maksura
	'ك': 'ک', // arabic kaf
	'ة': 'ه',
	'ۀ': 'ه',
	'أ': 'ا',
	'إ': 'ا',
	'ٱ': 'ا',
}

// Normalize lowercases text, folds Arabic/Persian letter variants and digits,
// drops diacritics and replaces punctuation and symbols with spaces. The
// result has single spaces between tokens and no leading or trailing space.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	// a Caser is stateful and cannot be shared between goroutines
	text = cases.Lower(language.Und).String(norm.NFKC.String(text))

	var b strings.Builder
	b.Grow(len(text))
	space := true
	for _, r := range text {
		switch {
		case r == '\u200c' || r == '\u200d' || r == '\u0640':
			// zero-width joiners and tatweel
			continue
		case unicode.Is(unicode.Mn, r):
			continue
		case unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsControl(r):
			if !space {
				b.WriteByte(' ')
				space = true
			}
			continue
		}
		if folded, ok := farsiFold[r]; ok {
			r = folded
		}
		if d, ok := foldDigit(r); ok {
			r = d
		}
		b.WriteRune(r)
		space = false
	}
	return strings.TrimRight(b.String(), " ")
}

// Tokens splits normalized text into tokens.
func Tokens(text string) []string {
	return strings.Fields(Normalize(text))
}

func foldDigit(r rune) (rune, bool) {
	switch {
	case r >= '۰' && r <= '۹':
		return '0' + (r - '۰'), true
	case r >= '٠' && r <= '٩':
		return '0' + (r - '٠'), true
	}
	return r, false
}
