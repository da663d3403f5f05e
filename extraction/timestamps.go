package extraction

import (
	"time"

	"incidentwatch/fingerprint"
)

// relativeCue shifts the extraction time back to the day a cue refers to.
type relativeCue struct {
	term  string
	shift func(time.Time) time.Time
}

func daysAgo(n int) func(time.Time) time.Time {
	return func(t time.Time) time.Time { return t.AddDate(0, 0, -n) }
}

// lastNight is 21:00 on the previous day.
func lastNight(t time.Time) time.Time {
	y, m, d := t.AddDate(0, 0, -1).Date()
	return time.Date(y, m, d, 21, 0, 0, 0, t.Location())
}

// Cues are checked in order; multi-word and older cues come first so that
// "day before yesterday" is not read as "yesterday".
var relativeCues = func() []relativeCue {
	cues := []relativeCue{
		{"day before yesterday", daysAgo(2)},
		{"two days ago", daysAgo(2)},
		{"پریروز", daysAgo(2)},
		{"last night", lastNight},
		{"دیشب", lastNight},
		{"yesterday", daysAgo(1)},
		{"دیروز", daysAgo(1)},
		{"this morning", daysAgo(0)},
		{"tonight", daysAgo(0)},
		{"today", daysAgo(0)},
		{"امشب", daysAgo(0)},
		{"امروز", daysAgo(0)},
	}
	for i := range cues {
		cues[i].term = fingerprint.Normalize(cues[i].term)
	}
	return cues
}()

// ResolveTimestamp prefers the structured publish time, then relative cues in
// the text, then the extraction time.
func ResolveTimestamp(publishedAt time.Time, normalized string, extractedAt time.Time) time.Time {
	if !publishedAt.IsZero() && publishedAt.Year() > 1970 {
		return publishedAt
	}
	for _, cue := range relativeCues {
		if firstIndex(normalized, cue.term) >= 0 {
			return cue.shift(extractedAt)
		}
	}
	return extractedAt
}
