package rssfeeds

import (
	"sort"
	"strings"
)

// FeedConfig represents the configuration for a single RSS feed
type FeedConfig struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Language string `json:"language"`
}

const DefaultFeedPreset = "bbcpersian"

// FeedPresets maps friendly keys to RSS feed configurations
var FeedPresets = map[string]FeedConfig{
	"bbcpersian": {
		Name:     "BBC Persian",
		URL:      "https://feeds.bbci.co.uk/persian/rss.xml",
		Language: "fa",
	},
	"radiofarda": {
		Name:     "Radio Farda",
		URL:      "https://www.radiofarda.com/api/zrqiteuuir",
		Language: "fa",
	},
	"iranwire": {
		Name:     "IranWire",
		URL:      "https://iranwire.com/en/feed/",
		Language: "en",
	},
	"hrana": {
		Name:     "HRANA English",
		URL:      "https://www.en-hrana.org/feed/",
		Language: "en",
	},
}

// ResolveFeed returns the preset named by nameOrURL, or an ad-hoc config
// when the value is a URL.
func ResolveFeed(nameOrURL string) (FeedConfig, bool) {
	key := strings.ToLower(strings.TrimSpace(nameOrURL))
	if cfg, ok := FeedPresets[key]; ok {
		return cfg, true
	}
	if strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
		return FeedConfig{Name: nameOrURL, URL: strings.TrimSpace(nameOrURL)}, true
	}
	return FeedConfig{}, false
}

// PresetNames returns the preset keys in alphabetical order.
func PresetNames() []string {
	names := make([]string, 0, len(FeedPresets))
	for name := range FeedPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
