package rssfeeds

import (
	"context"

	"incidentwatch/logging"
	"incidentwatch/types"
)

// Source pulls one feed per refresh cycle.
type Source struct {
	Feed     FeedConfig
	MaxItems int
	// Enrich fetches the linked page of each item for its full text.
	Enrich  bool
	Workers int
}

// NewSource builds a source from a preset name or URL.
func NewSource(nameOrURL string, maxItems int, enrich bool) (*Source, bool) {
	feed, ok := ResolveFeed(nameOrURL)
	if !ok {
		return nil, false
	}
	return &Source{Feed: feed, MaxItems: maxItems, Enrich: enrich}, true
}

func (s *Source) Name() string { return "rss:" + s.Feed.Name }

// Fetch returns the feed's current items as articles.
func (s *Source) Fetch(ctx context.Context) ([]*types.Article, error) {
	articles, err := FetchFeed(ctx, s.Feed.URL, s.MaxItems)
	if err != nil {
		return nil, err
	}
	if s.Enrich && len(articles) > 0 {
		ok := ExtractAllContent(ctx, articles, s.Workers)
		logging.Info("extracted full content", "feed", s.Feed.Name, "ok", ok, "total", len(articles))
	}
	return articles, nil
}
