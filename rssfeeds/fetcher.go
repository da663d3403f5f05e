package rssfeeds

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"incidentwatch/types"

	"github.com/mmcdole/gofeed"
)

const DefaultCount = 30

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// FetchFeed retrieves and parses an RSS/Atom feed, returning up to maxCount
// articles.
func FetchFeed(ctx context.Context, feedURL string, maxCount int) ([]*types.Article, error) {
	parser := gofeed.NewParser()
	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", feedURL, err)
	}
	return FeedArticles(feed, maxCount, time.Now()), nil
}

// FeedArticles converts parsed feed items to articles.
func FeedArticles(feed *gofeed.Feed, maxCount int, fetchedAt time.Time) []*types.Article {
	if maxCount <= 0 {
		maxCount = DefaultCount
	}
	count := min(len(feed.Items), maxCount)
	articles := make([]*types.Article, 0, count)

	for _, item := range feed.Items[:count] {
		// Use GUID if available, otherwise generate from URL
		id := item.GUID
		if id == "" && item.Link != "" {
			id = types.GenerateID(item.Link)
		}
		if id == "" {
			continue
		}

		var publishedAt time.Time
		if item.PublishedParsed != nil {
			publishedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			publishedAt = *item.UpdatedParsed
		}

		author := ""
		if item.Author != nil {
			author = item.Author.Name
		}

		article := &types.Article{
			ID:          id,
			Title:       strings.TrimSpace(item.Title),
			Content:     plainText(item.Content),
			Source:      types.SourceRSS,
			URL:         item.Link,
			PublishedAt: publishedAt,
			FetchedAt:   fetchedAt,
			Summary:     plainText(item.Description),
			Author:      author,
			Topics:      append([]string(nil), item.Categories...),
		}
		if item.Image != nil {
			article.ImageURL = item.Image.URL
		}
		articles = append(articles, article)
	}
	return articles
}

// plainText strips markup from feed HTML fragments.
func plainText(fragment string) string {
	if fragment == "" {
		return ""
	}
	text := tagPattern.ReplaceAllString(fragment, " ")
	text = strings.ReplaceAll(html.UnescapeString(text), "\u00a0", " ")
	return strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))
}
