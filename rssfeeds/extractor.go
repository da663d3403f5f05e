package rssfeeds

import (
	"context"
	"fmt"
	"time"

	"incidentwatch/logging"
	"incidentwatch/types"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/sync/errgroup"
)

const (
	WorkerCount      = 5
	extractorTimeout = 30 * time.Second
)

// ExtractAllContent fetches full text for every article with at most workers
// concurrent requests. Failures are recorded on the article and do not stop
// the others. It returns the number of successful extractions.
func ExtractAllContent(ctx context.Context, articles []*types.Article, workers int) int {
	if workers <= 0 {
		workers = WorkerCount
	}
	results := make([]bool, len(articles))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, article := range articles {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if err := extractContent(article); err != nil {
				article.ExtractionError = err.Error()
				logging.Debug("full-text extraction failed", "url", article.URL, "err", err)
				return nil
			}
			results[i] = true
			return nil
		})
	}
	_ = g.Wait()

	ok := 0
	for _, r := range results {
		if r {
			ok++
		}
	}
	return ok
}

// extractContent fetches and extracts full content for a single article
func extractContent(article *types.Article) error {
	if article.URL == "" {
		return fmt.Errorf("article URL is empty")
	}

	extracted, err := readability.FromURL(article.URL, extractorTimeout)
	if err != nil {
		return fmt.Errorf("readability extraction failed: %w", err)
	}

	article.FullContentText = extracted.TextContent
	article.Excerpt = extracted.Excerpt
	if article.ImageURL == "" {
		article.ImageURL = extracted.Image
	}
	if article.Author == "" {
		article.Author = extracted.Byline
	}
	return nil
}
