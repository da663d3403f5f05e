package types

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode/utf8"
)

// SourceKind identifies the channel an article was collected from.
type SourceKind string

const (
	SourceTelegram SourceKind = "telegram"
	SourceSearch   SourceKind = "search"
	SourceSocial   SourceKind = "social"
	SourceRSS      SourceKind = "rss"
	SourceManual   SourceKind = "manual"
)

// Valid reports whether k is one of the known source kinds.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceTelegram, SourceSearch, SourceSocial, SourceRSS, SourceManual:
		return true
	}
	return false
}

// Article represents a single news item with metadata, body text and the
// content hashes derived from it
type Article struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Source      SourceKind `json:"source"`
	URL         string     `json:"source_url"`
	PublishedAt time.Time  `json:"published_at"`
	FetchedAt   time.Time  `json:"fetched_at"`
	Summary     string     `json:"summary,omitempty"`
	Author      string     `json:"author,omitempty"`
	Topics      []string   `json:"topics,omitempty"`
	ImageURL    string     `json:"image_url,omitempty"`
	// ImageHash is an optional 64-bit perceptual hash, hex encoded.
	ImageHash string `json:"image_hash,omitempty"`

	FullContentText string `json:"full_content_text,omitempty"`
	Excerpt         string `json:"excerpt,omitempty"`
	ExtractionError string `json:"extraction_error,omitempty"`

	ContentFingerprint string   `json:"content_fingerprint,omitempty"`
	MinHashSignature   []uint64 `json:"minhash_signature,omitempty"`
}

// Body returns the most complete body text available for the article.
// Priority order: Content > FullContentText > Summary
func (a *Article) Body() string {
	if a == nil {
		return ""
	}
	if strings.TrimSpace(a.Content) != "" {
		return a.Content
	}
	if strings.TrimSpace(a.FullContentText) != "" {
		return a.FullContentText
	}
	return a.Summary
}

// Text returns title and body joined, the input used for extraction.
func (a *Article) Text() string {
	if a == nil {
		return ""
	}
	title := strings.TrimSpace(a.Title)
	body := strings.TrimSpace(a.Body())
	switch {
	case title == "":
		return body
	case body == "":
		return title
	case strings.HasPrefix(body, title):
		return body
	}
	if last, _ := utf8.DecodeLastRuneInString(title); !strings.ContainsRune(".!?؟", last) {
		title += "."
	}
	return title + " " + body
}

// Ref returns a reference to the article suitable for embedding in incidents.
func (a *Article) Ref() ArticleRef {
	return ArticleRef{ID: a.ID, Title: a.Title, URL: a.URL, Source: a.Source}
}

// ArticleRef is a lightweight pointer back to an article.
type ArticleRef struct {
	ID     string     `json:"id"`
	Title  string     `json:"title"`
	URL    string     `json:"url"`
	Source SourceKind `json:"source"`
}

// FeedResult is the top-level wrapper for a fetched feed
type FeedResult struct {
	FeedURL      string     `json:"feed_url"`
	FetchedAt    time.Time  `json:"fetched_at"`
	ArticleCount int        `json:"article_count"`
	Articles     []*Article `json:"articles"`
}

// ArticleBatch is the unit of work accepted from queues and HTTP callers.
type ArticleBatch struct {
	BatchID    string     `json:"batch_id,omitempty"`
	ReceivedAt time.Time  `json:"received_at"`
	Articles   []*Article `json:"articles"`
}

// GenerateID creates a short, stable ID from URL
func GenerateID(url string) string {
	hash := sha256.Sum256([]byte(url))
	return hex.EncodeToString(hash[:])[:16]
}
