// Package model provides the article types shared by the fetch pipeline,
// the store and the HTTP layer.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Placeholders used when an upstream omits a field.
const (
	UntitledTitle  = "Untitled"
	UnknownAuthor  = "Unknown Author"
	NoContent      = "No content available"
	PlaceholderImg = "https://picsum.photos/800/400?random="
)

// Article is the unified representation of one piece of content from any source.
//
// ID is transient: the aggregator assigns it per batch. Key is the durable
// identity used by the store, share counts and click events.
type Article struct {
	ID          int      `json:"id"`
	Key         string   `json:"key,omitempty"`
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Author      string   `json:"author"`
	PublishedAt string   `json:"publishedAt"`
	Source      string   `json:"source"`
	Tags        []string `json:"tags"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	URL         string   `json:"url,omitempty"`
}

// DurableKey derives a stable identity for an article.
// The URL is preferred; articles without one are keyed by source and title.
func DurableKey(a Article) string {
	seed := a.URL
	if seed == "" {
		seed = a.Source + "\x00" + a.Title
	}
	h := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(h[:8])
}

// EnsureKey sets Key from DurableKey when it is empty and returns it.
func (a *Article) EnsureKey() string {
	if a.Key == "" {
		a.Key = DurableKey(*a)
	}
	return a.Key
}

// Published returns the parsed publish instant, if PublishedAt is understood.
func (a Article) Published() (time.Time, bool) {
	return ParseTimestamp(a.PublishedAt)
}

// PublishedLabel renders a human-readable relative publish time.
func (a Article) PublishedLabel(now time.Time) string {
	t, ok := a.Published()
	if !ok {
		return "Published on " + a.PublishedAt
	}
	d := now.Sub(t)
	switch {
	case d < time.Hour:
		if d < 0 {
			d = 0
		}
		return plural("Published %d minute", int(d/time.Minute)) + " ago"
	case d < 24*time.Hour:
		return plural("Published %d hour", int(d/time.Hour)) + " ago"
	case d < 7*24*time.Hour:
		return plural("Published %d day", int(d/(24*time.Hour))) + " ago"
	default:
		return "Published on " + t.Format("Jan 2, 2006")
	}
}

// Summary returns up to n runes of the content, with an ellipsis when cut.
func (a Article) Summary(n int) string {
	runes := []rune(a.Content)
	if len(runes) <= n {
		return a.Content
	}
	return string(runes[:n]) + "..."
}

// PlaceholderImage builds the deterministic fallback image URL for a seed.
func PlaceholderImage(seed string) string {
	return PlaceholderImg + seed
}

// ShareCount is the number of times an article was shared on one platform.
type ShareCount struct {
	ArticleID string `json:"articleId"`
	Platform  string `json:"platform"`
	Count     int    `json:"count"`
}

// ClickEvent is one append-only click record for an article link.
type ClickEvent struct {
	ID        string    `json:"id"`
	ArticleID string    `json:"articleId"`
	Timestamp time.Time `json:"timestamp"`
	Referrer  string    `json:"referrer,omitempty"`
	Platform  string    `json:"platform,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	IPAddress string    `json:"ipAddress,omitempty"`
	Country   string    `json:"country,omitempty"`
}
