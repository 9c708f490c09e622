// Package rss reads extra RSS/Atom feeds listed in the configuration.
package rss

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/abelbrown/vibenews/internal/feeds"
	"github.com/abelbrown/vibenews/internal/model"
)

// Source fetches items from an RSS/Atom feed
type Source struct {
	name   string
	url    string
	tags   []string
	parser *gofeed.Parser
}

// New creates a feed source. Articles carry tags when given, otherwise the
// entry's own categories.
func New(client *http.Client, name, url string, tags []string) *Source {
	parser := gofeed.NewParser()
	parser.Client = client
	if name == "" {
		name = url
	}
	return &Source{
		name:   name,
		url:    url,
		tags:   tags,
		parser: parser,
	}
}

func (s *Source) Name() string {
	return s.name
}

// FetchArticles implements feeds.Adapter.
func (s *Source) FetchArticles(ctx context.Context, startID int) []model.Article {
	return feeds.Guard(ctx, s, startID)
}

func (s *Source) Fetch(ctx context.Context) ([]model.Article, error) {
	feed, err := s.parser.ParseURLWithContext(s.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", s.url, err)
	}

	articles := make([]model.Article, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry == nil {
			continue
		}
		articles = append(articles, s.toArticle(entry))
	}
	return articles, nil
}

func (s *Source) toArticle(entry *gofeed.Item) model.Article {
	title := entry.Title
	if title == "" {
		title = model.UntitledTitle
	}

	content := feeds.CleanHTML(entry.Description)
	if content == "" {
		content = feeds.CleanHTML(entry.Content)
	}
	if content == "" {
		content = title
	}

	author := model.UnknownAuthor
	if entry.Author != nil && entry.Author.Name != "" {
		author = entry.Author.Name
	}

	published := entry.Published
	if entry.PublishedParsed != nil {
		published = model.FormatTimestamp(*entry.PublishedParsed)
	} else if entry.UpdatedParsed != nil {
		published = model.FormatTimestamp(*entry.UpdatedParsed)
	} else if published == "" {
		published = entry.Updated
	}

	tags := s.tags
	if len(tags) == 0 {
		tags = entry.Categories
	}
	tags = append([]string{}, tags...)

	return model.Article{
		Title:       title,
		Content:     content,
		Author:      author,
		PublishedAt: model.NormalizeTimestamp(published),
		Source:      s.name,
		Tags:        tags,
		ImageURL:    imageFor(entry),
		URL:         entry.Link,
	}
}

// imageFor picks the entry image, an image enclosure, the first inline
// image, or a placeholder seeded by the link.
func imageFor(entry *gofeed.Item) string {
	if entry.Image != nil && entry.Image.URL != "" {
		return entry.Image.URL
	}
	for _, enc := range entry.Enclosures {
		if enc != nil && enc.URL != "" && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	for _, html := range []string{entry.Content, entry.Description} {
		if src := feeds.FirstImage(html); src != "" {
			return src
		}
	}
	seed := entry.GUID
	if seed == "" {
		seed = entry.Link
	}
	return model.PlaceholderImage(fmt.Sprintf("%x", sha256.Sum256([]byte(seed)))[:16])
}
