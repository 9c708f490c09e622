// Package medium reads the Medium artificial-intelligence tag feed.
//
// The feed is fetched as text and its items are picked out with regular
// expressions rather than a full XML parse, so one broken item never costs
// the rest of the feed.
package medium

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/abelbrown/vibenews/internal/feeds"
	"github.com/abelbrown/vibenews/internal/httpclient"
	"github.com/abelbrown/vibenews/internal/logging"
	"github.com/abelbrown/vibenews/internal/model"
)

// DefaultFeedURL is the tag feed read when none is configured.
const DefaultFeedURL = "https://medium.com/feed/tag/artificial-intelligence"

const sourceName = "Medium"

// salts pick a fallback image family from the title, first match wins.
var salts = []struct {
	phrase string
	salt   string
}{
	{"ai", "ai"},
	{"machine learning", "ml"},
	{"deep learning", "dl"},
}

// Source fetches Medium articles
type Source struct {
	feedURL string
	client  *http.Client
}

// New creates a Medium source reading feedURL, or DefaultFeedURL when empty.
func New(client *http.Client, feedURL string) *Source {
	if feedURL == "" {
		feedURL = DefaultFeedURL
	}
	return &Source{feedURL: feedURL, client: client}
}

func (s *Source) Name() string {
	return sourceName
}

// FetchArticles implements feeds.Adapter.
func (s *Source) FetchArticles(ctx context.Context, startID int) []model.Article {
	return feeds.Guard(ctx, s, startID)
}

// Fetch downloads the feed and converts each well-formed item.
func (s *Source) Fetch(ctx context.Context) ([]model.Article, error) {
	body, err := httpclient.Get(ctx, s.client, s.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("medium: %w", err)
	}

	items := ExtractItems(string(body))
	articles := make([]model.Article, 0, len(items))
	for _, item := range items {
		if a, ok := convert(item); ok {
			articles = append(articles, a)
		}
	}
	logging.Debug("medium: feed parsed", "items", len(items), "articles", len(articles))
	return articles, nil
}

// convert builds one article. A panic here skips only this item.
func convert(item Item) (a model.Article, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logging.Warn("medium: skipping item", "guid", item.GUID, "panic", r)
			ok = false
		}
	}()
	return ToArticle(item), true
}

// ToArticle maps a feed item onto an article.
func ToArticle(item Item) model.Article {
	title := item.Title
	if title == "" {
		title = model.UntitledTitle
	}
	author := item.Author
	if author == "" {
		author = model.UnknownAuthor
	}

	content := feeds.CleanHTML(item.Description)
	if content == "" {
		content = title
	}

	image := feeds.FirstImage(item.Description)
	if image == "" {
		image = FallbackImage(title, item.GUID)
	}

	return model.Article{
		Title:       title,
		Content:     content,
		Author:      author,
		PublishedAt: model.NormalizeTimestamp(item.PubDate),
		Source:      sourceName,
		Tags:        []string{"AI", "Medium"},
		ImageURL:    image,
		URL:         item.Link,
	}
}

// FallbackImage returns the placeholder for an item without an inline
// image, salted by the topic its title mentions.
func FallbackImage(title, guid string) string {
	lower := strings.ToLower(title)
	for _, s := range salts {
		if strings.Contains(lower, s.phrase) {
			return model.PlaceholderImage(s.salt + guid)
		}
	}
	return model.PlaceholderImage(guid)
}
