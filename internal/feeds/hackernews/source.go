// Package hackernews reads AI-related top stories from the Hacker News
// Firebase API.
package hackernews

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/abelbrown/vibenews/internal/feeds"
	"github.com/abelbrown/vibenews/internal/httpclient"
	"github.com/abelbrown/vibenews/internal/logging"
	"github.com/abelbrown/vibenews/internal/model"
)

const (
	// DefaultBaseURL is the public Firebase endpoint
	DefaultBaseURL = "https://hacker-news.firebaseio.com/v0"
	// DefaultLimit is how many top stories are inspected per fetch
	DefaultLimit = 15

	sourceName    = "Hacker News"
	defaultAuthor = "Hacker News User"
)

// Keywords selects the stories that are kept.
var Keywords = []string{"AI", "vibe", "coding"}

// Story represents a Hacker News item from the API
type Story struct {
	ID    int    `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Text  string `json:"text"` // Ask HN and friends
	By    string `json:"by"`
	Time  int64  `json:"time"`
	Dead  bool   `json:"dead"`
}

// Source fetches AI stories from Hacker News
type Source struct {
	baseURL string
	limit   int
	client  *http.Client
	filter  *feeds.KeywordFilter
	now     func() time.Time
}

// New creates a Hacker News source. An empty baseURL or non-positive limit
// use the defaults.
func New(client *http.Client, baseURL string, limit int) *Source {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Source{
		baseURL: baseURL,
		limit:   limit,
		client:  client,
		filter:  feeds.NewKeywordFilter(Keywords...),
		now:     time.Now,
	}
}

// WithClock overrides the clock used for publishedAt.
func (s *Source) WithClock(now func() time.Time) *Source {
	s.now = now
	return s
}

func (s *Source) Name() string {
	return sourceName
}

// FetchArticles implements feeds.Adapter.
func (s *Source) FetchArticles(ctx context.Context, startID int) []model.Article {
	return feeds.Guard(ctx, s, startID)
}

// Fetch reads the top story IDs and then each story in turn. A story that
// cannot be read is skipped; only a failure to list IDs fails the fetch.
func (s *Source) Fetch(ctx context.Context) ([]model.Article, error) {
	var ids []int
	if err := httpclient.GetJSON(ctx, s.client, s.baseURL+"/topstories.json", nil, &ids); err != nil {
		return nil, fmt.Errorf("hackernews: top stories: %w", err)
	}
	if len(ids) > s.limit {
		ids = ids[:s.limit]
	}

	articles := make([]model.Article, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		story, err := s.fetchStory(ctx, id)
		if err != nil {
			logging.Debug("hackernews: skipping story", "id", id, "error", err)
			continue
		}
		if story == nil || story.Dead || story.Title == "" || !s.filter.Match(story.Title) {
			continue
		}
		articles = append(articles, s.toArticle(story))
	}
	return articles, nil
}

func (s *Source) fetchStory(ctx context.Context, id int) (*Story, error) {
	var story *Story
	url := fmt.Sprintf("%s/item/%d.json", s.baseURL, id)
	if err := httpclient.GetJSON(ctx, s.client, url, nil, &story); err != nil {
		return nil, err
	}
	return story, nil
}

func (s *Source) toArticle(story *Story) model.Article {
	content := story.URL
	if content == "" {
		content = feeds.CleanHTML(story.Text)
	}
	if content == "" {
		content = story.Title
	}

	author := story.By
	if author == "" {
		author = defaultAuthor
	}

	return model.Article{
		Title:       story.Title,
		Content:     content,
		Author:      author,
		PublishedAt: model.FormatTimestamp(s.now()),
		Source:      sourceName,
		Tags:        []string{"AI", "Technology"},
		ImageURL:    model.PlaceholderImage(strconv.Itoa(story.ID)),
		URL:         story.URL,
	}
}
