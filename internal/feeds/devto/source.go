// Package devto reads AI-tagged articles from the Dev.to public API.
package devto

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/abelbrown/vibenews/internal/feeds"
	"github.com/abelbrown/vibenews/internal/httpclient"
	"github.com/abelbrown/vibenews/internal/logging"
	"github.com/abelbrown/vibenews/internal/model"
)

const (
	DefaultBaseURL = "https://dev.to/api"
	DefaultTag     = "ai"
	DefaultPerPage = 15

	sourceName = "Dev.to"
	siteURL    = "https://dev.to"
)

// apiArticle is one element of GET /articles
type apiArticle struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	BodyMarkdown string          `json:"body_markdown"`
	PublishedAt  string          `json:"published_at"`
	User         apiUser         `json:"user"`
	TagList      json.RawMessage `json:"tag_list"` // array, or comma-separated string
	CoverImage   string          `json:"cover_image"`
	Path         string          `json:"path"`
	URL          string          `json:"url"`
}

type apiUser struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

// Source fetches articles from Dev.to
type Source struct {
	baseURL string
	tag     string
	perPage int
	client  *http.Client
}

// New creates a Dev.to source. Empty settings use the defaults.
func New(client *http.Client, baseURL, tag string, perPage int) *Source {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if tag == "" {
		tag = DefaultTag
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	return &Source{
		baseURL: strings.TrimRight(baseURL, "/"),
		tag:     tag,
		perPage: perPage,
		client:  client,
	}
}

func (s *Source) Name() string {
	return sourceName
}

// FetchArticles implements feeds.Adapter.
func (s *Source) FetchArticles(ctx context.Context, startID int) []model.Article {
	return feeds.Guard(ctx, s, startID)
}

// Fetch lists the latest articles for the tag. Each element is decoded on
// its own, so one malformed entry only costs that entry.
func (s *Source) Fetch(ctx context.Context) ([]model.Article, error) {
	q := url.Values{}
	q.Set("tag", s.tag)
	q.Set("per_page", strconv.Itoa(s.perPage))
	endpoint := s.baseURL + "/articles?" + q.Encode()

	var raw []json.RawMessage
	header := http.Header{"Accept": []string{"application/json"}}
	if err := httpclient.GetJSON(ctx, s.client, endpoint, header, &raw); err != nil {
		return nil, fmt.Errorf("devto: %w", err)
	}

	articles := make([]model.Article, 0, len(raw))
	for i, elem := range raw {
		var a apiArticle
		if err := json.Unmarshal(elem, &a); err != nil {
			logging.Debug("devto: skipping malformed article", "index", i, "error", err)
			continue
		}
		articles = append(articles, toArticle(a))
	}
	return articles, nil
}

func toArticle(a apiArticle) model.Article {
	title := strings.TrimSpace(a.Title)
	if title == "" {
		title = model.UntitledTitle
	}

	content := a.BodyMarkdown
	if content == "" {
		content = a.Description
	}
	if content == "" {
		content = model.NoContent
	}

	author := a.User.Name
	if author == "" {
		author = model.UnknownAuthor
	}

	image := a.CoverImage
	if image == "" {
		image = FallbackImage(title)
	}

	link := a.URL
	if a.Path != "" {
		link = siteURL + a.Path
	}

	return model.Article{
		Title:       title,
		Content:     content,
		Author:      author,
		PublishedAt: model.NormalizeTimestamp(a.PublishedAt),
		Source:      sourceName,
		Tags:        parseTags(a.TagList),
		ImageURL:    image,
		URL:         link,
	}
}

// FallbackImage is the placeholder for articles without a cover. The seed
// is derived from the title, so the same article always gets the same image.
func FallbackImage(title string) string {
	h := fnv.New32a()
	h.Write([]byte(title))
	return model.PlaceholderImage(strconv.FormatUint(uint64(h.Sum32()), 10))
}

// parseTags accepts ["a","b"] or "a, b".
func parseTags(raw json.RawMessage) []string {
	tags := []string{}
	if len(raw) == 0 {
		return tags
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, t := range list {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
		return tags
	}

	var joined string
	if err := json.Unmarshal(raw, &joined); err == nil {
		for _, t := range strings.Split(joined, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}
	return tags
}
