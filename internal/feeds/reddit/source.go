// Package reddit reads the top posts of a subreddit through Reddit's OAuth
// API, within Reddit's request quota.
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/abelbrown/vibenews/internal/feeds"
	"github.com/abelbrown/vibenews/internal/httpclient"
	"github.com/abelbrown/vibenews/internal/logging"
	"github.com/abelbrown/vibenews/internal/model"
)

const (
	DefaultAPIURL    = "https://oauth.reddit.com"
	DefaultSubreddit = "artificialinteligence"
	DefaultLimit     = 15

	// RateLimitKey is the limiter bucket shared by all Reddit calls.
	RateLimitKey = "reddit"

	permalinkBase = "https://reddit.com"
)

// Limiter delays calls to stay inside a request quota.
type Limiter interface {
	Acquire(ctx context.Context, key string) error
}

// TokenProvider supplies OAuth bearer tokens.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

type listing struct {
	Data struct {
		Children []json.RawMessage `json:"children"`
	} `json:"data"`
}

type child struct {
	Kind string `json:"kind"`
	Data post   `json:"data"`
}

type post struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Selftext   string  `json:"selftext"`
	Author     string  `json:"author"`
	CreatedUTC float64 `json:"created_utc"`
	Permalink  string  `json:"permalink"`
	Thumbnail  string  `json:"thumbnail"`
	URL        string  `json:"url"`
}

// Source fetches a subreddit's top posts of the day
type Source struct {
	client    *http.Client
	tokens    TokenProvider
	limiter   Limiter
	apiURL    string
	subreddit string
	limit     int
	userAgent string
}

// Options configure a Source. Zero values use the defaults.
type Options struct {
	APIURL    string
	Subreddit string
	Limit     int
	UserAgent string
}

// New creates a Reddit source. limiter may be nil.
func New(client *http.Client, tokens TokenProvider, limiter Limiter, opts Options) *Source {
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	if opts.Subreddit == "" {
		opts.Subreddit = DefaultSubreddit
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	return &Source{
		client:    client,
		tokens:    tokens,
		limiter:   limiter,
		apiURL:    strings.TrimRight(opts.APIURL, "/"),
		subreddit: opts.Subreddit,
		limit:     opts.Limit,
		userAgent: opts.UserAgent,
	}
}

// Name is "Reddit r/<subreddit>", which is also the article source.
func (s *Source) Name() string {
	return "Reddit r/" + s.subreddit
}

// FetchArticles implements feeds.Adapter.
func (s *Source) FetchArticles(ctx context.Context, startID int) []model.Article {
	return feeds.Guard(ctx, s, startID)
}

// Fetch waits for quota, obtains a token and reads the listing. Posts that
// fail to decode or have no usable content are skipped.
func (s *Source) Fetch(ctx context.Context) ([]model.Article, error) {
	if s.limiter != nil {
		if err := s.limiter.Acquire(ctx, RateLimitKey); err != nil {
			return nil, fmt.Errorf("reddit: rate limit wait: %w", err)
		}
	}

	token, err := s.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(s.limit))
	q.Set("t", "day")
	endpoint := fmt.Sprintf("%s/r/%s/top.json?%s", s.apiURL, url.PathEscape(s.subreddit), q.Encode())

	header := http.Header{"Authorization": []string{"Bearer " + token}}
	if s.userAgent != "" {
		header.Set("User-Agent", s.userAgent)
	}

	var l listing
	if err := httpclient.GetJSON(ctx, s.client, endpoint, header, &l); err != nil {
		var se *httpclient.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized {
			if inv, ok := s.tokens.(interface{ Invalidate() }); ok {
				inv.Invalidate()
			}
		}
		return nil, fmt.Errorf("reddit: listing: %w", err)
	}

	articles := make([]model.Article, 0, len(l.Data.Children))
	for i, raw := range l.Data.Children {
		var c child
		if err := json.Unmarshal(raw, &c); err != nil {
			logging.Debug("reddit: skipping malformed post", "index", i, "error", err)
			continue
		}
		a, ok := s.toArticle(c.Data)
		if !ok {
			logging.Debug("reddit: skipping post without content", "id", c.Data.ID)
			continue
		}
		articles = append(articles, a)
	}
	return articles, nil
}

func (s *Source) toArticle(p post) (model.Article, bool) {
	content := p.Selftext
	if strings.TrimSpace(content) == "" {
		content = p.Title
	}
	if strings.TrimSpace(content) == "" {
		return model.Article{}, false
	}

	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = model.UntitledTitle
	}
	author := p.Author
	if author == "" {
		author = model.UnknownAuthor
	}

	a := model.Article{
		Title:       title,
		Content:     content,
		Author:      author,
		PublishedAt: model.FormatTimestamp(time.Unix(int64(p.CreatedUTC), 0)),
		Source:      s.Name(),
		Tags:        []string{"AI", "Reddit"},
		ImageURL:    imageFor(p),
	}
	if p.Permalink != "" {
		a.URL = permalinkBase + p.Permalink
	}
	return a, true
}

// imageFor picks the thumbnail, then a direct image link, then a placeholder.
func imageFor(p post) string {
	switch {
	case strings.HasPrefix(p.Thumbnail, "http"):
		return p.Thumbnail
	case strings.HasSuffix(p.URL, ".jpg"), strings.HasSuffix(p.URL, ".png"):
		return p.URL
	default:
		return model.PlaceholderImage(p.ID)
	}
}
