package devto

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"
)

const listing = `[
  {
    "title": "Building agents in Go",
    "description": "short",
    "body_markdown": "# Agents\nLong body",
    "published_at": "2025-04-27T05:26:46Z",
    "user": {"name": "Ada"},
    "tag_list": ["ai", "go"],
    "cover_image": "https://cdn.example.com/cover.png",
    "path": "/ada/building-agents"
  },
  {
    "title": "No cover here",
    "description": "Only a description",
    "published_at": "2025-04-26T10:00:00Z",
    "user": {"name": ""},
    "tag_list": "ai, machinelearning",
    "cover_image": null,
    "path": "/bob/no-cover"
  },
  {"title": 42},
  {
    "title": "Bare",
    "published_at": "2025-04-25T10:00:00Z",
    "user": {"name": "Cy"},
    "tag_list": [],
    "url": "https://dev.to/cy/bare"
  }
]`

// captured holds the last request the fake upstream saw.
type captured struct {
	URL    *url.URL
	Header http.Header
}

func newServer(t *testing.T, body string, status int) (*httptest.Server, *captured) {
	t.Helper()
	last := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		last.URL = r.URL
		last.Header = r.Header.Clone()
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, last
}

func TestFetchMapsArticles(t *testing.T) {
	srv, req := newServer(t, listing, http.StatusOK)

	got, err := New(srv.Client(), srv.URL, "", 0).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if req.URL.Path != "/articles" || req.URL.Query().Get("tag") != "ai" || req.URL.Query().Get("per_page") != "15" {
		t.Errorf("request = %s", req.URL.String())
	}
	if req.Header.Get("Accept") != "application/json" {
		t.Errorf("Accept = %q", req.Header.Get("Accept"))
	}

	// The malformed third element is skipped.
	if len(got) != 3 {
		t.Fatalf("expected 3 articles, got %d", len(got))
	}

	first := got[0]
	if first.Content != "# Agents\nLong body" {
		t.Errorf("content = %q", first.Content)
	}
	if first.Author != "Ada" || first.Source != "Dev.to" {
		t.Errorf("author/source = %q / %q", first.Author, first.Source)
	}
	if !reflect.DeepEqual(first.Tags, []string{"ai", "go"}) {
		t.Errorf("tags = %v", first.Tags)
	}
	if first.ImageURL != "https://cdn.example.com/cover.png" {
		t.Errorf("image = %q", first.ImageURL)
	}
	if first.URL != "https://dev.to/ada/building-agents" {
		t.Errorf("url = %q", first.URL)
	}
	if first.PublishedAt != "2025-04-27T05:26:46Z" {
		t.Errorf("publishedAt = %q", first.PublishedAt)
	}

	second := got[1]
	if second.Content != "Only a description" {
		t.Errorf("content = %q", second.Content)
	}
	if second.Author != "Unknown Author" {
		t.Errorf("author = %q", second.Author)
	}
	if !reflect.DeepEqual(second.Tags, []string{"ai", "machinelearning"}) {
		t.Errorf("comma-separated tags = %v", second.Tags)
	}
	if !strings.HasPrefix(second.ImageURL, "https://picsum.photos/800/400?random=") {
		t.Errorf("fallback image = %q", second.ImageURL)
	}

	third := got[2]
	if third.Content != "No content available" {
		t.Errorf("content = %q", third.Content)
	}
	if third.URL != "https://dev.to/cy/bare" {
		t.Errorf("url = %q", third.URL)
	}
	if third.Tags == nil || len(third.Tags) != 0 {
		t.Errorf("tags = %#v", third.Tags)
	}
}

func TestFetchDefaultsBlankTitle(t *testing.T) {
	body := `[{"title":"  ","description":"Untitled post body","published_at":"2025-04-27T05:26:46Z","user":{"name":"Ada"},"tag_list":[]}]`
	srv, _ := newServer(t, body, http.StatusOK)

	got, err := New(srv.Client(), srv.URL, "", 0).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected the article to be kept, got %d", len(got))
	}
	if got[0].Title != "Untitled" || got[0].Content != "Untitled post body" {
		t.Errorf("title/content = %q / %q", got[0].Title, got[0].Content)
	}
	if got[0].ImageURL != FallbackImage("Untitled") {
		t.Errorf("image = %q", got[0].ImageURL)
	}
}

func TestFallbackImageIsDeterministic(t *testing.T) {
	a := FallbackImage("No cover here")
	b := FallbackImage("No cover here")
	c := FallbackImage("Another title")

	if a != b {
		t.Errorf("same title gave %q and %q", a, b)
	}
	if a == c {
		t.Errorf("different titles should differ, both %q", a)
	}

	// fnv-32a("No cover here") is stable across runs and platforms.
	srv, _ := newServer(t, listing, http.StatusOK)
	got, _ := New(srv.Client(), srv.URL, "", 0).Fetch(context.Background())
	again, _ := New(srv.Client(), srv.URL, "", 0).Fetch(context.Background())
	if got[1].ImageURL != again[1].ImageURL || got[1].ImageURL != a {
		t.Errorf("fallback changed between fetches: %q vs %q", got[1].ImageURL, again[1].ImageURL)
	}
}

func TestFetchArticlesOnError(t *testing.T) {
	srv, _ := newServer(t, "oops", http.StatusInternalServerError)
	s := New(srv.Client(), srv.URL, "", 0)

	if _, err := s.Fetch(context.Background()); err == nil {
		t.Error("expected error on 500")
	}
	if got := s.FetchArticles(context.Background(), 1); got == nil || len(got) != 0 {
		t.Errorf("FetchArticles = %v", got)
	}
}

func TestFetchRejectsNonArray(t *testing.T) {
	srv, _ := newServer(t, `{"error":"rate limited"}`, http.StatusOK)
	if _, err := New(srv.Client(), srv.URL, "", 0).Fetch(context.Background()); err == nil {
		t.Error("expected decode error for object body")
	}
}
