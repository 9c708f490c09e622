package rss

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const rssDoc = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Lab notes</title>
<item>
  <title>Scaling laws revisited</title>
  <link>https://lab.example.com/scaling</link>
  <description>&lt;p&gt;Bigger &lt;em&gt;is&lt;/em&gt; different.&lt;/p&gt;&lt;img src="https://lab.example.com/s.png"&gt;</description>
  <author>kim@example.com (Kim)</author>
  <category>research</category>
  <pubDate>Mon, 28 Apr 2025 09:00:00 +0200</pubDate>
  <guid>scaling-1</guid>
</item>
<item>
  <title></title>
  <link>https://lab.example.com/empty</link>
  <enclosure url="https://lab.example.com/cover.jpg" type="image/jpeg" length="10"/>
</item>
</channel>
</rss>`

func feedServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchMapsEntries(t *testing.T) {
	srv := feedServer(t, rssDoc, http.StatusOK)

	s := New(srv.Client(), "Lab", srv.URL, []string{"AI", "Research"})
	got, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(got))
	}

	a := got[0]
	if a.Title != "Scaling laws revisited" {
		t.Errorf("title = %q", a.Title)
	}
	if a.Content != "Bigger is different." {
		t.Errorf("content = %q", a.Content)
	}
	if a.PublishedAt != "2025-04-28T07:00:00Z" {
		t.Errorf("publishedAt = %q", a.PublishedAt)
	}
	if a.Source != "Lab" || strings.Join(a.Tags, ",") != "AI,Research" {
		t.Errorf("source/tags = %q / %v", a.Source, a.Tags)
	}
	if a.ImageURL != "https://lab.example.com/s.png" {
		t.Errorf("inline image = %q", a.ImageURL)
	}
	if a.URL != "https://lab.example.com/scaling" {
		t.Errorf("url = %q", a.URL)
	}

	b := got[1]
	if b.Title != "Untitled" || b.Content != "Untitled" {
		t.Errorf("defaults = %q / %q", b.Title, b.Content)
	}
	if b.Author != "Unknown Author" {
		t.Errorf("author = %q", b.Author)
	}
	if b.ImageURL != "https://lab.example.com/cover.jpg" {
		t.Errorf("enclosure image = %q", b.ImageURL)
	}
}

func TestCategoriesUsedWithoutConfiguredTags(t *testing.T) {
	srv := feedServer(t, rssDoc, http.StatusOK)

	got, err := New(srv.Client(), "Lab", srv.URL, nil).Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(got[0].Tags, ",") != "research" {
		t.Errorf("tags = %v", got[0].Tags)
	}
	if got[1].Tags == nil {
		t.Error("tags should never be nil")
	}
}

func TestFetchArticlesOnBrokenFeed(t *testing.T) {
	srv := feedServer(t, "not a feed", http.StatusOK)

	got := New(srv.Client(), "Broken", srv.URL, nil).FetchArticles(context.Background(), 1)
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty non-nil", got)
	}
}

func TestNameFallsBackToURL(t *testing.T) {
	s := New(http.DefaultClient, "", "https://feeds.example.com/x.xml", nil)
	if s.Name() != "https://feeds.example.com/x.xml" {
		t.Errorf("Name() = %q", s.Name())
	}
}
