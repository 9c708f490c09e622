package feeds

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abelbrown/vibenews/internal/model"
	"github.com/abelbrown/vibenews/internal/otel"
)

// mockAdapter returns a fixed list, optionally after a delay or by panicking.
type mockAdapter struct {
	name     string
	articles []model.Article
	delay    time.Duration
	panics   bool
	calls    atomic.Int32
	startIDs []int
	mu       sync.Mutex
}

func (m *mockAdapter) Name() string { return m.name }

func (m *mockAdapter) FetchArticles(ctx context.Context, startID int) []model.Article {
	m.calls.Add(1)
	m.mu.Lock()
	m.startIDs = append(m.startIDs, startID)
	m.mu.Unlock()

	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.panics {
		panic("adapter exploded")
	}
	out := make([]model.Article, len(m.articles))
	copy(out, m.articles)
	for i := range out {
		out[i].ID = startID + i
	}
	return out
}

func articlesAt(source string, times ...string) []model.Article {
	out := make([]model.Article, len(times))
	for i, ts := range times {
		out[i] = model.Article{
			Title:       fmt.Sprintf("%s story %d", source, i),
			Content:     "body",
			Source:      source,
			PublishedAt: ts,
			URL:         fmt.Sprintf("https://example.com/%s/%d", source, i),
			Tags:        []string{"AI"},
		}
	}
	return out
}

// mockStore records Create calls and can fail them.
type mockStore struct {
	mu      sync.Mutex
	created []model.Article
	err     error
}

func (s *mockStore) Create(ctx context.Context, a *model.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.created = append(s.created, *a)
	return nil
}

func TestAggregatorLosslessFlatten(t *testing.T) {
	a := &mockAdapter{name: "A", articles: articlesAt("A", "2025-01-01T00:00:00Z", "2025-01-02T00:00:00Z")}
	b := &mockAdapter{name: "B", articles: articlesAt("B", "2025-01-03T00:00:00Z")}
	c := &mockAdapter{name: "C"}

	agg := NewAggregator([]Adapter{a, b, c})
	got := agg.FetchLatestArticles(context.Background())

	if len(got) != 3 {
		t.Fatalf("expected 3 articles, got %d", len(got))
	}
	for _, m := range []*mockAdapter{a, b, c} {
		if m.calls.Load() != 1 {
			t.Errorf("%s called %d times, want 1", m.name, m.calls.Load())
		}
	}
}

func TestAggregatorAssignsIDsInSourceOrder(t *testing.T) {
	// B's article is newest, so it sorts first, but IDs follow source order.
	a := &mockAdapter{name: "A", articles: articlesAt("A", "2025-01-01T00:00:00Z", "2025-01-02T00:00:00Z")}
	b := &mockAdapter{name: "B", articles: articlesAt("B", "2025-01-05T00:00:00Z")}

	got := NewAggregator([]Adapter{a, b}).FetchLatestArticles(context.Background())

	byTitle := map[string]int{}
	for _, art := range got {
		byTitle[art.Title] = art.ID
	}
	if byTitle["A story 0"] != 1 || byTitle["A story 1"] != 2 || byTitle["B story 0"] != 3 {
		t.Errorf("IDs by title = %v", byTitle)
	}
	if got[0].Title != "B story 0" {
		t.Errorf("newest first: got %q", got[0].Title)
	}
}

func TestAggregatorAdaptersCalledWithStartIDOne(t *testing.T) {
	a := &mockAdapter{name: "A", articles: articlesAt("A", "2025-01-01T00:00:00Z")}
	b := &mockAdapter{name: "B", articles: articlesAt("B", "2025-01-01T00:00:00Z")}

	NewAggregator([]Adapter{a, b}).FetchLatestArticles(context.Background())

	for _, m := range []*mockAdapter{a, b} {
		if len(m.startIDs) != 1 || m.startIDs[0] != 1 {
			t.Errorf("%s startIDs = %v, want [1]", m.name, m.startIDs)
		}
	}
}

func TestAggregatorSetsKeys(t *testing.T) {
	a := &mockAdapter{name: "A", articles: articlesAt("A", "2025-01-01T00:00:00Z")}

	got := NewAggregator([]Adapter{a}).FetchLatestArticles(context.Background())

	if got[0].Key != model.DurableKey(got[0]) {
		t.Errorf("Key = %q, want %q", got[0].Key, model.DurableKey(got[0]))
	}
}

func TestAggregatorPanickingAdapterContributesNothing(t *testing.T) {
	bad := &mockAdapter{name: "Bad", panics: true}
	good := &mockAdapter{name: "Good", articles: articlesAt("Good", "2025-01-01T00:00:00Z", "2025-01-02T00:00:00Z")}

	got := NewAggregator([]Adapter{bad, good}).FetchLatestArticles(context.Background())

	if len(got) != 2 {
		t.Fatalf("expected 2 articles from the healthy adapter, got %d", len(got))
	}
	if got[0].ID != 2 || got[1].ID != 1 {
		t.Errorf("IDs = %d,%d; want 2,1 (newest first)", got[0].ID, got[1].ID)
	}
}

func TestAggregatorTotalOutageIsEmptyNotNil(t *testing.T) {
	got := NewAggregator([]Adapter{
		&mockAdapter{name: "A", panics: true},
		&mockAdapter{name: "B"},
	}).FetchLatestArticles(context.Background())

	if got == nil {
		t.Fatal("result should be non-nil")
	}
	if len(got) != 0 {
		t.Errorf("expected empty batch, got %d", len(got))
	}

	if got := NewAggregator(nil).FetchLatestArticles(context.Background()); got == nil || len(got) != 0 {
		t.Errorf("no adapters: got %v", got)
	}
}

func TestAggregatorRunsAdaptersConcurrently(t *testing.T) {
	adapters := make([]Adapter, 4)
	for i := range adapters {
		adapters[i] = &mockAdapter{
			name:     fmt.Sprintf("S%d", i),
			articles: articlesAt(fmt.Sprintf("S%d", i), "2025-01-01T00:00:00Z"),
			delay:    200 * time.Millisecond,
		}
	}

	start := time.Now()
	got := NewAggregator(adapters).FetchLatestArticles(context.Background())
	elapsed := time.Since(start)

	if len(got) != 4 {
		t.Fatalf("expected 4 articles, got %d", len(got))
	}
	// Sequential would take 800ms.
	if elapsed > 600*time.Millisecond {
		t.Errorf("adapters appear to run sequentially: %v", elapsed)
	}
}

func TestAggregatorPersistsBatch(t *testing.T) {
	a := &mockAdapter{name: "A", articles: articlesAt("A", "2025-01-01T00:00:00Z", "2025-01-02T00:00:00Z")}
	st := &mockStore{}

	got := NewAggregator([]Adapter{a}, WithStore(st)).FetchLatestArticles(context.Background())

	if len(st.created) != len(got) {
		t.Fatalf("persisted %d, want %d", len(st.created), len(got))
	}
	for _, c := range st.created {
		if c.Key == "" {
			t.Error("persisted article without key")
		}
	}
}

func TestAggregatorStoreFailureKeepsArticles(t *testing.T) {
	a := &mockAdapter{name: "A", articles: articlesAt("A", "2025-01-01T00:00:00Z", "2025-01-02T00:00:00Z")}
	st := &mockStore{err: errors.New("disk full")}

	events := otel.NewNullLogger()
	ring := otel.NewRingBuffer(64)
	events.SetRingBuffer(ring)

	got := NewAggregator([]Adapter{a}, WithStore(st), WithEvents(events)).FetchLatestArticles(context.Background())
	events.Close()

	if len(got) != 2 {
		t.Fatalf("store failure should not drop articles, got %d", len(got))
	}
	if n := ring.Stats()[otel.KindStoreError]; n != 2 {
		t.Errorf("store.error events = %d, want 2", n)
	}
}

func TestAggregatorEmitsFetchEvents(t *testing.T) {
	events := otel.NewNullLogger()
	ring := otel.NewRingBuffer(64)
	events.SetRingBuffer(ring)

	agg := NewAggregator([]Adapter{
		&mockAdapter{name: "A", articles: articlesAt("A", "2025-01-01T00:00:00Z")},
		&mockAdapter{name: "B", panics: true},
	}, WithEvents(events))
	agg.FetchLatestArticles(context.Background())
	events.Close()

	stats := ring.Stats()
	if stats[otel.KindFetchStart] != 2 || stats[otel.KindFetchComplete] != 2 {
		t.Errorf("start/complete = %d/%d, want 2/2", stats[otel.KindFetchStart], stats[otel.KindFetchComplete])
	}
	if stats[otel.KindFetchError] != 1 {
		t.Errorf("fetch.error = %d, want 1", stats[otel.KindFetchError])
	}
	if stats[otel.KindFetchBatch] != 1 {
		t.Errorf("fetch.batch = %d, want 1", stats[otel.KindFetchBatch])
	}
}

func TestAggregatorSources(t *testing.T) {
	agg := NewAggregator([]Adapter{&mockAdapter{name: "Hacker News"}, &mockAdapter{name: "Medium"}})
	names := agg.Sources()
	if len(names) != 2 || names[0] != "Hacker News" || names[1] != "Medium" {
		t.Errorf("Sources() = %v", names)
	}
}

func TestSortByPublished(t *testing.T) {
	articles := []model.Article{
		{ID: 1, PublishedAt: "not a date"},
		{ID: 2, PublishedAt: "2025-01-01T00:00:00Z"},
		{ID: 3, PublishedAt: "Fri, 03 Jan 2025 00:00:00 GMT"},
		{ID: 4, PublishedAt: "also bad"},
		{ID: 5, PublishedAt: "2025-01-01T00:00:00Z"},
		{ID: 6, PublishedAt: "1735776000"}, // 2025-01-02
	}

	SortByPublished(articles)

	want := []int{3, 6, 2, 5, 1, 4}
	for i, id := range want {
		if articles[i].ID != id {
			t.Fatalf("order = %v, want %v", ids(articles), want)
		}
	}
}

func ids(articles []model.Article) []int {
	out := make([]int, len(articles))
	for i, a := range articles {
		out[i] = a.ID
	}
	return out
}
