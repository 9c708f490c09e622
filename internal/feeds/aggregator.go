package feeds

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/vibenews/internal/logging"
	"github.com/abelbrown/vibenews/internal/metrics"
	"github.com/abelbrown/vibenews/internal/model"
	"github.com/abelbrown/vibenews/internal/otel"
)

// ArticleStore persists aggregated articles.
type ArticleStore interface {
	Create(ctx context.Context, a *model.Article) error
}

// Aggregator fans a batch fetch out to every adapter at once and merges
// the results.
type Aggregator struct {
	adapters []Adapter
	store    ArticleStore
	events   *otel.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithStore persists every article of each batch to s.
func WithStore(s ArticleStore) Option {
	return func(a *Aggregator) { a.store = s }
}

// WithEvents emits fetch.* and store.error events to l.
func WithEvents(l *otel.Logger) Option {
	return func(a *Aggregator) { a.events = l }
}

// WithMetrics records per-source and per-batch metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// NewAggregator creates an aggregator over adapters. Their order is the
// order IDs are assigned in.
func NewAggregator(adapters []Adapter, opts ...Option) *Aggregator {
	a := &Aggregator{
		adapters: adapters,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Sources returns the adapter names in fan-out order.
func (a *Aggregator) Sources() []string {
	names := make([]string, len(a.adapters))
	for i, ad := range a.adapters {
		names[i] = ad.Name()
	}
	return names
}

// FetchLatestArticles fetches every source concurrently and returns one
// batch: IDs 1..n in source order, newest first. It never fails; when every
// source is down the result is empty and non-nil.
func (a *Aggregator) FetchLatestArticles(ctx context.Context) []model.Article {
	start := a.now()
	results := make([][]model.Article, len(a.adapters))

	var g errgroup.Group
	for i, ad := range a.adapters {
		g.Go(func() error {
			results[i] = a.fetchOne(ctx, ad)
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, r := range results {
		total += len(r)
	}
	batch := make([]model.Article, 0, total)
	for _, r := range results {
		for _, art := range r {
			art.ID = len(batch) + 1
			art.EnsureKey()
			batch = append(batch, art)
		}
	}

	SortByPublished(batch)

	if a.store != nil {
		a.persist(ctx, batch)
	}

	a.metrics.ObserveBatch(len(batch), a.now())
	a.events.Emit(otel.Event{
		Level: otel.LevelInfo,
		Kind:  otel.KindFetchBatch,
		Comp:  "feeds",
		Count: len(batch),
		Dur:   a.now().Sub(start),
	})
	logging.Info("batch aggregated", "articles", len(batch), "sources", len(a.adapters))
	return batch
}

// fetchOne runs a single adapter with panic containment and instrumentation.
func (a *Aggregator) fetchOne(ctx context.Context, ad Adapter) (out []model.Article) {
	name := ad.Name()
	t0 := a.now()
	a.events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindFetchStart, Comp: "feeds", Source: name})

	var mu sync.Mutex
	failed := false
	ctx = WithFailureHook(ctx, func(source string, err error) {
		mu.Lock()
		failed = true
		mu.Unlock()
		a.events.SourceError(source, err)
	})

	defer func() {
		if r := recover(); r != nil {
			logging.Error("adapter panicked", "source", name, "panic", r)
			a.events.Emit(otel.Event{Level: otel.LevelError, Kind: otel.KindFetchError, Comp: "feeds", Source: name, Msg: "panic"})
			mu.Lock()
			failed = true
			mu.Unlock()
			out = []model.Article{}
		}
		if out == nil {
			out = []model.Article{}
		}
		d := a.now().Sub(t0)
		mu.Lock()
		f := failed
		mu.Unlock()
		a.metrics.ObserveFetch(name, len(out), d, f)
		a.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindFetchComplete, Comp: "feeds", Source: name, Count: len(out), Dur: d})
	}()

	return ad.FetchArticles(ctx, 1)
}

func (a *Aggregator) persist(ctx context.Context, batch []model.Article) {
	for i := range batch {
		if err := a.store.Create(ctx, &batch[i]); err != nil {
			logging.Warn("persist article failed", "key", batch[i].Key, "source", batch[i].Source, "error", err)
			a.metrics.StoreError("create")
			a.events.Emit(otel.Event{Level: otel.LevelError, Kind: otel.KindStoreError, Comp: "feeds", Source: batch[i].Source, Err: err.Error()})
		}
	}
}

// SortByPublished orders articles newest first. Articles whose PublishedAt
// cannot be parsed go last; ties keep their relative order.
func SortByPublished(articles []model.Article) {
	type keyed struct {
		t  time.Time
		ok bool
	}
	keys := make([]keyed, len(articles))
	idx := make([]int, len(articles))
	for i := range articles {
		t, ok := articles[i].Published()
		keys[i] = keyed{t, ok}
		idx[i] = i
	}
	sort.SliceStable(idx, func(x, y int) bool {
		kx, ky := keys[idx[x]], keys[idx[y]]
		if kx.ok != ky.ok {
			return kx.ok
		}
		return kx.ok && kx.t.After(ky.t)
	})
	sorted := make([]model.Article, len(articles))
	for i, j := range idx {
		sorted[i] = articles[j]
	}
	copy(articles, sorted)
}
