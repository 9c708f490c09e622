// Package coord refreshes the article batch in the background and keeps the
// newest one for readers such as the home page and the TUI.
package coord

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/abelbrown/vibenews/internal/logging"
	"github.com/abelbrown/vibenews/internal/model"
)

const (
	// DefaultInterval separates batches when New gets no interval.
	DefaultInterval = 5 * time.Minute
	// batchTimeout caps one aggregation run.
	batchTimeout = 2 * time.Minute
)

// Batcher produces one batch of articles. *feeds.Aggregator implements it.
type Batcher interface {
	FetchLatestArticles(ctx context.Context) []model.Article
}

// Batch is the result of one aggregation run. Seq counts runs from 1; the
// zero Batch means nothing has completed yet.
type Batch struct {
	Seq       int
	Articles  []model.Article
	FetchedAt time.Time
	Took      time.Duration
}

// Coordinator owns the background refresh loop. Overlapping requests for a
// batch (the loop and a manual refresh) share a single run.
type Coordinator struct {
	src      Batcher
	interval time.Duration
	clock    func() time.Time

	runs singleflight.Group
	loop sync.WaitGroup

	mu     sync.RWMutex
	latest Batch
}

// New returns a Coordinator over src. interval <= 0 means DefaultInterval.
func New(src Batcher, interval time.Duration) *Coordinator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Coordinator{src: src, interval: interval, clock: time.Now}
}

// Interval reports the delay between the end of one batch and the start of
// the next.
func (c *Coordinator) Interval() time.Duration { return c.interval }

// Latest returns the newest completed batch.
func (c *Coordinator) Latest() Batch {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

// Start launches the refresh loop: one batch right away, then one every
// interval until ctx is cancelled. notify, if set, is called from the loop
// goroutine with each batch the loop completes.
func (c *Coordinator) Start(ctx context.Context, notify func(Batch)) {
	c.loop.Add(1)
	go func() {
		defer c.loop.Done()

		timer := time.NewTimer(0)
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
			b, ok := c.run(ctx)
			if ok && notify != nil {
				notify(b)
			}
			timer.Reset(c.interval)
		}
	}()
}

// Wait returns once the loop started by Start has stopped.
func (c *Coordinator) Wait() { c.loop.Wait() }

// RunOnce fetches a batch now, or joins the one already in flight, and
// returns it. With ctx already done it returns Latest without fetching.
func (c *Coordinator) RunOnce(ctx context.Context) Batch {
	b, _ := c.run(ctx)
	return b
}

func (c *Coordinator) run(ctx context.Context) (Batch, bool) {
	if ctx.Err() != nil {
		return c.Latest(), false
	}
	v, _, _ := c.runs.Do("batch", func() (any, error) {
		return c.fetch(ctx), nil
	})
	return v.(Batch), true
}

func (c *Coordinator) fetch(ctx context.Context) Batch {
	ctx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()

	began := c.clock()
	articles := c.src.FetchLatestArticles(ctx)
	if articles == nil {
		articles = []model.Article{}
	}
	done := c.clock()

	c.mu.Lock()
	b := Batch{Seq: c.latest.Seq + 1, Articles: articles, FetchedAt: done, Took: done.Sub(began)}
	c.latest = b
	c.mu.Unlock()

	logging.Info("batch refreshed", "seq", b.Seq, "articles", len(articles), "took", b.Took)
	return b
}
