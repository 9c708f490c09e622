package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/abelbrown/vibenews/internal/config"
	"github.com/abelbrown/vibenews/internal/feeds"
	"github.com/abelbrown/vibenews/internal/feeds/devto"
	"github.com/abelbrown/vibenews/internal/feeds/hackernews"
	"github.com/abelbrown/vibenews/internal/feeds/medium"
	"github.com/abelbrown/vibenews/internal/feeds/reddit"
	"github.com/abelbrown/vibenews/internal/feeds/rss"
	"github.com/abelbrown/vibenews/internal/httpclient"
	"github.com/abelbrown/vibenews/internal/logging"
	"github.com/abelbrown/vibenews/internal/metrics"
	"github.com/abelbrown/vibenews/internal/otel"
	"github.com/abelbrown/vibenews/internal/ratelimit"
	"github.com/abelbrown/vibenews/internal/store"
)

// ringSize is the number of recent events kept for the debug views.
const ringSize = 1024

// runtime is everything a command needs, built once from the config.
type runtime struct {
	cfg      *config.Config
	events   *otel.Logger
	ring     *otel.RingBuffer
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	store    *store.Store // nil unless requested
	agg      *feeds.Aggregator
}

type setupOptions struct {
	// openStore opens the database even when fetch.persist is off.
	openStore bool
	// quietLogs skips logging.Init unless a log file is configured, so
	// nothing is written over a full-screen UI.
	quietLogs bool
}

func setup(cfgPath string, opts setupOptions) (*runtime, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if !opts.quietLogs || cfg.Logging.File != "" {
		if err := logging.Init(logging.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			File:   cfg.Logging.File,
		}); err != nil {
			return nil, fmt.Errorf("init logging: %w", err)
		}
	}

	rt := &runtime{cfg: cfg}

	rt.events, err = otel.Open(cfg.Logging.EventsFile)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.ring = otel.NewRingBuffer(ringSize)
	rt.events.SetRingBuffer(rt.ring)

	rt.registry = prometheus.NewRegistry()
	rt.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rt.metrics = metrics.New(rt.registry)

	if opts.openStore || cfg.Fetch.Persist {
		rt.store, err = store.Open(cfg.Database.Path)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("open store: %w", err)
		}
	}

	client := httpclient.New(httpclient.Options{
		ConnectTimeout:      cfg.Fetch.ConnectTimeout,
		RequestTimeout:      cfg.Fetch.RequestTimeout,
		MaxConnsPerHost:     cfg.Fetch.MaxConnsPerHost,
		MaxIdleConnsPerHost: cfg.Fetch.MaxIdleConnsPerHost,
		UserAgent:           cfg.Fetch.UserAgent,
	})

	aggOpts := []feeds.Option{
		feeds.WithEvents(rt.events),
		feeds.WithMetrics(rt.metrics),
	}
	if rt.store != nil && cfg.Fetch.Persist {
		aggOpts = append(aggOpts, feeds.WithStore(rt.store))
	}
	rt.agg = feeds.NewAggregator(buildAdapters(cfg, client, rt.metrics), aggOpts...)

	logging.Info("vibenews configured", "sources", rt.agg.Sources(), "persist", cfg.Fetch.Persist, "interval", cfg.Fetch.Interval)
	return rt, nil
}

// buildAdapters returns the enabled sources in batch order: Hacker News,
// Dev.to, Reddit, Medium, then the extra feeds.
func buildAdapters(cfg *config.Config, client *http.Client, m *metrics.Metrics) []feeds.Adapter {
	var adapters []feeds.Adapter

	if cfg.HackerNews.Enabled {
		adapters = append(adapters, hackernews.New(client, cfg.HackerNews.BaseURL, cfg.HackerNews.Limit))
	}
	if cfg.DevTo.Enabled {
		adapters = append(adapters, devto.New(client, cfg.DevTo.BaseURL, cfg.DevTo.Tag, cfg.DevTo.PerPage))
	}
	if cfg.Reddit.Enabled {
		limiter := ratelimit.New(cfg.Reddit.RateLimit.Requests, cfg.Reddit.RateLimit.Window)
		limiter.OnWait(func(key string, d time.Duration) {
			logging.Debug("rate limited", "key", key, "wait", d)
			m.RateLimited(key)
		})
		tokens := reddit.NewTokenSource(client, cfg.Reddit.TokenURL, cfg.Reddit.ClientID, cfg.Reddit.ClientSecret, cfg.Fetch.UserAgent)
		adapters = append(adapters, reddit.New(client, tokens, limiter, reddit.Options{
			APIURL:    cfg.Reddit.APIURL,
			Subreddit: cfg.Reddit.Subreddit,
			Limit:     cfg.Reddit.Limit,
			UserAgent: cfg.Fetch.UserAgent,
		}))
	}
	if cfg.Medium.Enabled {
		adapters = append(adapters, medium.New(client, cfg.Medium.FeedURL))
	}
	for _, f := range cfg.Feeds {
		adapters = append(adapters, rss.New(client, f.Name, f.URL, f.Tags))
	}
	return adapters
}

// Close releases the store and flushes the event log.
func (rt *runtime) Close() {
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			logging.Warn("close store", "error", err)
		}
	}
	rt.events.Close()
	logging.Close()
}

func (rt *runtime) emit(kind otel.EventKind, msg string) {
	rt.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: kind, Comp: "main", Msg: msg})
}

func appVersion(cfg *config.Config) string {
	if version != "" {
		return version
	}
	return cfg.Server.Version
}
