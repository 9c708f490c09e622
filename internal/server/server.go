// Package server is the vibenews HTTP front end: the home page, article
// previews, the JSON article API and share/click analytics.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/abelbrown/vibenews/internal/logging"
	"github.com/abelbrown/vibenews/internal/metrics"
	"github.com/abelbrown/vibenews/internal/model"
	"github.com/abelbrown/vibenews/internal/otel"
)

//go:embed templates/*.html static/*
var assets embed.FS

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 60 * time.Second
	defaultIdleTimeout  = 60 * time.Second
)

// Store is the persistence the HTTP layer needs. *store.Store satisfies it.
type Store interface {
	Create(ctx context.Context, a *model.Article) error
	GetAll(ctx context.Context) ([]model.Article, error)
	GetByID(ctx context.Context, key string) (model.Article, error)
	IncrementShare(ctx context.Context, articleID, platform string) (int, error)
	ShareCounts(ctx context.Context) (map[string]int, error)
	RecordClick(ctx context.Context, ev model.ClickEvent) error
	ClickStats(ctx context.Context, articleID string) (map[string]int, error)
}

// Batcher produces a fresh batch. *feeds.Aggregator satisfies it.
type Batcher interface {
	FetchLatestArticles(ctx context.Context) []model.Article
}

// Options configures the server.
type Options struct {
	Version string
	BaseURL string
	GinMode string

	// LiveFetch renders GET / from a fresh batch. Otherwise Latest is used.
	LiveFetch bool

	// Per-client throttle on POST /api/*. Zero disables it.
	APIRate  float64
	APIBurst int
}

// Deps are the collaborators the server is wired to. Store is required;
// the rest are optional.
type Deps struct {
	Store    Store
	Articles Batcher
	Latest   func() []model.Article

	Events   *otel.Logger
	Ring     *otel.RingBuffer
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// Server serves the vibenews site.
type Server struct {
	opts   Options
	deps   Deps
	router *gin.Engine
	now    func() time.Time

	mu     sync.RWMutex
	recent map[string]model.Article // last rendered batch, by key
}

// New builds the router and registers every route.
func New(opts Options, deps Deps) (*Server, error) {
	if deps.Store == nil {
		return nil, errors.New("server: store is required")
	}
	if opts.GinMode != "" {
		gin.SetMode(opts.GinMode)
	}

	s := &Server{
		opts:   opts,
		deps:   deps,
		now:    time.Now,
		recent: map[string]model.Article{},
	}

	tmpl, err := template.New("").Funcs(s.templateFuncs()).ParseFS(assets, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	r := gin.New()
	r.Use(Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(deps.Events))
	r.Use(Metrics(deps.Metrics))
	r.SetHTMLTemplate(tmpl)

	s.router = r
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router

	r.GET("/", s.handleHome)
	r.GET("/health", s.handleHealth)
	r.GET("/share.js", s.handleShareJS)
	r.GET("/a/:id", s.handlePreview)

	r.GET("/articles", s.handleListArticles)
	r.POST("/articles", s.handleCreateArticle)
	r.GET("/api/analytics/:articleId", s.handleAnalytics)
	r.GET("/api/share-counts", s.handleShareCounts)
	r.GET("/api/debug/events", s.handleDebugEvents)

	if s.deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	}

	writes := r.Group("/api")
	if s.opts.APIRate > 0 {
		burst := s.opts.APIBurst
		if burst <= 0 {
			burst = 1
		}
		writes.Use(RateLimiter(rate.Limit(s.opts.APIRate), burst))
	}
	writes.POST("/share", s.handleShare)
	writes.POST("/record-click", BotFilter(), s.handleRecordClick)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down within
// shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("starting HTTP server", "address", addr, "version", s.opts.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info("shutting down HTTP server", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return <-errCh
}

func (s *Server) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"published": func(a model.Article) string { return a.PublishedLabel(s.now()) },
		"summary":   func(a model.Article, n int) string { return a.Summary(n) },
		"firstTags": func(tags []string, n int) []string {
			if len(tags) > n {
				return tags[:n]
			}
			return tags
		},
		"platforms": func() []string { return sharePlatforms },
	}
}

// sharePlatforms are the share buttons shown on each card.
var sharePlatforms = []string{"twitter", "linkedin", "facebook"}

// remember replaces the preview cache with batch.
func (s *Server) remember(batch []model.Article) {
	m := make(map[string]model.Article, len(batch))
	for _, a := range batch {
		m[a.Key] = a
	}
	s.mu.Lock()
	s.recent = m
	s.mu.Unlock()
}

func (s *Server) recentArticle(key string) (model.Article, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.recent[key]
	return a, ok
}

func (s *Server) absURL(path string) string {
	return strings.TrimRight(s.opts.BaseURL, "/") + path
}
