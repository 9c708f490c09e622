package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/abelbrown/vibenews/internal/logging"
	"github.com/abelbrown/vibenews/internal/model"
	"github.com/abelbrown/vibenews/internal/otel"
	"github.com/abelbrown/vibenews/internal/store"
)

const (
	defaultImage     = "/logo.jpg"
	defaultEventsMax = 100
	maxEvents        = 1000
)

type homePage struct {
	Articles []model.Article
	SiteURL  string
}

type previewPage struct {
	Article     model.Article
	PageURL     string
	Image       string
	RedirectURL string
}

type clickRequest struct {
	ArticleID string `json:"articleId" binding:"required"`
	Referrer  string `json:"referrer"`
	Platform  string `json:"platform"`
}

type shareRequest struct {
	ArticleID string `json:"articleId" binding:"required"`
	Platform  string `json:"platform" binding:"required"`
}

// handleHome renders the current batch.
func (s *Server) handleHome(c *gin.Context) {
	var articles []model.Article
	switch {
	case s.opts.LiveFetch && s.deps.Articles != nil:
		articles = s.deps.Articles.FetchLatestArticles(c.Request.Context())
	case s.deps.Latest != nil:
		articles = append([]model.Article(nil), s.deps.Latest()...)
	}
	for i := range articles {
		articles[i].EnsureKey()
	}
	s.remember(articles)

	c.HTML(http.StatusOK, "home.html", homePage{
		Articles: articles,
		SiteURL:  s.absURL("/"),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"version":   s.opts.Version,
		"timestamp": s.now().UnixMilli(),
	})
}

func (s *Server) handleShareJS(c *gin.Context) {
	data, err := assets.ReadFile("static/share.js")
	if err != nil {
		_ = c.Error(err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "application/javascript; charset=utf-8", data)
}

// handlePreview renders the share preview that redirects to the article.
// id is a durable key; the last rendered batch is consulted when the store
// does not have it, by key and then by batch ID.
func (s *Server) handlePreview(c *gin.Context) {
	id := c.Param("id")

	a, err := s.deps.Store.GetByID(c.Request.Context(), id)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		var ok bool
		if a, ok = s.findRecent(id); !ok {
			c.String(http.StatusNotFound, "Article not found")
			return
		}
	default:
		s.storeFailure(c, "get", err)
		return
	}

	image := a.ImageURL
	if image == "" {
		image = s.absURL(defaultImage)
	}
	redirect := a.URL
	if redirect == "" {
		redirect = "/"
	}

	c.HTML(http.StatusOK, "preview.html", previewPage{
		Article:     a,
		PageURL:     s.absURL("/a/" + a.Key),
		Image:       image,
		RedirectURL: redirect,
	})
}

func (s *Server) findRecent(id string) (model.Article, bool) {
	if a, ok := s.recentArticle(id); ok {
		return a, true
	}
	n, err := strconv.Atoi(id)
	if err != nil {
		return model.Article{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.recent {
		if a.ID == n {
			return a, true
		}
	}
	return model.Article{}, false
}

func (s *Server) handleListArticles(c *gin.Context) {
	articles, err := s.deps.Store.GetAll(c.Request.Context())
	if err != nil {
		s.storeFailure(c, "get_all", err)
		return
	}
	c.JSON(http.StatusOK, articles)
}

func (s *Server) handleCreateArticle(c *gin.Context) {
	var a model.Article
	if err := c.ShouldBindJSON(&a); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid article: " + err.Error()})
		return
	}
	if strings.TrimSpace(a.Title) == "" && strings.TrimSpace(a.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "article needs a title or content"})
		return
	}
	if a.Author == "" {
		a.Author = model.UnknownAuthor
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}
	a.PublishedAt = model.NormalizeTimestamp(a.PublishedAt)
	if a.PublishedAt == "" {
		a.PublishedAt = model.FormatTimestamp(s.now())
	}
	a.EnsureKey()

	ctx := c.Request.Context()
	if err := s.deps.Store.Create(ctx, &a); err != nil {
		s.storeFailure(c, "create", err)
		return
	}
	stored, err := s.deps.Store.GetByID(ctx, a.Key)
	if err != nil {
		s.storeFailure(c, "get", err)
		return
	}
	c.JSON(http.StatusCreated, stored)
}

func (s *Server) handleRecordClick(c *gin.Context) {
	var req clickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "articleId is required"})
		return
	}

	if c.GetBool(ctxIsBot) {
		c.JSON(http.StatusOK, gin.H{"recorded": false})
		return
	}

	ev := model.ClickEvent{
		ArticleID: req.ArticleID,
		Referrer:  req.Referrer,
		Platform:  req.Platform,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	}
	if err := s.deps.Store.RecordClick(c.Request.Context(), ev); err != nil {
		s.storeFailure(c, "record_click", err)
		return
	}
	s.deps.Metrics.Clicked(req.Platform)
	c.JSON(http.StatusOK, gin.H{"recorded": true})
}

func (s *Server) handleAnalytics(c *gin.Context) {
	stats, err := s.deps.Store.ClickStats(c.Request.Context(), c.Param("articleId"))
	if err != nil {
		s.storeFailure(c, "click_stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleShareCounts(c *gin.Context) {
	counts, err := s.deps.Store.ShareCounts(c.Request.Context())
	if err != nil {
		s.storeFailure(c, "share_counts", err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (s *Server) handleShare(c *gin.Context) {
	var req shareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "articleId and platform are required"})
		return
	}

	n, err := s.deps.Store.IncrementShare(c.Request.Context(), req.ArticleID, req.Platform)
	if err != nil {
		s.storeFailure(c, "increment_share", err)
		return
	}
	s.deps.Metrics.Shared(req.Platform)
	c.JSON(http.StatusOK, model.ShareCount{
		ArticleID: req.ArticleID,
		Platform:  req.Platform,
		Count:     n,
	})
}

// handleDebugEvents returns recent pipeline events, optionally filtered by
// ?kind= and capped by ?n=.
func (s *Server) handleDebugEvents(c *gin.Context) {
	n := defaultEventsMax
	if raw := c.Query("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "n must be a positive integer"})
			return
		}
		n = min(v, maxEvents)
	}

	events := []otel.Event{}
	stats := map[otel.EventKind]int{}
	if s.deps.Ring != nil {
		if got := s.deps.Ring.LastOf(n, otel.EventKind(c.Query("kind"))); got != nil {
			events = got
		}
		stats = s.deps.Ring.Stats()
	}

	c.JSON(http.StatusOK, gin.H{
		"events":  events,
		"stats":   stats,
		"dropped": s.deps.Events.Dropped(),
	})
}

func (s *Server) storeFailure(c *gin.Context, op string, err error) {
	_ = c.Error(err)
	logging.Error("store operation failed", "op", op, "error", err)
	s.deps.Metrics.StoreError(op)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
}
