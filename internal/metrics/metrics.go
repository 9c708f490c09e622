// Package metrics exposes Prometheus instrumentation for the fetch pipeline,
// the store and the HTTP server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace prefixes every vibenews metric.
	Namespace = "vibenews"
)

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Fetch pipeline
	FetchArticlesTotal  *prometheus.CounterVec
	FetchErrorsTotal    *prometheus.CounterVec
	FetchDuration       *prometheus.HistogramVec
	BatchArticles       prometheus.Gauge
	LastBatchTimestamp  prometheus.Gauge
	RateLimitWaitsTotal *prometheus.CounterVec

	// Store
	StoreErrorsTotal *prometheus.CounterVec

	// HTTP
	HTTPRequestsTotal *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	SharesTotal       *prometheus.CounterVec
	ClicksTotal       *prometheus.CounterVec
}

// New creates and registers all metrics on reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	m := &Metrics{}
	m.initFetchMetrics(factory)
	m.initStoreMetrics(factory)
	m.initHTTPMetrics(factory)
	return m
}

func (m *Metrics) initFetchMetrics(factory promauto.Factory) {
	m.FetchArticlesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "fetch",
			Name:      "articles_total",
			Help:      "Articles produced per source",
		},
		[]string{"source"},
	)

	m.FetchErrorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "fetch",
			Name:      "errors_total",
			Help:      "Source fetches that failed and contributed nothing",
		},
		[]string{"source"},
	)

	m.FetchDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "fetch",
			Name:      "duration_seconds",
			Help:      "Duration of one source fetch in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"source"},
	)

	m.BatchArticles = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "fetch",
			Name:      "batch_articles",
			Help:      "Articles in the most recent aggregated batch",
		},
	)

	m.LastBatchTimestamp = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "fetch",
			Name:      "last_batch_timestamp_seconds",
			Help:      "Unix time the most recent batch completed",
		},
	)

	m.RateLimitWaitsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "fetch",
			Name:      "ratelimit_waits_total",
			Help:      "Outbound calls delayed by a rate limit window",
		},
		[]string{"key"},
	)
}

func (m *Metrics) initStoreMetrics(factory promauto.Factory) {
	m.StoreErrorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "store",
			Name:      "errors_total",
			Help:      "Failed store operations",
		},
		[]string{"op"},
	)
}

func (m *Metrics) initHTTPMetrics(factory promauto.Factory) {
	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.SharesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "shares_total",
			Help:      "Recorded shares by platform",
		},
		[]string{"platform"},
	)

	m.ClicksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "clicks_total",
			Help:      "Recorded clicks by platform",
		},
		[]string{"platform"},
	)
}

// ObserveFetch records one finished source fetch.
func (m *Metrics) ObserveFetch(source string, n int, d time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.FetchArticlesTotal.WithLabelValues(source).Add(float64(n))
	m.FetchDuration.WithLabelValues(source).Observe(d.Seconds())
	if failed {
		m.FetchErrorsTotal.WithLabelValues(source).Inc()
	}
}

// ObserveBatch records a completed aggregation.
func (m *Metrics) ObserveBatch(n int, at time.Time) {
	if m == nil {
		return
	}
	m.BatchArticles.Set(float64(n))
	m.LastBatchTimestamp.Set(float64(at.Unix()))
}

// RateLimited counts one delayed outbound call.
func (m *Metrics) RateLimited(key string) {
	if m == nil {
		return
	}
	m.RateLimitWaitsTotal.WithLabelValues(key).Inc()
}

// StoreError counts one failed store operation.
func (m *Metrics) StoreError(op string) {
	if m == nil {
		return
	}
	m.StoreErrorsTotal.WithLabelValues(op).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, statusClass(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Shared counts one share.
func (m *Metrics) Shared(platform string) {
	if m == nil {
		return
	}
	m.SharesTotal.WithLabelValues(platform).Inc()
}

// Clicked counts one recorded click.
func (m *Metrics) Clicked(platform string) {
	if m == nil {
		return
	}
	m.ClicksTotal.WithLabelValues(platform).Inc()
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
