package server

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/abelbrown/vibenews/internal/logging"
	"github.com/abelbrown/vibenews/internal/metrics"
	"github.com/abelbrown/vibenews/internal/otel"
)

// Context keys set by the middleware.
const (
	ctxRequestID = "request_id"
	ctxIsBot     = "is_bot"
)

// Recovery catches handler panics, logs them and answers 500.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logging.Error("panic recovered",
					"error", err,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
					"client_ip", c.ClientIP(),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "internal server error",
				})
			}
		}()
		c.Next()
	}
}

// RequestID takes X-Request-ID from the request or generates one, and echoes
// it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// RequestLogger logs one line per request and emits an http.request event.
func RequestLogger(events *otel.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		d := time.Since(start)
		status := c.Writer.Status()
		rid := c.GetString(ctxRequestID)

		keyvals := []interface{}{
			"method", method,
			"path", path,
			"status", status,
			"duration", d,
			"client_ip", c.ClientIP(),
			"request_id", rid,
		}
		if !strings.HasPrefix(path, "/health") {
			keyvals = append(keyvals, "user_agent", c.Request.UserAgent())
		}

		if len(c.Errors) > 0 {
			keyvals = append(keyvals, "errors", c.Errors.String())
			logging.Error("http request with errors", keyvals...)
		} else {
			logging.Info("http request", keyvals...)
		}

		ev := otel.Event{
			Level:     otel.LevelInfo,
			Kind:      otel.KindHTTPRequest,
			Comp:      "server",
			RequestID: rid,
			Method:    method,
			Path:      path,
			Status:    status,
			Dur:       d,
		}
		if status >= http.StatusInternalServerError {
			ev.Level = otel.LevelError
			ev.Err = c.Errors.String()
		}
		events.Emit(ev)
	}
}

// Metrics records request count and latency by route template.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// botPatterns are known bot User-Agent substrings (lowercase).
var botPatterns = []string{
	"googlebot", "bingbot", "slurp", "duckduckbot",
	"baiduspider", "yandexbot", "facebookexternalhit",
	"twitterbot", "rogerbot", "linkedinbot", "embedly",
	"quora link preview", "showyoubot", "outbrain",
	"pinterest", "applebot", "semrushbot", "ahrefsbot",
	"mj12bot", "dotbot", "petalbot", "bytespider",
}

// BotFilter sets is_bot for known crawlers and empty user agents. Handlers
// still answer bots; they only skip recording.
func BotFilter() gin.HandlerFunc {
	return func(c *gin.Context) {
		ua := strings.ToLower(c.Request.UserAgent())
		if ua == "" || isBot(ua) {
			c.Set(ctxIsBot, true)
		}
		c.Next()
	}
}

func isBot(ua string) bool {
	for _, pattern := range botPatterns {
		if strings.Contains(ua, pattern) {
			return true
		}
	}
	return false
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// idleClientTTL is how long an idle client's limiter is kept.
const idleClientTTL = 10 * time.Minute

// RateLimiter throttles each client IP to r requests per second with the
// given burst. Excess requests get 429.
func RateLimiter(r rate.Limit, burst int) gin.HandlerFunc {
	var (
		mu        sync.Mutex
		clients   = make(map[string]*clientLimiter)
		lastSweep = time.Now()
	)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		if now.Sub(lastSweep) > idleClientTTL {
			for k, cl := range clients {
				if now.Sub(cl.lastSeen) > idleClientTTL {
					delete(clients, k)
				}
			}
			lastSweep = now
		}
		cl, ok := clients[ip]
		if !ok {
			cl = &clientLimiter{limiter: rate.NewLimiter(r, burst)}
			clients[ip] = cl
		}
		cl.lastSeen = now
		allowed := cl.limiter.AllowN(now, 1)
		mu.Unlock()

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
