// Package config loads the vibenews configuration from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when no --config flag is given.
const DefaultPath = "vibenews.yml"

// Config is the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Logging    LoggingConfig    `yaml:"logging"`
	Fetch      FetchConfig      `yaml:"fetch"`
	HackerNews HackerNewsConfig `yaml:"hackernews"`
	DevTo      DevToConfig      `yaml:"devto"`
	Reddit     RedditConfig     `yaml:"reddit"`
	Medium     MediumConfig     `yaml:"medium"`
	Feeds      []FeedConfig     `yaml:"feeds"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr      string `yaml:"addr" env:"VIBENEWS_ADDR"`
	Version   string `yaml:"version"`
	BaseURL   string `yaml:"base_url" env:"VIBENEWS_BASE_URL"`
	LiveFetch bool   `yaml:"live_fetch" env:"VIBENEWS_LIVE_FETCH"`
	GinMode   string `yaml:"gin_mode" env:"GIN_MODE"`

	// Per-client throttle on POST /api/* routes
	APIRate  float64 `yaml:"api_rate"`
	APIBurst int     `yaml:"api_burst"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds SQLite settings
type DatabaseConfig struct {
	Path string `yaml:"path" env:"VIBENEWS_DB"`
}

// LoggingConfig holds log output settings
type LoggingConfig struct {
	Level      string `yaml:"level" env:"VIBENEWS_LOG_LEVEL"`
	Format     string `yaml:"format" env:"VIBENEWS_LOG_FORMAT"` // "text" or "json"
	File       string `yaml:"file"`
	EventsFile string `yaml:"events_file"`
}

// FetchConfig holds the outbound HTTP and polling settings shared by all sources
type FetchConfig struct {
	Interval            time.Duration `yaml:"interval" env:"VIBENEWS_FETCH_INTERVAL"`
	Persist             bool          `yaml:"persist"`
	UserAgent           string        `yaml:"user_agent"`
	ConnectTimeout      time.Duration `yaml:"connect_timeout"`
	RequestTimeout      time.Duration `yaml:"request_timeout"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
}

// HackerNewsConfig configures the Hacker News adapter
type HackerNewsConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Limit   int    `yaml:"limit"`
}

// DevToConfig configures the Dev.to adapter
type DevToConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Tag     string `yaml:"tag"`
	PerPage int    `yaml:"per_page"`
}

// RedditConfig configures the Reddit adapter and its OAuth credentials
type RedditConfig struct {
	Enabled      bool            `yaml:"enabled"`
	ClientID     string          `yaml:"client_id" env:"REDDIT_CLIENT_ID"`
	ClientSecret string          `yaml:"client_secret" env:"REDDIT_CLIENT_SECRET"`
	Subreddit    string          `yaml:"subreddit"`
	Limit        int             `yaml:"limit"`
	TokenURL     string          `yaml:"token_url"`
	APIURL       string          `yaml:"api_url"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig is a fixed-window quota
type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// MediumConfig configures the Medium RSS adapter
type MediumConfig struct {
	Enabled bool   `yaml:"enabled"`
	FeedURL string `yaml:"feed_url"`
}

// FeedConfig is an additional RSS or Atom feed
type FeedConfig struct {
	Name string   `yaml:"name"`
	URL  string   `yaml:"url"`
	Tags []string `yaml:"tags"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			Version:         "1.0.0",
			LiveFetch:       true,
			GinMode:         "release",
			APIRate:         5,
			APIBurst:        20,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "vibenews.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Fetch: FetchConfig{
			Interval:            0, // on-demand only
			Persist:             true,
			UserAgent:           "AI-Vibe-News/1.0",
			ConnectTimeout:      5 * time.Second,
			RequestTimeout:      15 * time.Second,
			MaxConnsPerHost:     100,
			MaxIdleConnsPerHost: 20,
		},
		HackerNews: HackerNewsConfig{
			Enabled: true,
			BaseURL: "https://hacker-news.firebaseio.com/v0",
			Limit:   15,
		},
		DevTo: DevToConfig{
			Enabled: true,
			BaseURL: "https://dev.to/api",
			Tag:     "ai",
			PerPage: 15,
		},
		Reddit: RedditConfig{
			Enabled:   true,
			Subreddit: "artificialinteligence",
			Limit:     15,
			TokenURL:  "https://www.reddit.com/api/v1/access_token",
			APIURL:    "https://oauth.reddit.com",
			RateLimit: RateLimitConfig{
				Requests: 10,
				Window:   60 * time.Second,
			},
		},
		Medium: MediumConfig{
			Enabled: true,
			FeedURL: "https://medium.com/feed/tag/artificial-intelligence",
		},
		Feeds: []FeedConfig{},
	}
}

// Load reads config from path over the defaults. A missing file is not an
// error. ${VAR} references in the file are expanded and `env` tags override
// whatever the file says.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	default:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("config: server.addr is required")
	}
	if c.Fetch.RequestTimeout <= 0 {
		return errors.New("config: fetch.request_timeout must be positive")
	}
	if c.Fetch.ConnectTimeout <= 0 {
		return errors.New("config: fetch.connect_timeout must be positive")
	}
	if c.Fetch.Interval < 0 {
		return errors.New("config: fetch.interval must not be negative")
	}
	if !c.Server.LiveFetch && c.Fetch.Interval == 0 {
		return errors.New("config: server.live_fetch=false needs a positive fetch.interval")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: unknown logging.format %q", c.Logging.Format)
	}
	if c.Reddit.Enabled && c.Reddit.Subreddit == "" {
		return errors.New("config: reddit.subreddit is required")
	}
	if c.Reddit.RateLimit.Requests > 0 && c.Reddit.RateLimit.Window <= 0 {
		return errors.New("config: reddit.rate_limit.window must be positive")
	}
	for i, f := range c.Feeds {
		if f.URL == "" {
			return fmt.Errorf("config: feeds[%d] has no url", i)
		}
	}
	return nil
}

// applyEnvOverrides sets struct fields from the variables named by their
// `env` tags.
func applyEnvOverrides(v any) error {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil
	}

	t := val.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := val.Field(i)

		if fieldVal.Kind() == reflect.Struct {
			if err := applyEnvOverrides(fieldVal.Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		name := field.Tag.Get("env")
		if name == "" || !fieldVal.CanSet() {
			continue
		}
		raw, ok := os.LookupEnv(name)
		if !ok {
			continue
		}

		switch {
		case fieldVal.Type() == reflect.TypeOf(time.Duration(0)):
			d, err := time.ParseDuration(raw)
			if err != nil {
				return fmt.Errorf("config: %s: %w", name, err)
			}
			fieldVal.SetInt(int64(d))
		case fieldVal.Kind() == reflect.String:
			fieldVal.SetString(raw)
		case fieldVal.Kind() == reflect.Int:
			n, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("config: %s: %w", name, err)
			}
			fieldVal.SetInt(int64(n))
		case fieldVal.Kind() == reflect.Bool:
			fieldVal.SetBool(strings.EqualFold(raw, "true") || raw == "1")
		}
	}
	return nil
}
