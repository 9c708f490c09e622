// Package store provides SQLite persistence for articles, share counts and
// click analytics.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/abelbrown/vibenews/internal/model"
)

// ErrNotFound is returned when no article has the requested key.
var ErrNotFound = errors.New("store: article not found")

// Store keeps articles, share counters and click events in SQLite. Writes
// take an exclusive lock, reads a shared one.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

// Open opens (or creates) the database at dbPath and ensures the schema.
// File databases run in WAL mode; ":memory:" gives a private in-process one.
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// shared cache so every pooled connection sees one database
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := New(db)
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

// New wraps an already open database. Tables are not created.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS articles (
		key TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		author TEXT NOT NULL,
		published_at TEXT NOT NULL,
		source TEXT NOT NULL,
		tags TEXT NOT NULL DEFAULT '[]',
		image_url TEXT,
		url TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published_at DESC);
	CREATE INDEX IF NOT EXISTS idx_articles_source ON articles(source);

	CREATE TABLE IF NOT EXISTS share_counts (
		article_id TEXT NOT NULL,
		platform TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (article_id, platform)
	);

	CREATE TABLE IF NOT EXISTS click_events (
		id TEXT PRIMARY KEY,
		article_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		referrer TEXT,
		platform TEXT,
		user_agent TEXT,
		ip_address TEXT,
		country TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_click_events_article ON click_events(article_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close waits for in-flight queries, then closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Create stores a, keyed by its durable key. An article whose key is
// already stored is left untouched. a is not modified.
func (s *Store) Create(ctx context.Context, a *model.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := a.Key
	if key == "" {
		key = model.DurableKey(*a)
	}
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO articles (
			key, title, content, author, published_at, source, tags, image_url, url
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, key, a.Title, a.Content, a.Author, a.PublishedAt, a.Source, string(tagsJSON), a.ImageURL, a.URL)
	if err != nil {
		return fmt.Errorf("insert article %s: %w", key, err)
	}
	return nil
}

const articleColumns = `rowid, key, title, content, author, published_at, source, tags, image_url, url`

// GetAll returns every stored article, newest first. ID is the row number.
func (s *Store) GetAll(ctx context.Context) ([]model.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+articleColumns+` FROM articles ORDER BY published_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	articles := []model.Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return articles, nil
}

// GetByID returns the article stored under key, or ErrNotFound.
func (s *Store) GetByID(ctx context.Context, key string) (model.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE key = ?`, key)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Article{}, ErrNotFound
	}
	return a, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArticle(sc scanner) (model.Article, error) {
	var (
		a          model.Article
		tags       string
		image, url sql.NullString
	)
	if err := sc.Scan(&a.ID, &a.Key, &a.Title, &a.Content, &a.Author, &a.PublishedAt, &a.Source, &tags, &image, &url); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return a, err
		}
		return a, fmt.Errorf("scan article: %w", err)
	}
	a.ImageURL = image.String
	a.URL = url.String
	if err := json.Unmarshal([]byte(tags), &a.Tags); err != nil || a.Tags == nil {
		a.Tags = []string{}
	}
	return a, nil
}

// IncrementShare adds one share of articleID on platform and returns the
// new count.
func (s *Store) IncrementShare(ctx context.Context, articleID, platform string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO share_counts (article_id, platform, count) VALUES (?, ?, 1)
		ON CONFLICT(article_id, platform) DO UPDATE SET count = count + 1
		RETURNING count
	`, articleID, platform).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment share %s/%s: %w", articleID, platform, err)
	}
	return count, nil
}

// ShareCounts returns every share count keyed "articleId:platform".
func (s *Store) ShareCounts(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT article_id, platform, count FROM share_counts`)
	if err != nil {
		return nil, fmt.Errorf("query share counts: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var sc model.ShareCount
		if err := rows.Scan(&sc.ArticleID, &sc.Platform, &sc.Count); err != nil {
			return nil, fmt.Errorf("scan share count: %w", err)
		}
		counts[sc.ArticleID+":"+sc.Platform] = sc.Count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate share counts: %w", err)
	}
	return counts, nil
}

// RecordClick appends a click event. ID and Timestamp are filled in when
// empty.
func (s *Store) RecordClick(ctx context.Context, ev model.ClickEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO click_events (id, article_id, timestamp, referrer, platform, user_agent, ip_address, country)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.ArticleID, ev.Timestamp.UTC(), nullable(ev.Referrer), nullable(ev.Platform),
		nullable(ev.UserAgent), nullable(ev.IPAddress), nullable(ev.Country))
	if err != nil {
		return fmt.Errorf("insert click %s: %w", ev.ArticleID, err)
	}
	return nil
}

// ClickStats returns {"total": n} plus one count per known platform for
// articleID. Clicks without a platform only count toward the total.
func (s *Store) ClickStats(ctx context.Context, articleID string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]int{"total": 0}
	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(platform, ''), COUNT(*) FROM click_events
		WHERE article_id = ?
		GROUP BY platform
	`, articleID)
	if err != nil {
		return nil, fmt.Errorf("query click stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var platform string
		var n int
		if err := rows.Scan(&platform, &n); err != nil {
			return nil, fmt.Errorf("scan click stats: %w", err)
		}
		stats["total"] += n
		if platform != "" {
			stats[platform] += n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate click stats: %w", err)
	}
	return stats, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
