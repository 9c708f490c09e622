// Package logging is the process-wide operator log. Until Init runs every
// call is discarded, so packages can log unconditionally and tests stay
// quiet.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Options select where and how logs are written.
type Options struct {
	Level  string // debug, info, warn or error; info when empty
	Format string // text or json
	File   string // stderr when empty
}

var (
	mu   sync.RWMutex
	cur  = log.New(io.Discard)
	file *os.File
)

// Init replaces the global logger. A previously opened log file is closed.
func Init(opts Options) error {
	l, f, err := build(opts)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		_ = file.Close()
	}
	cur, file = l, f
	return nil
}

func build(opts Options) (*log.Logger, *os.File, error) {
	level := log.InfoLevel
	if opts.Level != "" {
		var err error
		if level, err = log.ParseLevel(opts.Level); err != nil {
			return nil, nil, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
	}

	var (
		w io.Writer = os.Stderr
		f *os.File
	)
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		var err error
		if f, err = os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
	}

	formatter := log.TextFormatter
	if strings.EqualFold(opts.Format, "json") {
		formatter = log.JSONFormatter
	}

	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           level,
		Formatter:       formatter,
	})
	return l, f, nil
}

// Close releases the log file, if any, and goes back to discarding.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		_ = file.Close()
		file = nil
	}
	cur = log.New(io.Discard)
}

func logger() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return cur
}

func Debug(msg string, keyvals ...any) { logger().Debug(msg, keyvals...) }
func Info(msg string, keyvals ...any)  { logger().Info(msg, keyvals...) }
func Warn(msg string, keyvals ...any)  { logger().Warn(msg, keyvals...) }
func Error(msg string, keyvals ...any) { logger().Error(msg, keyvals...) }
