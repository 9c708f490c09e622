// Package otel records what the fetch pipeline and the web server are doing
// as a stream of small structured events.
//
// A Logger encodes each Event as one JSON line and writes it from a
// background goroutine. A RingBuffer attached to the Logger keeps the newest
// events in memory; GET /api/debug/events and the TUI debug overlay read it.
package otel

import (
	"encoding/json"
	"time"
)

// Level is an event's severity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind names what happened, as "area.what".
type EventKind string

// Aggregator events. Every source gets a start and either a complete or an
// error per batch; fetch.batch closes the batch with the article count.
const (
	KindFetchStart    EventKind = "fetch.start"
	KindFetchComplete EventKind = "fetch.complete"
	KindFetchError    EventKind = "fetch.error"
	KindFetchBatch    EventKind = "fetch.batch"
)

const (
	KindStoreError  EventKind = "store.error"
	KindHTTPRequest EventKind = "http.request"
	KindStartup     EventKind = "sys.startup"
	KindShutdown    EventKind = "sys.shutdown"
)

// Event is one pipeline record. Only Kind is required; Time and SessionID
// are filled in by Logger.Emit.
type Event struct {
	Time      time.Time `json:"t"`
	Level     Level     `json:"level,omitempty"`
	Kind      EventKind `json:"kind"`
	Comp      string    `json:"comp,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	RequestID string    `json:"rid,omitempty"`

	// Dur is written as dur_ms.
	Dur   time.Duration `json:"-"`
	DurMs float64       `json:"dur_ms,omitempty"`

	Source string `json:"source,omitempty"` // adapter name, e.g. "Reddit r/artificialinteligence"
	Count  int    `json:"count,omitempty"`

	Method string `json:"method,omitempty"`
	Path   string `json:"path,omitempty"`
	Status int    `json:"status,omitempty"`

	Err   string         `json:"err,omitempty"`
	Msg   string         `json:"msg,omitempty"`
	Extra map[string]any `json:"extra,omitempty"`
}

// MarshalJSON fills dur_ms from Dur.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	p := plain(e)
	if e.Dur > 0 {
		p.DurMs = e.Dur.Seconds() * 1000
	}
	return json.Marshal(p)
}
