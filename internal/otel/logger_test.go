package otel

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// lines closes l and decodes every JSONL line it wrote to buf.
func lines(t *testing.T, l *Logger, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	l.Close()

	var out []map[string]any
	for i, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			t.Fatalf("line %d is not JSON: %v\n%s", i, err, raw)
		}
		out = append(out, m)
	}
	return out
}

func TestEmitEncodesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.Emit(Event{
		Level:  LevelInfo,
		Kind:   KindFetchComplete,
		Comp:   "feeds",
		Source: "Hacker News",
		Count:  30,
		Dur:    1500 * time.Millisecond,
	})

	got := lines(t, l, &buf)
	if len(got) != 1 {
		t.Fatalf("wrote %d lines, want 1", len(got))
	}
	want := map[string]any{
		"level":  "info",
		"kind":   "fetch.complete",
		"comp":   "feeds",
		"source": "Hacker News",
		"count":  float64(30),
		"dur_ms": float64(1500),
	}
	for k, v := range want {
		if got[0][k] != v {
			t.Errorf("%s = %v, want %v", k, got[0][k], v)
		}
	}
}

func TestEmitOmitsEmptyFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.Emit(Event{Kind: KindShutdown})

	ev := lines(t, l, &buf)[0]
	for _, k := range []string{"level", "comp", "rid", "dur_ms", "count", "source", "method", "path", "status", "err", "msg", "extra"} {
		if _, ok := ev[k]; ok {
			t.Errorf("%q should be omitted: %v", k, ev)
		}
	}
}

func TestEmitStampsTimeAndSession(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	fixed := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	before := time.Now()
	l.Emit(Event{Kind: KindStartup})
	l.Emit(Event{Kind: KindFetchBatch, Time: fixed})
	l.Close()

	var evs []Event
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var e Event
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			t.Fatal(err)
		}
		evs = append(evs, e)
	}

	if evs[0].Time.Before(before) {
		t.Errorf("time %v was not stamped at emit", evs[0].Time)
	}
	if !evs[1].Time.Equal(fixed) {
		t.Errorf("explicit time overwritten: %v", evs[1].Time)
	}
	if len(evs[0].SessionID) != 8 {
		t.Errorf("session id %q, want 8 chars", evs[0].SessionID)
	}
	if evs[0].SessionID != evs[1].SessionID {
		t.Errorf("session changed within one logger: %q vs %q", evs[0].SessionID, evs[1].SessionID)
	}
}

func TestHelpersSetLevelAndKind(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.Info(KindStartup, "main", "serve :8080")
	l.Warn(KindFetchError, "feeds", "slow")
	l.Error(KindStoreError, "store", errors.New("database is locked"))
	l.Error(KindStoreError, "store", nil)
	l.SourceError("Dev.to", nil)
	l.SourceError("Dev.to", errors.New("status 503"))

	got := lines(t, l, &buf)
	if len(got) != 5 {
		t.Fatalf("wrote %d lines, want 5 (nil source error skipped)", len(got))
	}

	cases := []struct{ level, kind, comp, field, value string }{
		{"info", "sys.startup", "main", "msg", "serve :8080"},
		{"warn", "fetch.error", "feeds", "msg", "slow"},
		{"error", "store.error", "store", "err", "database is locked"},
		{"error", "store.error", "store", "", ""},
		{"error", "fetch.error", "feeds", "source", "Dev.to"},
	}
	for i, c := range cases {
		ev := got[i]
		if ev["level"] != c.level || ev["kind"] != c.kind || ev["comp"] != c.comp {
			t.Errorf("line %d = %v, want %s/%s/%s", i, ev, c.level, c.kind, c.comp)
		}
		if c.field != "" && ev[c.field] != c.value {
			t.Errorf("line %d: %s = %v, want %q", i, c.field, ev[c.field], c.value)
		}
	}
	if got[4]["err"] != "status 503" {
		t.Errorf("source error err = %v", got[4]["err"])
	}
}

func TestEmitFromManyGoroutines(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Emit(Event{Kind: KindHTTPRequest, Status: 200 + i})
		}()
	}
	wg.Wait()

	if got := lines(t, l, &buf); len(got) != 50 {
		t.Errorf("wrote %d lines, want 50", len(got))
	}
}

// stallWriter blocks its first Write until release is closed.
type stallWriter struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (w *stallWriter) Write(p []byte) (int, error) {
	w.once.Do(func() {
		close(w.entered)
		<-w.release
	})
	return len(p), nil
}

func TestFullQueueDrops(t *testing.T) {
	w := &stallWriter{entered: make(chan struct{}), release: make(chan struct{})}
	l := NewLogger(w)

	l.Emit(Event{Kind: KindFetchStart})
	<-w.entered

	for range queueSize + 5 {
		l.Emit(Event{Kind: KindFetchStart})
	}
	if l.Dropped() < 5 {
		t.Errorf("dropped %d, want at least 5", l.Dropped())
	}

	close(w.release)
	l.Close()
}

func TestCloseFlushesAndIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.Emit(Event{Kind: KindStartup})
	l.Emit(Event{Kind: KindShutdown})
	l.Close()
	l.Close()

	if n := strings.Count(buf.String(), "\n"); n != 2 {
		t.Errorf("flushed %d lines, want 2", n)
	}

	l.Emit(Event{Kind: KindStartup})
	if l.Dropped() != 1 {
		t.Errorf("emit after close: dropped = %d, want 1", l.Dropped())
	}
}

func TestNilLogger(t *testing.T) {
	var l *Logger
	l.Emit(Event{Kind: KindStartup})
	l.Info(KindStartup, "main", "x")
	l.Error(KindStoreError, "store", errors.New("x"))
	l.SourceError("Medium", errors.New("x"))
	l.SetRingBuffer(NewRingBuffer(2))
	l.Close()
	if l.Dropped() != 0 {
		t.Error("nil logger reported drops")
	}
}

func TestRingBufferReceivesEvents(t *testing.T) {
	rb := NewRingBuffer(8)
	l := NewNullLogger()
	l.SetRingBuffer(rb)

	l.Emit(Event{Kind: KindFetchComplete, Source: "Medium", Dur: 250 * time.Millisecond})
	l.Emit(Event{Kind: KindFetchBatch, Count: 4})
	l.Close()

	got := rb.Snapshot()
	if len(got) != 2 {
		t.Fatalf("ring holds %d events, want 2", len(got))
	}
	if got[0].Dur != 250*time.Millisecond {
		t.Errorf("Dur lost on the way to the ring: %v", got[0].Dur)
	}
	if got[1].Kind != KindFetchBatch || got[1].Count != 4 {
		t.Errorf("second event = %+v", got[1])
	}
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	l.Emit(Event{Kind: KindFetchBatch, Count: 12})
	l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"kind":"fetch.batch"`) || !strings.Contains(string(data), `"count":12`) {
		t.Errorf("unexpected file contents: %s", data)
	}

	// Reopening appends.
	l, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	l.Emit(Event{Kind: KindShutdown})
	l.Close()
	data, _ = os.ReadFile(path)
	if n := strings.Count(string(data), "\n"); n != 2 {
		t.Errorf("file has %d lines after reopen, want 2", n)
	}
}

func TestOpenEmptyPath(t *testing.T) {
	l, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	rb := NewRingBuffer(2)
	l.SetRingBuffer(rb)
	l.Emit(Event{Kind: KindStartup})
	l.Close()
	if rb.Len() != 1 {
		t.Errorf("ring len = %d, want 1", rb.Len())
	}
}
