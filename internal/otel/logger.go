package otel

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// queueSize bounds the number of events waiting for the writer goroutine.
const queueSize = 4096

// queued pairs an encoded JSONL line with the event it came from. The ring
// buffer gets the event itself so Dur survives.
type queued struct {
	line []byte
	ev   Event
}

// Logger appends events to a JSONL stream from a single writer goroutine.
// Emit never blocks: events that cannot be queued are counted in Dropped.
// All methods accept a nil *Logger and do nothing.
type Logger struct {
	session string
	out     io.Writer
	closer  io.Closer

	queue    chan queued
	finished chan struct{}
	stopped  atomic.Bool
	stopOnce sync.Once
	dropped  atomic.Uint64

	ring atomic.Pointer[RingBuffer]
}

// NewLogger starts a Logger writing to w. Close flushes and stops it.
func NewLogger(w io.Writer) *Logger {
	l := &Logger{
		session:  uuid.NewString()[:8],
		out:      w,
		queue:    make(chan queued, queueSize),
		finished: make(chan struct{}),
	}
	go l.run()
	return l
}

// NewNullLogger returns a Logger whose stream is discarded. An attached ring
// buffer still receives events.
func NewNullLogger() *Logger { return NewLogger(io.Discard) }

// Open returns a Logger appending to the file at path, creating parent
// directories as needed. An empty path yields a null logger.
func Open(path string) (*Logger, error) {
	if path == "" {
		return NewNullLogger(), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create event log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	l := NewLogger(f)
	l.closer = f
	return l, nil
}

func (l *Logger) run() {
	defer close(l.finished)
	for q := range l.queue {
		if _, err := l.out.Write(q.line); err != nil {
			l.dropped.Add(1)
		}
		if rb := l.ring.Load(); rb != nil {
			rb.Push(q.ev)
		}
	}
}

// Emit stamps e with the session ID (and the current time when unset) and
// queues it.
func (l *Logger) Emit(e Event) {
	if l == nil {
		return
	}
	if l.stopped.Load() {
		l.dropped.Add(1)
		return
	}
	// Close can win the race after the check above; a send on the closed
	// queue then panics and counts as a drop.
	defer func() {
		if recover() != nil {
			l.dropped.Add(1)
		}
	}()

	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	e.SessionID = l.session

	line, err := json.Marshal(e)
	if err != nil {
		l.dropped.Add(1)
		return
	}

	select {
	case l.queue <- queued{line: append(line, '\n'), ev: e}:
	default:
		l.dropped.Add(1)
	}
}

// Info emits an info event with a message.
func (l *Logger) Info(kind EventKind, comp, msg string) {
	l.Emit(Event{Level: LevelInfo, Kind: kind, Comp: comp, Msg: msg})
}

// Warn emits a warn event with a message.
func (l *Logger) Warn(kind EventKind, comp, msg string) {
	l.Emit(Event{Level: LevelWarn, Kind: kind, Comp: comp, Msg: msg})
}

// Error emits an error event. A nil err leaves Err empty.
func (l *Logger) Error(kind EventKind, comp string, err error) {
	e := Event{Level: LevelError, Kind: kind, Comp: comp}
	if err != nil {
		e.Err = err.Error()
	}
	l.Emit(e)
}

// SourceError records a failed fetch from one source. Nil errors are ignored.
func (l *Logger) SourceError(source string, err error) {
	if err == nil {
		return
	}
	l.Emit(Event{Level: LevelError, Kind: KindFetchError, Comp: "feeds", Source: source, Err: err.Error()})
}

// SetRingBuffer mirrors every written event into rb. Passing nil detaches.
func (l *Logger) SetRingBuffer(rb *RingBuffer) {
	if l != nil {
		l.ring.Store(rb)
	}
}

// Dropped reports how many events were lost to a full queue, a closed
// logger or a failed write.
func (l *Logger) Dropped() uint64 {
	if l == nil {
		return 0
	}
	return l.dropped.Load()
}

// Close drains the queue, closes an owned file and reports drops on stderr.
// Calling it more than once is harmless.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.stopOnce.Do(func() {
		l.stopped.Store(true)
		close(l.queue)
		<-l.finished

		if l.closer != nil {
			_ = l.closer.Close()
		}
		if n := l.dropped.Load(); n > 0 {
			fmt.Fprintf(os.Stderr, "vibenews: session %s dropped %d events\n", l.session, n)
		}
	})
}
