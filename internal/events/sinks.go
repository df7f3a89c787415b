package events

import (
	"context"
	"log/slog"
	"sync"
)

// LogSink writes events to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink wraps logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (l *LogSink) Publish(e Event) {
	level := slog.LevelInfo
	switch e.Severity {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityError:
		level = slog.LevelError
	}
	l.logger.LogAttrs(context.Background(), level, e.Message,
		slog.String("event_id", e.ID),
		slog.String("severity", string(e.Severity)),
	)
}

// Ring keeps the most recent events in memory.
type Ring struct {
	mu     sync.Mutex
	buf    []Event
	next   int
	filled bool
}

// DefaultRingSize is used when NewRing gets a non-positive size.
const DefaultRingSize = 100

// NewRing returns a ring holding up to size events.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Ring{buf: make([]Event, size)}
}

func (r *Ring) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = e
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.filled = true
	}
}

// Recent returns up to n events, oldest first. n <= 0 returns everything held.
func (r *Ring) Recent(n int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ordered []Event
	if r.filled {
		ordered = append(ordered, r.buf[r.next:]...)
	}
	ordered = append(ordered, r.buf[:r.next]...)
	if n > 0 && n < len(ordered) {
		ordered = ordered[len(ordered)-n:]
	}
	return ordered
}
