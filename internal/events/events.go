// Package events fans engine status messages out to logs, an in-memory ring,
// desktop notifications, and NATS.
package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Severity classifies an event for display and filtering.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

func (s Severity) rank() int {
	switch s {
	case SeverityError:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s is as severe as min.
func (s Severity) AtLeast(min Severity) bool {
	return s.rank() >= min.rank()
}

// ExecutedPrefix starts the message published after a command's macro ran.
const ExecutedPrefix = "Executed command: "

// Event is one user-facing status message.
type Event struct {
	ID       string    `json:"id"`
	Time     time.Time `json:"time"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
}

// Sink receives published events. Publish must not block for long; it runs
// on the engine goroutine.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Publish calls f.
func (f SinkFunc) Publish(e Event) { f(e) }

// Bus stamps events and delivers them to every sink in registration order.
type Bus struct {
	mu    sync.RWMutex
	sinks []Sink
	now   func() time.Time
}

// NewBus returns a bus delivering to sinks.
func NewBus(sinks ...Sink) *Bus {
	return &Bus{sinks: append([]Sink(nil), sinks...), now: time.Now}
}

// Add registers another sink.
func (b *Bus) Add(s Sink) {
	if s == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, s)
}

// Publish emits message with severity and returns the stamped event.
func (b *Bus) Publish(severity Severity, message string) Event {
	e := Event{
		ID:       uuid.NewString(),
		Time:     b.now().UTC(),
		Severity: severity,
		Message:  message,
	}
	b.mu.RLock()
	sinks := b.sinks
	b.mu.RUnlock()
	for _, s := range sinks {
		s.Publish(e)
	}
	return e
}

// Infof publishes an info event.
func (b *Bus) Infof(format string, args ...any) {
	b.Publish(SeverityInfo, fmt.Sprintf(format, args...))
}

// Warnf publishes a warning event.
func (b *Bus) Warnf(format string, args ...any) {
	b.Publish(SeverityWarning, fmt.Sprintf(format, args...))
}

// Errorf publishes an error event.
func (b *Bus) Errorf(format string, args ...any) {
	b.Publish(SeverityError, fmt.Sprintf(format, args...))
}
