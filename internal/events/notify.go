package events

import (
	"log/slog"
	"sync"

	"github.com/gen2brain/beeep"
)

// DefaultAppName titles desktop notifications.
const DefaultAppName = "voicecmd"

const notifyQueue = 16

// NotifySink shows warnings and errors as desktop notifications. Delivery
// runs on its own goroutine; events arriving while the queue is full are
// dropped.
type NotifySink struct {
	appName string
	min     Severity
	logger  *slog.Logger
	notify  func(title, message, icon string) error
	alert   func(title, message, icon string) error

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}
	once   sync.Once
}

// NotifyOption customizes a NotifySink.
type NotifyOption func(*NotifySink)

// WithMinSeverity sets the lowest severity that is shown.
func WithMinSeverity(s Severity) NotifyOption {
	return func(n *NotifySink) { n.min = s }
}

// WithNotifier replaces the desktop backend. The same function serves
// warnings and errors.
func WithNotifier(fn func(title, message, icon string) error) NotifyOption {
	return func(n *NotifySink) {
		n.notify = fn
		n.alert = fn
	}
}

// NewNotifySink starts the delivery goroutine. Call Close to stop it.
func NewNotifySink(appName string, logger *slog.Logger, opts ...NotifyOption) *NotifySink {
	if appName == "" {
		appName = DefaultAppName
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	n := &NotifySink{
		appName: appName,
		min:     SeverityWarning,
		logger:  logger,
		notify:  beeep.Notify,
		alert:   beeep.Alert,
		queue:   make(chan Event, notifyQueue),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	go n.loop()
	return n
}

// Publish queues e for display. Events published after Close are dropped.
func (n *NotifySink) Publish(e Event) {
	if !e.Severity.AtLeast(n.min) {
		return
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}
	select {
	case n.queue <- e:
	default:
		n.logger.Debug("notification dropped", "event_id", e.ID)
	}
}

// Close stops delivery after the queued notifications are shown.
func (n *NotifySink) Close() {
	n.once.Do(func() {
		n.mu.Lock()
		n.closed = true
		close(n.queue)
		n.mu.Unlock()
		<-n.done
	})
}

func (n *NotifySink) loop() {
	defer close(n.done)
	for e := range n.queue {
		title := n.appName
		send := n.notify
		switch e.Severity {
		case SeverityError:
			title += ": error"
			send = n.alert
		case SeverityWarning:
			title += ": warning"
		}
		if err := send(title, e.Message, ""); err != nil {
			n.logger.Debug("desktop notification failed", "error", err.Error())
		}
	}
}
