// Package cue plays short audible cues for engine events.
package cue

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/rbright/voicecmd/internal/events"
)

const queueSize = 8

// Player renders one cue.
type Player interface {
	Play(ctx context.Context, kind Kind) error
}

// KindFor maps an event to its cue. Informational events other than an
// executed command are silent.
func KindFor(e events.Event) (Kind, bool) {
	switch e.Severity {
	case events.SeverityError:
		return KindError, true
	case events.SeverityWarning:
		return KindWarning, true
	}
	if strings.HasPrefix(e.Message, events.ExecutedPrefix) {
		return KindExecuted, true
	}
	return 0, false
}

// Sink plays cues for published events on its own goroutine, one at a time.
// Cues arriving while the queue is full are dropped.
type Sink struct {
	player Player
	logger *slog.Logger

	queue  chan Kind
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewSink starts the playback goroutine. Call Close to stop it.
func NewSink(player Player, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Sink{
		player: player,
		logger: logger,
		queue:  make(chan Kind, queueSize),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.loop()
	return s
}

// Publish queues the cue for e. Nothing plays after Close.
func (s *Sink) Publish(e events.Event) {
	kind, ok := KindFor(e)
	if !ok || s.ctx.Err() != nil {
		return
	}
	select {
	case s.queue <- kind:
	default:
		s.logger.Debug("cue dropped", "cue", kind.String(), "event_id", e.ID)
	}
}

func (s *Sink) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case kind := <-s.queue:
			if err := s.player.Play(s.ctx, kind); err != nil && s.ctx.Err() == nil {
				s.logger.Debug("cue playback failed", "cue", kind.String(), "error", err.Error())
			}
		}
	}
}

// Close abandons queued cues and waits for the one playing to return.
func (s *Sink) Close() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}
