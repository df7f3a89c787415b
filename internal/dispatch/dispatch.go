// Package dispatch replays command macros as synthetic keystrokes.
//
// A macro is a ';'-separated token list. Tokens naming a key symbol ("enter",
// "ctrl_l", "f5") tap that key; any other token is typed character by
// character.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DefaultDelay follows every press and release pair.
const DefaultDelay = 100 * time.Millisecond

// Keyboard injects key events.
type Keyboard interface {
	Press(k Key) error
	Release(k Key) error
}

// Dispatcher runs macros against a Keyboard.
type Dispatcher struct {
	kb     Keyboard
	delay  time.Duration
	sleep  func(time.Duration)
	logger *slog.Logger
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithDelay overrides the pause after each key.
func WithDelay(d time.Duration) Option {
	return func(disp *Dispatcher) {
		if d >= 0 {
			disp.delay = d
		}
	}
}

// WithSleep replaces time.Sleep.
func WithSleep(sleep func(time.Duration)) Option {
	return func(disp *Dispatcher) { disp.sleep = sleep }
}

// WithLogger sets the debug logger.
func WithLogger(logger *slog.Logger) Option {
	return func(disp *Dispatcher) { disp.logger = logger }
}

// New returns a dispatcher typing through kb.
func New(kb Keyboard, opts ...Option) *Dispatcher {
	d := &Dispatcher{kb: kb, delay: DefaultDelay, sleep: time.Sleep}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.New(slog.DiscardHandler)
	}
	return d
}

// Run executes macro. It stops at the first injection failure or when ctx is
// done.
func (d *Dispatcher) Run(ctx context.Context, macro string) error {
	for _, token := range strings.Split(macro, ";") {
		if key, ok := Symbol(token); ok {
			if err := d.tap(ctx, key); err != nil {
				return fmt.Errorf("key %q: %w", token, err)
			}
			continue
		}
		for _, r := range token {
			key, ok := Char(r)
			if !ok {
				d.logger.Debug("skipping untypeable character", "rune", string(r))
				continue
			}
			if err := d.tap(ctx, key); err != nil {
				return fmt.Errorf("type %q: %w", r, err)
			}
		}
	}
	return nil
}

func (d *Dispatcher) tap(ctx context.Context, k Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.kb.Press(k); err != nil {
		return err
	}
	if err := d.kb.Release(k); err != nil {
		return err
	}
	d.sleep(d.delay)
	return nil
}
