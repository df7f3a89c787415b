// Package recognizer turns captured phrases into normalized text through
// pluggable backends.
package recognizer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rbright/voicecmd/internal/audio"
	"github.com/rbright/voicecmd/internal/textnorm"
)

// Session is one loaded recognition backend.
type Session interface {
	Kind() string
	// Recognize returns normalized text, or a RecognitionError.
	Recognize(ctx context.Context, sample audio.Sample) (string, error)
	Close() error
}

// Spec selects a backend and its options.
type Spec struct {
	Kind string
	// Options holds the kind's settings keyed without the "kind:" prefix.
	Options map[string]string
	// Keywords is only read by keyword spotting backends.
	Keywords []Keyword
}

// Option returns Options[name] or fallback when unset.
func (s Spec) Option(name, fallback string) string {
	if v, ok := s.Options[name]; ok && v != "" {
		return v
	}
	return fallback
}

// Provider creates sessions of one kind.
type Provider interface {
	New(ctx context.Context, spec Spec) (Session, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, spec Spec) (Session, error)

// New calls f.
func (f ProviderFunc) New(ctx context.Context, spec Spec) (Session, error) {
	return f(ctx, spec)
}

// Factory maps recognizer kinds to providers.
type Factory struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewFactory returns an empty factory.
func NewFactory() *Factory {
	return &Factory{providers: map[string]Provider{}}
}

// Register binds kind to p, replacing any earlier provider.
func (f *Factory) Register(kind string, p Provider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.providers[kind] = p
}

// Kinds lists registered kinds in sorted order.
func (f *Factory) Kinds() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	kinds := make([]string, 0, len(f.providers))
	for kind := range f.providers {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Create builds a session for spec. Every failure is a *SetupError.
func (f *Factory) Create(ctx context.Context, spec Spec) (Session, error) {
	f.mu.RLock()
	p, ok := f.providers[spec.Kind]
	f.mu.RUnlock()
	if !ok {
		return nil, &SetupError{Kind: spec.Kind, Err: fmt.Errorf("unknown recognizer kind %q", spec.Kind)}
	}

	session, err := p.New(ctx, spec)
	if err != nil {
		return nil, &SetupError{Kind: spec.Kind, Err: err}
	}
	if session == nil {
		return nil, &SetupError{Kind: spec.Kind, Err: fmt.Errorf("provider returned no session")}
	}
	return session, nil
}

// Finish normalizes raw backend output. Empty text becomes a NoMatch error.
func Finish(raw string) (string, error) {
	text := textnorm.Normalize(raw)
	if text == "" {
		return "", NoMatch()
	}
	return text, nil
}
