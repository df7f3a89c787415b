// Package whisper provides the neural recognizer backed by whisper.cpp. The
// ggml model is fetched and loaded on first use.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/rbright/voicecmd/internal/audio"
	"github.com/rbright/voicecmd/internal/recognizer"
)

// Kind is the recognizer kind served by this package.
const Kind = "whisper"

const (
	defaultModel    = "tiny"
	defaultLanguage = "english"
)

// ModelSource resolves a whisper model name and language to a ggml file path.
type ModelSource interface {
	EnsureWhisper(ctx context.Context, model, language string) (string, error)
}

// Provider creates whisper sessions.
type Provider struct {
	models ModelSource
	logger *slog.Logger
}

// NewProvider returns a whisper provider.
func NewProvider(models ModelSource, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Provider{models: models, logger: logger}
}

// New records the options. Nothing is loaded until the first Recognize.
func (p *Provider) New(_ context.Context, spec recognizer.Spec) (recognizer.Session, error) {
	return &session{
		models:   p.models,
		logger:   p.logger,
		model:    spec.Option("model", defaultModel),
		language: strings.ToLower(strings.TrimSpace(spec.Option("language", defaultLanguage))),
	}, nil
}

type session struct {
	models   ModelSource
	logger   *slog.Logger
	model    string
	language string

	mu     sync.Mutex
	loaded whisper.Model
	closed bool
}

func (s *session) Kind() string { return Kind }

func (s *session) Recognize(ctx context.Context, sample audio.Sample) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", recognizer.Unavailable(errors.New("session closed"))
	}
	if err := s.load(ctx); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", recognizer.Unavailable(err)
	}

	wctx, err := s.loaded.NewContext()
	if err != nil {
		return "", recognizer.Unavailable(fmt.Errorf("new whisper context: %w", err))
	}
	wctx.SetTranslate(false)
	if hint := languageHint(s.language, s.loaded.IsMultilingual()); hint != "" {
		if err := wctx.SetLanguage(hint); err != nil {
			return "", recognizer.Unavailable(fmt.Errorf("set language %q: %w", hint, err))
		}
	}

	if err := wctx.Process(sample.Float32(), nil, nil, nil); err != nil {
		return "", recognizer.Unavailable(fmt.Errorf("whisper process: %w", err))
	}

	var text strings.Builder
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", recognizer.Unavailable(fmt.Errorf("whisper segment: %w", err))
		}
		text.WriteString(segment.Text)
		text.WriteByte(' ')
	}
	return recognizer.Finish(text.String())
}

func (s *session) load(ctx context.Context) error {
	if s.loaded != nil {
		return nil
	}
	path, err := s.models.EnsureWhisper(ctx, s.model, s.language)
	if err != nil {
		return err
	}
	model, err := whisper.New(path)
	if err != nil {
		return fmt.Errorf("load whisper model %s: %w", path, err)
	}
	s.loaded = model
	s.logger.Debug("whisper model loaded", "model", s.model, "language", s.language, "path", path)
	return nil
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.loaded == nil {
		return nil
	}
	err := s.loaded.Close()
	s.loaded = nil
	return err
}

// languageHint maps the configured language to the decoder hint. "auto" and
// the empty string leave detection to the model. English-only models (the
// ".en" files) reject any hint, so none is set for them.
func languageHint(language string, multilingual bool) string {
	if !multilingual {
		return ""
	}
	switch language {
	case "", "auto":
		return ""
	default:
		return language
	}
}
