// Package vosk provides the model-based and keyword-spotting recognizers on
// top of the vosk speech toolkit.
package vosk

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	vosk "github.com/alphacep/vosk-api/go"
	"github.com/rbright/voicecmd/internal/audio"
	"github.com/rbright/voicecmd/internal/recognizer"
)

const (
	// KindModel is the free-form dictation recognizer.
	KindModel = "vosk"
	// KindKeyword restricts recognition to the active profile's phrases.
	KindKeyword = "keyword"

	defaultModel = "small-en"
)

func init() {
	vosk.SetLogLevel(-1)
}

// ModelSource resolves a vosk model id to an unpacked model directory,
// fetching it when needed.
type ModelSource interface {
	EnsureVosk(ctx context.Context, id string) (string, error)
}

// Provider creates vosk sessions.
type Provider struct {
	models  ModelSource
	logger  *slog.Logger
	keyword bool
}

// NewProvider returns the free-form vosk provider.
func NewProvider(models ModelSource, logger *slog.Logger) *Provider {
	return &Provider{models: models, logger: logger}
}

// NewKeywordProvider returns the keyword spotting provider. Sessions only
// recognize the phrases passed in Spec.Keywords.
func NewKeywordProvider(models ModelSource, logger *slog.Logger) *Provider {
	return &Provider{models: models, logger: logger, keyword: true}
}

func (p *Provider) kind() string {
	if p.keyword {
		return KindKeyword
	}
	return KindModel
}

// New ensures the model is on disk and loads it.
func (p *Provider) New(ctx context.Context, spec recognizer.Spec) (recognizer.Session, error) {
	id := spec.Option("model", defaultModel)
	dir, err := p.models.EnsureVosk(ctx, id)
	if err != nil {
		return nil, err
	}

	model, err := vosk.NewModel(dir)
	if err != nil {
		return nil, fmt.Errorf("load vosk model %s: %w", dir, err)
	}

	var rec *vosk.VoskRecognizer
	if p.keyword {
		rec, err = vosk.NewRecognizerGrm(model, float64(audio.SampleRate), recognizer.Grammar(spec.Keywords))
	} else {
		rec, err = vosk.NewRecognizer(model, float64(audio.SampleRate))
	}
	if err != nil {
		model.Free()
		return nil, fmt.Errorf("create vosk recognizer: %w", err)
	}
	rec.SetWords(1)

	if p.logger != nil {
		p.logger.Debug("vosk model loaded", "kind", p.kind(), "model", id, "dir", dir, "keywords", len(spec.Keywords))
	}
	return &session{
		kind:     p.kind(),
		model:    model,
		rec:      rec,
		keywords: append([]recognizer.Keyword(nil), spec.Keywords...),
	}, nil
}

type session struct {
	kind     string
	keywords []recognizer.Keyword

	mu    sync.Mutex
	model *vosk.VoskModel
	rec   *vosk.VoskRecognizer
}

func (s *session) Kind() string { return s.kind }

func (s *session) Recognize(ctx context.Context, sample audio.Sample) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if sample.Rate != 0 && sample.Rate != audio.SampleRate {
		return "", recognizer.Unavailable(fmt.Errorf("sample rate %d, want %d", sample.Rate, audio.SampleRate))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return "", recognizer.Unavailable(fmt.Errorf("session closed"))
	}

	if s.rec.AcceptWaveform(sample.PCM16LE()) < 0 {
		s.rec.Reset()
		return "", recognizer.Unavailable(fmt.Errorf("vosk rejected audio"))
	}
	raw := s.rec.FinalResult()
	s.rec.Reset()

	res, err := recognizer.DecodeResult([]byte(raw))
	if err != nil {
		return "", recognizer.Unavailable(err)
	}
	if s.kind == KindKeyword {
		return recognizer.Finish(recognizer.SpotKeywords(res.Words, s.keywords))
	}
	return recognizer.Finish(res.Text)
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec != nil {
		s.rec.Free()
		s.rec = nil
	}
	if s.model != nil {
		s.model.Free()
		s.model = nil
	}
	return nil
}
