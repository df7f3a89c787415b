// Package settings is the persisted, closed-key engine configuration store.
package settings

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Keys of the engine configuration. The set is closed.
const (
	KeyProfile         = "profile"
	KeyMicrophone      = "microphone"
	KeyPhraseTime      = "phrase_time"
	KeyRecognizer      = "recognizer"
	KeyVoskModel       = "vosk:model"
	KeyWhisperLanguage = "whisper:language"
	KeyWhisperModel    = "whisper:model"
	KeyKeywordModel    = "keyword:model"
)

// Recognizer kinds accepted by KeyRecognizer.
const (
	RecognizerVosk    = "vosk"
	RecognizerWhisper = "whisper"
	RecognizerKeyword = "keyword"
)

var (
	ErrInvalidKey   = errors.New("invalid config key")
	ErrTypeMismatch = errors.New("config value type mismatch")
	ErrInvalidValue = errors.New("invalid config value")
)

type valueType int

const (
	typeString valueType = iota + 1
	typeInt
)

func (t valueType) String() string {
	switch t {
	case typeString:
		return "string"
	case typeInt:
		return "int"
	default:
		return "unknown"
	}
}

type keySpec struct {
	typ      valueType
	def      any
	validate func(any) error
}

var keySpecs = map[string]keySpec{
	KeyProfile:         {typ: typeString, def: "Default", validate: nonEmpty},
	KeyMicrophone:      {typ: typeString, def: "default"},
	KeyPhraseTime:      {typ: typeInt, def: 2, validate: positive},
	KeyRecognizer:      {typ: typeString, def: RecognizerVosk, validate: knownRecognizer},
	KeyVoskModel:       {typ: typeString, def: "small-en", validate: nonEmpty},
	KeyWhisperLanguage: {typ: typeString, def: "english"},
	KeyWhisperModel:    {typ: typeString, def: "tiny", validate: nonEmpty},
	KeyKeywordModel:    {typ: typeString, def: "small-en", validate: nonEmpty},
}

// Keys lists every valid key in stable order.
func Keys() []string {
	keys := make([]string, 0, len(keySpecs))
	for key := range keySpecs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// RecognizerKinds lists the accepted values of KeyRecognizer.
func RecognizerKinds() []string {
	return []string{RecognizerKeyword, RecognizerVosk, RecognizerWhisper}
}

// EngineConfig is an immutable snapshot of the engine settings.
type EngineConfig struct {
	Profile    string
	Microphone string
	PhraseTime int
	Recognizer string
	// Options holds per-recognizer values keyed "kind:option".
	Options map[string]string
}

// PhraseTimeLimit converts PhraseTime to a duration.
func (c EngineConfig) PhraseTimeLimit() time.Duration {
	return time.Duration(c.PhraseTime) * time.Second
}

// RecognizerOptions returns the options of kind with the "kind:" prefix removed.
func (c EngineConfig) RecognizerOptions(kind string) map[string]string {
	prefix := kind + ":"
	out := make(map[string]string)
	for key, value := range c.Options {
		if strings.HasPrefix(key, prefix) {
			out[strings.TrimPrefix(key, prefix)] = value
		}
	}
	return out
}

// Defaults returns the default value of every key.
func Defaults() map[string]any {
	out := make(map[string]any, len(keySpecs))
	for key, spec := range keySpecs {
		out[key] = spec.def
	}
	return out
}

// Check reports whether value is acceptable for key.
func Check(key string, value any) error {
	spec, ok := keySpecs[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	switch spec.typ {
	case typeString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("%w: %s expects %s, got %T", ErrTypeMismatch, key, spec.typ, value)
		}
	case typeInt:
		if _, ok := value.(int); !ok {
			return fmt.Errorf("%w: %s expects %s, got %T", ErrTypeMismatch, key, spec.typ, value)
		}
	}
	if spec.validate != nil {
		if err := spec.validate(value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

// ParseValue converts command-line text into the typed value expected by key.
func ParseValue(key string, raw string) (any, error) {
	spec, ok := keySpecs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	switch spec.typ {
	case typeInt:
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %s expects int, got %q", ErrTypeMismatch, key, raw)
		}
		return n, nil
	default:
		return raw, nil
	}
}

func snapshot(values map[string]any) EngineConfig {
	cfg := EngineConfig{
		Profile:    values[KeyProfile].(string),
		Microphone: values[KeyMicrophone].(string),
		PhraseTime: values[KeyPhraseTime].(int),
		Recognizer: values[KeyRecognizer].(string),
		Options:    make(map[string]string),
	}
	for key, value := range values {
		if !strings.Contains(key, ":") {
			continue
		}
		cfg.Options[key] = fmt.Sprint(value)
	}
	return cfg
}

func nonEmpty(value any) error {
	if strings.TrimSpace(value.(string)) == "" {
		return fmt.Errorf("%w: must not be empty", ErrInvalidValue)
	}
	return nil
}

func positive(value any) error {
	if value.(int) < 1 {
		return fmt.Errorf("%w: must be >= 1, got %d", ErrInvalidValue, value.(int))
	}
	return nil
}

func knownRecognizer(value any) error {
	kind := value.(string)
	for _, known := range RecognizerKinds() {
		if kind == known {
			return nil
		}
	}
	return fmt.Errorf("%w: unknown recognizer %q (want one of: %s)", ErrInvalidValue, kind, strings.Join(RecognizerKinds(), ", "))
}
