package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/rbright/voicecmd/internal/atomicfile"
)

// Store keeps the engine settings in memory and mirrors every change to one JSON file.
type Store struct {
	path string

	mu     sync.RWMutex
	values map[string]any
}

// Open loads path, falling back to defaults for a missing file and for
// entries that are unknown or malformed. Those entries produce warnings.
func Open(path string) (*Store, []string, error) {
	values, warnings, err := load(path)
	if err != nil {
		return nil, nil, err
	}
	return &Store{path: path, values: values}, warnings, nil
}

// Reload replaces the in-memory values with the file contents, picking up
// writes made by other processes since Open.
func (s *Store) Reload() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, warnings, err := load(s.path)
	if err != nil {
		return nil, err
	}
	s.values = values
	return warnings, nil
}

func load(path string) (map[string]any, []string, error) {
	values := Defaults()

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return values, nil, nil
		}
		return nil, nil, fmt.Errorf("read settings %q: %w", path, err)
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return values, nil, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, nil, fmt.Errorf("decode settings %q: %w", path, err)
	}

	var warnings []string
	for _, key := range sortedKeys(raw) {
		value, err := decodeValue(key, raw[key])
		if err == nil {
			err = Check(key, value)
		}
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("settings %q ignored: %v", key, err))
			continue
		}
		values[key] = value
	}
	return values, warnings, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Get returns the current configuration snapshot.
func (s *Store) Get() EngineConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot(s.values)
}

// Value returns the raw value of one key.
func (s *Store) Value(key string) (any, error) {
	if _, ok := keySpecs[key]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key], nil
}

// Set validates and persists one key. Nothing changes on failure.
func (s *Store) Set(key string, value any) error {
	return s.SetMany(map[string]any{key: value})
}

// SetMany applies several keys as one whole-file write. The file is re-read
// first so keys written by another process survive. Nothing changes on
// failure.
func (s *Store) SetMany(updates map[string]any) error {
	for _, key := range sortedKeys(updates) {
		if err := Check(key, updates[key]); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next, _, err := load(s.path)
	if err != nil {
		return err
	}
	for key, value := range updates {
		next[key] = value
	}

	if err := s.persist(next); err != nil {
		return err
	}
	s.values = next
	return nil
}

func (s *Store) persist(values map[string]any) error {
	data, err := json.MarshalIndent(values, "", "    ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	data = append(data, '\n')
	if err := atomicfile.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write settings %q: %w", s.path, err)
	}
	return nil
}

func decodeValue(key string, raw json.RawMessage) (any, error) {
	spec, ok := keySpecs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	switch spec.typ {
	case typeInt:
		var n int
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("%w: %s expects int", ErrTypeMismatch, key)
		}
		return n, nil
	default:
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return nil, fmt.Errorf("%w: %s expects string", ErrTypeMismatch, key)
		}
		return str, nil
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
