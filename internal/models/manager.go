package models

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	voskCurrent = "current"
	markerFile  = ".model-id"
)

// Manager keeps a model cache under one root directory:
//
//	<root>/vosk/archives/<name>.zip
//	<root>/vosk/current/            active unpacked vosk model
//	<root>/whisper/ggml-<name>.bin
type Manager struct {
	root     string
	fetcher  *Fetcher
	logger   *slog.Logger
	progress func(message string)

	mu sync.Mutex
}

// NewManager returns a manager rooted at root.
func NewManager(root string, fetcher *Fetcher, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if fetcher == nil {
		fetcher = NewFetcher(nil, logger)
	}
	return &Manager{root: root, fetcher: fetcher, logger: logger}
}

// Root returns the cache directory.
func (m *Manager) Root() string { return m.root }

// OnProgress registers a callback for user-facing progress messages.
func (m *Manager) OnProgress(fn func(message string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress = fn
}

func (m *Manager) report(message string) {
	m.logger.Info(message)
	if m.progress != nil {
		m.progress(message)
	}
}

// Path returns where info is stored once cached.
func (m *Manager) Path(info Info) string {
	if info.Zip {
		return filepath.Join(m.root, string(info.Engine), "archives", info.Filename())
	}
	return filepath.Join(m.root, string(info.Engine), info.Filename())
}

// Cached reports whether info is already downloaded.
func (m *Manager) Cached(info Info) bool {
	st, err := os.Stat(m.Path(info))
	return err == nil && st.Mode().IsRegular() && st.Size() > 0
}

// ActiveVosk returns the id of the unpacked vosk model, or "".
func (m *Manager) ActiveVosk() string {
	data, err := os.ReadFile(filepath.Join(m.voskDir(), voskCurrent, markerFile))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// EnsureVosk makes the vosk model id the active unpacked model and returns its
// directory. An already active model is returned without touching the disk.
func (m *Manager) EnsureVosk(ctx context.Context, id string) (string, error) {
	info, err := Vosk(id)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current := filepath.Join(m.voskDir(), voskCurrent)
	if m.ActiveVosk() == info.ID {
		return current, nil
	}

	archive := m.Path(info)
	if !m.Cached(info) {
		m.report(fmt.Sprintf("Downloading vosk model %s", info.ID))
		if err := m.fetcher.Fetch(ctx, info.URL, archive); err != nil {
			return "", err
		}
	}

	m.report(fmt.Sprintf("Preparing vosk model %s", info.ID))
	if err := m.activateVosk(info, archive, current); err != nil {
		return "", fmt.Errorf("prepare vosk model %s: %w", info.ID, err)
	}
	return current, nil
}

// activateVosk unpacks archive into a staging dir and swaps it in as current.
func (m *Manager) activateVosk(info Info, archive, current string) error {
	if err := os.MkdirAll(m.voskDir(), 0o755); err != nil {
		return err
	}
	staging, err := os.MkdirTemp(m.voskDir(), ".staging-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(staging)

	if err := Unzip(archive, staging); err != nil {
		return err
	}

	// Archives wrap the model in a directory named after it.
	unpacked := filepath.Join(staging, info.Name)
	if st, err := os.Stat(unpacked); err != nil || !st.IsDir() {
		unpacked = staging
	}
	if err := os.WriteFile(filepath.Join(unpacked, markerFile), []byte(info.ID+"\n"), 0o644); err != nil {
		return err
	}

	var old string
	if _, err := os.Stat(current); err == nil {
		old = filepath.Join(m.voskDir(), ".old-"+filepath.Base(staging))
		if err := os.Rename(current, old); err != nil {
			return fmt.Errorf("move previous model aside: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := os.Rename(unpacked, current); err != nil {
		if old != "" {
			_ = os.Rename(old, current)
		}
		return fmt.Errorf("activate model: %w", err)
	}
	if old != "" {
		if err := os.RemoveAll(old); err != nil {
			m.logger.Warn("remove previous vosk model", "dir", old, "error", err)
		}
	}
	return nil
}

// EnsureWhisper downloads the ggml file for model and language when missing
// and returns its path.
func (m *Manager) EnsureWhisper(ctx context.Context, model, language string) (string, error) {
	info, err := Whisper(model, language)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.Path(info)
	if m.Cached(info) {
		return path, nil
	}
	m.report(fmt.Sprintf("Downloading whisper model %s", info.Name))
	if err := m.fetcher.Fetch(ctx, info.URL, path); err != nil {
		return "", err
	}
	return path, nil
}

func (m *Manager) voskDir() string {
	return filepath.Join(m.root, string(EngineVosk))
}
