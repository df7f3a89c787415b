// Package logging configures runtime JSONL logging output and the shared
// state directory.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const appDir = "voicecmd"

// Runtime bundles the configured logger and its open file handle lifecycle.
type Runtime struct {
	Logger *slog.Logger
	Path   string
	closer io.Closer
}

// Close flushes and closes the logger output sink.
func (r Runtime) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Options tunes New.
type Options struct {
	Level slog.Level
	// Echo, when set, receives a copy of every record (foreground runs).
	Echo io.Writer
}

// New builds a JSONL logger at <state dir>/log.jsonl.
func New(opts Options) (Runtime, error) {
	path, err := resolveLogPath()
	if err != nil {
		return Runtime{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return Runtime{}, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return Runtime{}, err
	}

	var w io.Writer = f
	if opts.Echo != nil {
		w = io.MultiWriter(f, opts.Echo)
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: opts.Level})
	return Runtime{Logger: slog.New(h), Path: path, closer: f}, nil
}

// StateDir selects $XDG_STATE_HOME/voicecmd, otherwise ~/.local/state/voicecmd.
func StateDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, appDir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", appDir), nil
}

func resolveLogPath() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "log.jsonl"), nil
}
