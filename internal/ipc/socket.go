package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

var (
	ErrAlreadyRunning = errors.New("voicecmd daemon already running")
	ErrNotRunning     = errors.New("voicecmd daemon is not running")
)

// SocketName is the control socket file inside XDG_RUNTIME_DIR.
const SocketName = "voicecmd.sock"

// RuntimeSocketPath returns the control socket path.
func RuntimeSocketPath() (string, error) {
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(runtimeDir, SocketName), nil
}

// AlreadyRunningError reports the daemon that owns the socket. It matches
// ErrAlreadyRunning.
type AlreadyRunningError struct {
	Path   string
	Status Status
}

func (e *AlreadyRunningError) Error() string {
	msg := fmt.Sprintf("%v on %s (state %s", ErrAlreadyRunning, e.Path, e.Status.State)
	if e.Status.Profile != "" {
		msg += ", profile " + e.Status.Profile
	}
	if e.Status.Recognizer != "" {
		msg += ", recognizer " + e.Status.Recognizer
	}
	return msg + ")"
}

func (e *AlreadyRunningError) Is(target error) bool {
	return target == ErrAlreadyRunning
}

// Acquire listens on path for a new daemon. When another daemon answers a
// status request on path, the result is an *AlreadyRunningError. A socket
// file nobody answers on is left over from a crash; it is removed and the
// listen retried up to attempts times.
func Acquire(ctx context.Context, path string, statusTimeout time.Duration, attempts int) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create runtime dir: %w", err)
	}
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		listener, err := net.Listen("unix", path)
		if err == nil {
			if err := os.Chmod(path, 0o600); err != nil {
				_ = listener.Close()
				return nil, fmt.Errorf("restrict socket %s: %w", path, err)
			}
			return listener, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("listen on %s: %w", path, err)
		}
		lastErr = err

		st, alive, err := Probe(ctx, path, statusTimeout)
		switch {
		case alive:
			return nil, &AlreadyRunningError{Path: path, Status: st}
		case err != nil:
			// A daemon that is slow to answer still owns the socket.
			return nil, fmt.Errorf("socket %s is in use by an unresponsive process: %w", path, err)
		}

		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * 20 * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("claim socket %s after %d attempts: %w", path, attempts, lastErr)
}
