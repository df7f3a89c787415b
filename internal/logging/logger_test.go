package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveLogPathUsesXDGStateHome(t *testing.T) {
	xdgStateHome := t.TempDir()
	t.Setenv("XDG_STATE_HOME", xdgStateHome)
	t.Setenv("HOME", t.TempDir())

	path, err := resolveLogPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(xdgStateHome, "voicecmd", "log.jsonl"), path)
}

func TestStateDirFallsBackToHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("HOME", home)

	dir, err := StateDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".local", "state", "voicecmd"), dir)
}

func TestNewCreatesWritableJSONLogFile(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	runtime, err := New(Options{})
	require.NoError(t, err)

	runtime.Logger.Info("unit-test-log", "component", "logging")
	runtime.Logger.Debug("hidden")
	require.NoError(t, runtime.Close())

	contents, err := os.ReadFile(runtime.Path)
	require.NoError(t, err)
	require.Contains(t, string(contents), `"msg":"unit-test-log"`)
	require.Contains(t, string(contents), `"component":"logging"`)
	require.NotContains(t, string(contents), "hidden")

	stat, err := os.Stat(runtime.Path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), stat.Mode().Perm())
}

func TestNewEchoesAtDebugLevel(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	var echo bytes.Buffer
	runtime, err := New(Options{Level: slog.LevelDebug, Echo: &echo})
	require.NoError(t, err)
	runtime.Logger.Debug("capture started", "device", "default")
	require.NoError(t, runtime.Close())

	require.Contains(t, echo.String(), `"msg":"capture started"`)
	contents, err := os.ReadFile(runtime.Path)
	require.NoError(t, err)
	require.Equal(t, echo.String(), string(contents))
}
