package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePathPrecedence(t *testing.T) {
	explicit := "/tmp/custom.jsonc"
	resolved, err := ResolvePath(explicit)
	require.NoError(t, err)
	require.Equal(t, explicit, resolved)

	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(xdg, "voicecmd", "config.jsonc"), resolved)

	t.Setenv("XDG_CONFIG_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".config", "voicecmd", "config.jsonc"), resolved)
}

func isolateXDG(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(root, "data"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(root, "state"))
	return root
}

func TestLoadMissingConfigUsesDefaultsWithWarning(t *testing.T) {
	root := isolateXDG(t)
	path := filepath.Join(t.TempDir(), "missing.jsonc")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, loaded.Path)
	require.False(t, loaded.Exists)
	require.Equal(t, Default().Audio, loaded.Config.Audio)
	require.NotEmpty(t, loaded.Warnings)
	require.Contains(t, loaded.Warnings[0].Message, "not found")

	require.Equal(t, filepath.Join(root, "config", "voicecmd", "profiles"), loaded.Config.Paths.Profiles)
	require.Equal(t, filepath.Join(root, "config", "voicecmd", "settings.json"), loaded.Config.Paths.Settings)
	require.Equal(t, filepath.Join(root, "data", "voicecmd", "models"), loaded.Config.Paths.Models)
	require.Equal(t, filepath.Join(root, "state", "voicecmd", "history.db"), loaded.Config.History.Path)
}

func TestLoadExistingJSONCParsesAndValidates(t *testing.T) {
	isolateXDG(t)
	path := filepath.Join(t.TempDir(), "config.jsonc")
	contents := `
{
  // Keep profiles next to the dotfiles repo.
  "paths": {
    "profiles": "/srv/voicecmd/profiles",
  },
  "audio": {
    "backend": "PortAudio",
    "pause_ms": 600
  },
  "events": {
    "nats_url": "nats://127.0.0.1:4222"
  },
  "health": {"addr": ""}
}
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Exists)
	require.Equal(t, "/srv/voicecmd/profiles", loaded.Config.Paths.Profiles)
	require.Equal(t, BackendPortAudio, loaded.Config.Audio.Backend)
	require.Equal(t, 600, loaded.Config.Audio.PauseMS)
	require.Equal(t, "nats://127.0.0.1:4222", loaded.Config.Events.NATSURL)
	require.Equal(t, "voicecmd.events", loaded.Config.Events.Subject)
	require.Empty(t, loaded.Config.Health.Addr)
	require.NotEmpty(t, loaded.Config.Paths.Settings)
}

func TestLoadParseErrorIncludesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jsonc")
	require.NoError(t, os.WriteFile(path, []byte("{ not-json }"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse config")
	require.Contains(t, err.Error(), path)
}

func TestAudioDurations(t *testing.T) {
	cfg := Default()
	require.Equal(t, "3s", cfg.Audio.Calibration().String())
	require.Equal(t, "1s", cfg.Audio.ListenTimeout().String())
	require.Equal(t, "800ms", cfg.Audio.Pause().String())
	require.Equal(t, "100ms", cfg.Dispatch.Delay().String())
	require.Equal(t, "2s", cfg.Dispatch.Settle().String())
}
