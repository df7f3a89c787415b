package doctor

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/rbright/voicecmd/internal/audio"
	"github.com/rbright/voicecmd/internal/audio/audiotest"
	"github.com/rbright/voicecmd/internal/config"
	"github.com/rbright/voicecmd/internal/fsm"
	"github.com/rbright/voicecmd/internal/health"
	"github.com/rbright/voicecmd/internal/models"
	"github.com/rbright/voicecmd/internal/profile"
	"github.com/rbright/voicecmd/internal/settings"
	"github.com/stretchr/testify/require"
)

var builtIn = audio.Device{ID: "alsa_input.pci-builtin", Description: "Built-in Audio", Available: true, Default: true}

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestReportOKAllPassing(t *testing.T) {
	report := Report{Checks: []Check{{Name: "one", Pass: true}, {Name: "two", Pass: true}}}
	require.True(t, report.OK())
}

func testConfig(t *testing.T) config.Loaded {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	cfg := config.Default()
	cfg.Paths = config.PathsConfig{
		Profiles: filepath.Join(dir, "profiles"),
		Models:   filepath.Join(dir, "models"),
		Settings: filepath.Join(dir, "settings.json"),
	}
	cfg.Health.Addr = ""
	return config.Loaded{Path: filepath.Join(dir, "config.jsonc"), Config: cfg}
}

func fakeUinput(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "uinput")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	prev := uinputPath
	uinputPath = path
	t.Cleanup(func() { uinputPath = prev })
}

func findCheck(t *testing.T, report Report, name string) Check {
	t.Helper()
	for _, check := range report.Checks {
		if check.Name == name {
			return check
		}
	}
	t.Fatalf("check %q missing from report:\n%s", name, report.String())
	return Check{}
}

func TestRunAllPassing(t *testing.T) {
	fakeUinput(t)
	loaded := testConfig(t)
	_, err := profile.NewStore(loaded.Config.Paths.Profiles).EnsureDefault()
	require.NoError(t, err)
	backend := audiotest.NewBackend(builtIn)

	report := Run(context.Background(), loaded, backend)
	require.True(t, report.OK(), report.String())

	require.Contains(t, findCheck(t, report, "config").Message, "using defaults")
	require.Contains(t, findCheck(t, report, "settings").Message, "recognizer=vosk")
	require.Equal(t, "Default has 0 command(s)", findCheck(t, report, "profile").Message)
	require.Contains(t, findCheck(t, report, "audio.device").Message, builtIn.Label())
	require.Contains(t, findCheck(t, report, "model").Message, "not downloaded yet")
	require.Contains(t, findCheck(t, report, "health").Message, "disabled")
	require.Zero(t, backend.OpenStreams())
}

func TestRunReportsMissingProfileAndDevice(t *testing.T) {
	fakeUinput(t)
	loaded := testConfig(t)
	store, _, err := settings.Open(loaded.Config.Paths.Settings)
	require.NoError(t, err)
	require.NoError(t, store.Set(settings.KeyMicrophone, "USB"))

	report := Run(context.Background(), loaded, audiotest.NewBackend(builtIn))
	require.False(t, report.OK())
	require.False(t, findCheck(t, report, "profile").Pass)
	require.Contains(t, findCheck(t, report, "profile").Message, "not found")
	require.False(t, findCheck(t, report, "audio.device").Pass)
	require.Contains(t, findCheck(t, report, "audio.device").Message, "did not match")
}

func TestRunWithoutBackend(t *testing.T) {
	fakeUinput(t)
	report := Run(context.Background(), testConfig(t), nil)
	check := findCheck(t, report, "audio.device")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "unavailable")
}

func TestRunSettingsFailureStillChecksHost(t *testing.T) {
	fakeUinput(t)
	loaded := testConfig(t)
	require.NoError(t, os.WriteFile(loaded.Config.Paths.Settings, []byte("{broken"), 0o600))

	report := Run(context.Background(), loaded, audiotest.NewBackend(builtIn))
	require.False(t, findCheck(t, report, "settings").Pass)
	require.True(t, findCheck(t, report, "uinput").Pass)
	findCheck(t, report, "health")
}

func TestCheckUinputMissing(t *testing.T) {
	check := checkUinput(filepath.Join(t.TempDir(), "missing"))
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "cannot open")
}

func TestCheckModel(t *testing.T) {
	root := t.TempDir()
	cfg := settings.EngineConfig{Recognizer: settings.RecognizerWhisper, Options: map[string]string{
		settings.KeyWhisperModel:    "base",
		settings.KeyWhisperLanguage: "english",
	}}

	check := checkModel(root, cfg)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "ggml-base.en.bin")

	info, err := models.Whisper("base", "english")
	require.NoError(t, err)
	path := models.NewManager(root, nil, nil).Path(info)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte("ggml"), 0o600))

	check = checkModel(root, cfg)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "is cached at")

	cfg.Options[settings.KeyWhisperModel] = "gigantic"
	check = checkModel(root, cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "unknown whisper model")
}

func TestCheckHealthServing(t *testing.T) {
	srv, err := health.Listen("127.0.0.1:0", nil)
	require.NoError(t, err)
	go func() { _ = srv.Serve() }()
	t.Cleanup(srv.Stop)
	srv.SetState(fsm.StateListening)

	check := checkHealth(context.Background(), srv.Addr())
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "SERVING")
}

func TestCheckHealthUnreachableWithoutDaemon(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	check := checkHealth(context.Background(), addr)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "engine not running")
}

func TestCheckAudioSelectionOpenFailure(t *testing.T) {
	backend := audiotest.NewBackend(builtIn)
	backend.FailOpen(builtIn.ID, errors.New("device busy"))

	check := checkAudioSelection(context.Background(), backend, "default")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "device busy")
}
