package app

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rbright/voicecmd/internal/audio"
	"github.com/rbright/voicecmd/internal/audio/audiotest"
	"github.com/rbright/voicecmd/internal/dispatch"
	"github.com/rbright/voicecmd/internal/ipc"
	"github.com/rbright/voicecmd/internal/models"
	"github.com/rbright/voicecmd/internal/recognizer"
	"github.com/rbright/voicecmd/internal/settings"
	"github.com/stretchr/testify/require"
)

var builtIn = audio.Device{ID: "alsa_input.pci-builtin", Description: "Built-in Audio", State: "idle", Available: true, Default: true}

func TestExecuteHelp(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"--help"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "Usage:")
	require.Empty(t, stderr.String())
}

func TestExecuteVersion(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"version"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "voicecmd")
	require.Empty(t, stderr.String())
}

func TestExecuteUnknownCommand(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"definitely-not-a-command"}, &stdout, &stderr)
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "unknown command")
	require.Contains(t, stderr.String(), "Usage:")
}

func TestRunnerStatusStoppedWhenSocketUnavailable(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "stopped\n", stdout.String())
	require.Empty(t, stderr.String())
}

func TestRunnerStopFailsWithoutDaemon(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "stop"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "not running")
}

func TestRunnerForwardsCommandsToDaemon(t *testing.T) {
	paths := setupRunnerEnv(t)
	requests := make(chan ipc.Request, 8)

	shutdown := startIPCServerForRunnerTest(t, paths.socketPath(), func(_ context.Context, req ipc.Request) ipc.Response {
		requests <- req
		switch req.Command {
		case ipc.CommandStatus:
			return ipc.Response{OK: true, State: "listening", Status: &ipc.Status{
				State:      "listening",
				Profile:    "Default",
				Microphone: "USB Mic",
				Recognizer: "whisper",
				Options:    map[string]string{"model": "base", "language": "english"},
				Commands:   3,
			}}
		case ipc.CommandMicrophone, ipc.CommandRecognizer, ipc.CommandProfile, ipc.CommandStop:
			return ipc.Response{OK: true, Message: req.Command + " handled"}
		default:
			return ipc.Response{OK: false, Error: "unsupported"}
		}
	})
	defer shutdown()

	stdout, stderr, code := runCLI(t, paths, "status")
	require.Equal(t, 0, code, stderr)
	require.Equal(t, strings.Join([]string{
		"state: listening",
		"profile: Default (3 commands)",
		"microphone: USB Mic",
		"recognizer: whisper (language=english, model=base)",
		"",
	}, "\n"), stdout)
	require.Equal(t, ipc.CommandStatus, (<-requests).Command)

	stdout, stderr, code = runCLI(t, paths, "microphone", "USB")
	require.Equal(t, 0, code, stderr)
	require.Equal(t, "microphone handled\n", stdout)
	require.Equal(t, ipc.Request{Command: ipc.CommandMicrophone, Name: "USB"}, <-requests)

	_, stderr, code = runCLI(t, paths, "recognizer", "whisper", "model=base")
	require.Equal(t, 0, code, stderr)
	require.Equal(t, ipc.Request{
		Command: ipc.CommandRecognizer,
		Kind:    "whisper",
		Options: map[string]string{"model": "base"},
	}, <-requests)

	_, stderr, code = runCLI(t, paths, "profile", "off")
	require.Equal(t, 0, code, stderr)
	require.Equal(t, ipc.Request{Command: ipc.CommandProfile}, <-requests)

	stdout, stderr, code = runCLI(t, paths, "stop")
	require.Equal(t, 0, code, stderr)
	require.Equal(t, "stop handled\n", stdout)
	require.Equal(t, ipc.CommandStop, (<-requests).Command)
}

func TestRunnerReportsDaemonErrors(t *testing.T) {
	paths := setupRunnerEnv(t)
	shutdown := startIPCServerForRunnerTest(t, paths.socketPath(), func(_ context.Context, req ipc.Request) ipc.Response {
		return ipc.Response{OK: false, Error: "Microphone does not exist: Nope"}
	})
	defer shutdown()

	_, stderr, code := runCLI(t, paths, "microphone", "Nope")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "Microphone does not exist: Nope")
}

func TestRunnerRecognizerRejectsMalformedOption(t *testing.T) {
	paths := setupRunnerEnv(t)

	_, stderr, code := runCLI(t, paths, "recognizer", "whisper", "model")
	require.Equal(t, 2, code)
	require.Contains(t, stderr, "NAME=VALUE")
}

func TestRunnerSwitchesPersistWithoutDaemon(t *testing.T) {
	paths := setupRunnerEnv(t)

	stdout, stderr, code := runCLI(t, paths, "profile", "create", "Work")
	require.Equal(t, 0, code, stderr)
	require.Equal(t, "created profile Work\n", stdout)

	stdout, stderr, code = runCLI(t, paths, "profile", "use", "Work")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "saved for the next start")

	_, stderr, code = runCLI(t, paths, "microphone", "USB")
	require.Equal(t, 0, code, stderr)

	_, stderr, code = runCLI(t, paths, "recognizer", "whisper", "model=base")
	require.Equal(t, 0, code, stderr)

	store, _, err := settings.Open(paths.settingsPath())
	require.NoError(t, err)
	cfg := store.Get()
	require.Equal(t, "Work", cfg.Profile)
	require.Equal(t, "USB", cfg.Microphone)
	require.Equal(t, settings.RecognizerWhisper, cfg.Recognizer)
	require.Equal(t, "base", cfg.RecognizerOptions(settings.RecognizerWhisper)["model"])

	stdout, _, code = runCLI(t, paths, "profiles")
	require.Equal(t, 0, code)
	require.Equal(t, "* Work\n", stdout)
}

func TestRunnerProfileUseUnknownProfileFails(t *testing.T) {
	paths := setupRunnerEnv(t)

	_, stderr, code := runCLI(t, paths, "profile", "use", "Missing")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "not found")
}

func TestRunnerProfileEditing(t *testing.T) {
	paths := setupRunnerEnv(t)

	_, stderr, code := runCLI(t, paths, "profile", "create", "Editor")
	require.Equal(t, 0, code, stderr)

	stdout, stderr, code := runCLI(t, paths, "profile", "show", "Editor")
	require.Equal(t, 0, code, stderr)
	require.Equal(t, "profile Editor has no commands\n", stdout)

	_, stderr, code = runCLI(t, paths, "profile", "add", "Editor", "save file", "ctrl+s", "4")
	require.Equal(t, 0, code, stderr)
	_, stderr, code = runCLI(t, paths, "profile", "add", "Editor", "close tab", "ctrl+w")
	require.Equal(t, 0, code, stderr)
	_, stderr, code = runCLI(t, paths, "profile", "set", "Editor", "1", "close window", "alt+f4", "2")
	require.Equal(t, 0, code, stderr)

	stdout, stderr, code = runCLI(t, paths, "profile", "show", "Editor")
	require.Equal(t, 0, code, stderr)
	require.Equal(t, "0. \"save file\" -> \"ctrl+s\" (sensitivity 4)\n1. \"close window\" -> \"alt+f4\" (sensitivity 2)\n", stdout)

	_, stderr, code = runCLI(t, paths, "profile", "remove", "Editor", "0")
	require.Equal(t, 0, code, stderr)
	stdout, _, _ = runCLI(t, paths, "profile", "show", "Editor")
	require.Equal(t, "0. \"close window\" -> \"alt+f4\" (sensitivity 2)\n", stdout)

	_, stderr, code = runCLI(t, paths, "profile", "add", "Editor", "only phrase")
	require.Equal(t, 2, code)
	require.Contains(t, stderr, "profile add requires")

	_, stderr, code = runCLI(t, paths, "profile", "remove", "Editor", "zero")
	require.Equal(t, 2, code)
	require.Contains(t, stderr, "index must be an integer")

	_, stderr, code = runCLI(t, paths, "profile", "delete", "Editor")
	require.Equal(t, 0, code, stderr)
	_, stderr, code = runCLI(t, paths, "profile", "show", "Editor")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "not found")
}

func TestRunnerProfileDeleteDeactivatesRunningProfile(t *testing.T) {
	paths := setupRunnerEnv(t)
	_, stderr, code := runCLI(t, paths, "profile", "create", "Work")
	require.Equal(t, 0, code, stderr)

	requests := make(chan ipc.Request, 4)
	shutdown := startIPCServerForRunnerTest(t, paths.socketPath(), func(_ context.Context, req ipc.Request) ipc.Response {
		requests <- req
		if req.Command == ipc.CommandStatus {
			return ipc.Response{OK: true, Status: &ipc.Status{State: "listening", Profile: "Work"}}
		}
		return ipc.Response{OK: true}
	})
	defer shutdown()

	stdout, stderr, code := runCLI(t, paths, "profile", "delete", "Work")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "matching paused")
	require.Equal(t, ipc.CommandStatus, (<-requests).Command)
	require.Equal(t, ipc.Request{Command: ipc.CommandProfile}, <-requests)
}

func TestRunnerSettings(t *testing.T) {
	paths := setupRunnerEnv(t)

	stdout, stderr, code := runCLI(t, paths, "settings", "get", "phrase_time")
	require.Equal(t, 0, code, stderr)
	require.Equal(t, "2\n", stdout)

	stdout, stderr, code = runCLI(t, paths, "settings", "set", "phrase_time", "5")
	require.Equal(t, 0, code, stderr)
	require.Equal(t, "phrase_time = 5\n", stdout)

	stdout, _, code = runCLI(t, paths, "settings")
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "phrase_time = 5\n")
	require.Contains(t, stdout, "recognizer = vosk\n")

	_, stderr, code = runCLI(t, paths, "settings", "set", "phrase_time", "soon")
	require.Equal(t, 1, code)
	require.NotEmpty(t, stderr)

	_, stderr, code = runCLI(t, paths, "settings", "get", "volume")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "invalid config key")
}

func TestRunnerSettingsSetReloadsRunningDaemon(t *testing.T) {
	paths := setupRunnerEnv(t)
	requests := make(chan ipc.Request, 4)
	shutdown := startIPCServerForRunnerTest(t, paths.socketPath(), func(_ context.Context, req ipc.Request) ipc.Response {
		requests <- req
		return ipc.Response{OK: true, Message: "settings reload requested"}
	})
	defer shutdown()

	stdout, stderr, code := runCLI(t, paths, "settings", "set", "phrase_time", "6")
	require.Equal(t, 0, code, stderr)
	require.Equal(t, "phrase_time = 6\nsettings reload requested\n", stdout)
	require.Equal(t, ipc.Request{Command: ipc.CommandReload}, <-requests)

	store, _, err := settings.Open(paths.settingsPath())
	require.NoError(t, err)
	require.Equal(t, 6, store.Get().PhraseTime)
}

func TestRunnerDevicesUsesPlatformBackend(t *testing.T) {
	paths := setupRunnerEnv(t)
	usb := audio.Device{ID: "alsa_input.usb-mic", Description: "USB Mic", State: "suspended", Available: true, Muted: true}

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr, Platform: Platform{
		NewBackend: func(name string) (audio.Backend, error) {
			require.Equal(t, "pulse", name)
			return audiotest.NewBackend(builtIn, usb), nil
		},
	}}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "devices"})
	require.Equal(t, 0, exitCode, stderr.String())
	require.Equal(t,
		"* id=alsa_input.pci-builtin | description=\"Built-in Audio\" | state=idle | available=yes | muted=no\n"+
			"  id=alsa_input.usb-mic | description=\"USB Mic\" | state=suspended | available=yes | muted=yes\n",
		stdout.String())
}

func TestRunnerDevicesWithoutDevices(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &bytes.Buffer{}, Platform: Platform{
		NewBackend: func(string) (audio.Backend, error) { return audiotest.NewBackend(), nil },
	}}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "devices"})
	require.Equal(t, 1, exitCode)
	require.Equal(t, "no audio devices found\n", stdout.String())
}

func TestRunnerModelsList(t *testing.T) {
	paths := setupRunnerEnv(t)

	stdout, stderr, code := runCLI(t, paths, "models")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "small-en")
	require.Contains(t, stdout, "vosk-model-small-en-us-0.15")
	require.Contains(t, stdout, "ggml-tiny")

	_, stderr, code = runCLI(t, paths, "models", "fetch", "tape", "x")
	require.Equal(t, 2, code)
	require.Contains(t, stderr, "unknown model engine")
}

func TestRunnerEventsAndHistoryArgs(t *testing.T) {
	paths := setupRunnerEnv(t)

	_, stderr, code := runCLI(t, paths, "events", "0")
	require.Equal(t, 2, code)
	require.Contains(t, stderr, "positive integer")

	stdout, stderr, code := runCLI(t, paths, "history")
	require.Equal(t, 0, code, stderr)
	require.Empty(t, stdout)
}

func TestRunnerEventsForwardsLimit(t *testing.T) {
	paths := setupRunnerEnv(t)
	limits := make(chan int, 1)
	shutdown := startIPCServerForRunnerTest(t, paths.socketPath(), func(_ context.Context, req ipc.Request) ipc.Response {
		limits <- req.Limit
		return ipc.Response{OK: true}
	})
	defer shutdown()

	_, stderr, code := runCLI(t, paths, "events", "5")
	require.Equal(t, 0, code, stderr)
	require.Equal(t, 5, <-limits)
}

func TestRunnerRunFailsWhenDaemonAlreadyRunning(t *testing.T) {
	paths := setupRunnerEnv(t)
	shutdown := startIPCServerForRunnerTest(t, paths.socketPath(), func(context.Context, ipc.Request) ipc.Response {
		return ipc.Response{OK: true, State: "listening", Status: &ipc.Status{State: "listening", Profile: "Work", Recognizer: "vosk"}}
	})
	defer shutdown()

	_, stderr, code := runCLI(t, paths, "run")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "already running")
	require.Contains(t, stderr, "state listening, profile Work, recognizer vosk")
}

func TestRunnerRunRequiresRecognizers(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr, Platform: Platform{
		NewBackend: func(string) (audio.Backend, error) { return audiotest.NewBackend(builtIn), nil },
	}}
	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "run"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "no recognizer backends")

	_, statErr := os.Stat(paths.socketPath())
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

type recordingKeyboard struct {
	mu      sync.Mutex
	pressed []dispatch.Key
}

func (k *recordingKeyboard) Press(key dispatch.Key) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pressed = append(k.pressed, key)
	return nil
}

func (k *recordingKeyboard) Release(dispatch.Key) error { return nil }

func (k *recordingKeyboard) count() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.pressed)
}

type scriptedSession struct {
	kind string
	mu   sync.Mutex
	said []string
}

func (s *scriptedSession) Kind() string { return s.kind }

func (s *scriptedSession) Recognize(context.Context, audio.Sample) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.said) == 0 {
		return "", recognizer.NoMatch()
	}
	text := s.said[0]
	s.said = s.said[1:]
	return text, nil
}

func (s *scriptedSession) Close() error { return nil }

func TestRunnerRunDispatchesSpokenCommandUntilStopped(t *testing.T) {
	paths := setupRunnerEnv(t)
	_, stderr, code := runCLI(t, paths, "profile", "create", "Default")
	require.Equal(t, 0, code, stderr)
	_, stderr, code = runCLI(t, paths, "profile", "add", "Default", "say okay", "ok")
	require.Equal(t, 0, code, stderr)

	backend := audiotest.NewBackend(builtIn)
	backend.SetScript(builtIn.ID, audiotest.Sequence(
		audiotest.Part{Frames: 150, Amp: 0},
		audiotest.Part{Frames: 30, Amp: 4000},
		audiotest.Part{Frames: 1, Amp: 0},
	))
	keyboard := &recordingKeyboard{}
	platform := Platform{
		NewBackend:  func(string) (audio.Backend, error) { return backend, nil },
		NewKeyboard: func(time.Duration) (dispatch.Keyboard, error) { return keyboard, nil },
		RegisterRecognizers: func(f *recognizer.Factory, _ *models.Manager, _ *slog.Logger) {
			for _, kind := range settings.RecognizerKinds() {
				f.Register(kind, recognizer.ProviderFunc(func(_ context.Context, spec recognizer.Spec) (recognizer.Session, error) {
					return &scriptedSession{kind: spec.Kind, said: []string{"say okay"}}, nil
				}))
			}
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	var runStderr bytes.Buffer
	runDone := make(chan int, 1)
	go func() {
		runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &runStderr, Platform: platform}
		runDone <- runner.Execute(ctx, []string{"--config", paths.configPath, "run"})
	}()

	require.Eventually(t, func() bool { return keyboard.count() == 2 }, 10*time.Second, 10*time.Millisecond)

	stdout, stderr, code := runCLI(t, paths, "status")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "profile: Default (1 commands)")
	require.Contains(t, stdout, "recognizer: vosk")

	_, stderr, code = runCLI(t, paths, "stop")
	require.Equal(t, 0, code, stderr)

	select {
	case exitCode := <-runDone:
		require.Equal(t, 0, exitCode, runStderr.String())
	case <-ctx.Done():
		t.Fatal("run did not stop")
	}
	_, statErr := os.Stat(paths.socketPath())
	require.ErrorIs(t, statErr, os.ErrNotExist)

	stdout, stderr, code = runCLI(t, paths, "history")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "[Default/vosk] \"say okay\" -> say okay (ok)")
}

type runnerPaths struct {
	configPath string
	configDir  string
	runtimeDir string
}

func (p runnerPaths) socketPath() string { return filepath.Join(p.runtimeDir, ipc.SocketName) }

func (p runnerPaths) settingsPath() string { return filepath.Join(p.configDir, "settings.json") }

func setupRunnerEnv(t *testing.T) runnerPaths {
	t.Helper()

	configHome := t.TempDir()
	runtimeDir := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", configHome)
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)

	configDir := filepath.Join(configHome, "voicecmd")
	require.NoError(t, os.MkdirAll(configDir, 0o700))
	configPath := filepath.Join(configDir, "config.jsonc")
	content := `{
  // tests never reach a desktop session or a network
  "health": { "addr": "" },
  "notify": { "enable": false },
  "dispatch": { "delay_ms": 1 },
}
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))

	return runnerPaths{configPath: configPath, configDir: configDir, runtimeDir: runtimeDir}
}

func runCLI(t *testing.T, paths runnerPaths, args ...string) (string, string, int) {
	t.Helper()
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}
	code := runner.Execute(context.Background(), append([]string{"--config", paths.configPath}, args...))
	return stdout.String(), stderr.String(), code
}

func startIPCServerForRunnerTest(t *testing.T, socketPath string, handler func(context.Context, ipc.Request) ipc.Response) func() {
	t.Helper()

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ipc.Serve(ctx, listener, ipc.HandlerFunc(handler))
	}()

	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}
