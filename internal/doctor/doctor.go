// Package doctor runs readiness diagnostics for config, stores, keystroke
// injection, audio, models, and the health endpoint.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rbright/voicecmd/internal/audio"
	"github.com/rbright/voicecmd/internal/config"
	"github.com/rbright/voicecmd/internal/health"
	"github.com/rbright/voicecmd/internal/ipc"
	"github.com/rbright/voicecmd/internal/models"
	"github.com/rbright/voicecmd/internal/profile"
	"github.com/rbright/voicecmd/internal/settings"
)

// uinputPath is the device keystroke injection writes to.
var uinputPath = "/dev/uinput"

const probeTimeout = time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes every check. backend may be nil when it could not be built.
func Run(ctx context.Context, cfg config.Loaded, backend audio.Backend) Report {
	checks := []Check{configCheck(cfg)}

	store, _, err := settings.Open(cfg.Config.Paths.Settings)
	if err != nil {
		checks = append(checks, Check{Name: "settings", Pass: false, Message: err.Error()})
		checks = append(checks, checkUinput(uinputPath))
		checks = append(checks, checkHealth(ctx, cfg.Config.Health.Addr))
		return Report{Checks: checks}
	}
	engineCfg := store.Get()
	checks = append(checks, Check{
		Name:    "settings",
		Pass:    true,
		Message: fmt.Sprintf("loaded %q (recognizer=%s, phrase_time=%ds)", store.Path(), engineCfg.Recognizer, engineCfg.PhraseTime),
	})

	checks = append(checks, checkProfile(cfg.Config.Paths.Profiles, engineCfg.Profile))
	checks = append(checks, checkUinput(uinputPath))
	checks = append(checks, checkAudioSelection(ctx, backend, engineCfg.Microphone))
	checks = append(checks, checkModel(cfg.Config.Paths.Models, engineCfg))
	checks = append(checks, checkHealth(ctx, cfg.Config.Health.Addr))

	return Report{Checks: checks}
}

func configCheck(cfg config.Loaded) Check {
	if !cfg.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("%q not found; using defaults", cfg.Path)}
	}
	return Check{Name: "config", Pass: true, Message: fmt.Sprintf("loaded %q", cfg.Path)}
}

// checkProfile verifies the configured profile is loadable.
func checkProfile(dir string, name string) Check {
	p, err := profile.NewStore(dir).Get(name)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			return Check{Name: "profile", Pass: false, Message: fmt.Sprintf("profile %q not found in %s; the engine starts with matching paused", name, dir)}
		}
		return Check{Name: "profile", Pass: false, Message: err.Error()}
	}
	return Check{Name: "profile", Pass: true, Message: fmt.Sprintf("%s has %d command(s)", p.Name, len(p.Commands))}
}

// checkUinput verifies the uinput device is writable.
func checkUinput(path string) Check {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return Check{Name: "uinput", Pass: false, Message: fmt.Sprintf("cannot open %s for writing: %v", path, err)}
	}
	_ = f.Close()
	return Check{Name: "uinput", Pass: true, Message: fmt.Sprintf("%s is writable", path)}
}

// checkAudioSelection runs live device selection to surface selection issues.
func checkAudioSelection(ctx context.Context, backend audio.Backend, name string) Check {
	if backend == nil {
		return Check{Name: "audio.device", Pass: false, Message: "audio backend is unavailable"}
	}
	handle, err := audio.NewManager(backend, nil).Open(ctx, name)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	defer func() { _ = handle.Close() }()
	return Check{
		Name:    "audio.device",
		Pass:    true,
		Message: fmt.Sprintf("%s: %q selected %s", backend.Name(), name, handle.Device().Label()),
	}
}

// checkModel reports whether the configured recognizer model is cached.
// A missing model is fetched on first start, so it does not fail the check.
func checkModel(root string, cfg settings.EngineConfig) Check {
	var (
		info models.Info
		err  error
	)
	opts := cfg.RecognizerOptions(cfg.Recognizer)
	switch cfg.Recognizer {
	case settings.RecognizerWhisper:
		info, err = models.Whisper(opts["model"], opts["language"])
	default:
		info, err = models.Vosk(opts["model"])
	}
	if err != nil {
		return Check{Name: "model", Pass: false, Message: err.Error()}
	}

	manager := models.NewManager(root, nil, nil)
	switch {
	case info.Engine == models.EngineVosk && manager.ActiveVosk() == info.ID:
		return Check{Name: "model", Pass: true, Message: fmt.Sprintf("%s %s is active", info.Engine, info.ID)}
	case manager.Cached(info):
		return Check{Name: "model", Pass: true, Message: fmt.Sprintf("%s %s is cached at %s", info.Engine, info.ID, manager.Path(info))}
	default:
		return Check{Name: "model", Pass: true, Message: fmt.Sprintf("%s %s is not downloaded yet; fetched from %s on first start", info.Engine, info.ID, info.URL)}
	}
}

// checkHealth probes the health endpoint. An unreachable endpoint only fails
// while a daemon owns the control socket.
func checkHealth(ctx context.Context, addr string) Check {
	if addr == "" {
		return Check{Name: "health", Pass: true, Message: "disabled (health.addr is empty)"}
	}
	status, err := health.Probe(ctx, addr, probeTimeout)
	if err == nil {
		return Check{Name: "health", Pass: true, Message: fmt.Sprintf("%s at %s", status, addr)}
	}
	if !daemonRunning(ctx) {
		return Check{Name: "health", Pass: true, Message: fmt.Sprintf("engine not running (no endpoint at %s)", addr)}
	}
	return Check{Name: "health", Pass: false, Message: fmt.Sprintf("engine running but health probe failed: %v", err)}
}

func daemonRunning(ctx context.Context) bool {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		return false
	}
	_, alive, _ := ipc.Probe(ctx, socketPath, probeTimeout)
	return alive
}
