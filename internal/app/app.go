// Package app wires the CLI to the engine, the stores, and the control socket.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rbright/voicecmd/internal/audio"
	"github.com/rbright/voicecmd/internal/cli"
	"github.com/rbright/voicecmd/internal/config"
	"github.com/rbright/voicecmd/internal/dispatch"
	"github.com/rbright/voicecmd/internal/doctor"
	"github.com/rbright/voicecmd/internal/logging"
	"github.com/rbright/voicecmd/internal/models"
	"github.com/rbright/voicecmd/internal/recognizer"
	"github.com/rbright/voicecmd/internal/version"
)

// Platform supplies the hardware-bound pieces. Zero fields fall back to the
// Pulse backend, the uinput keyboard, and no recognizers.
type Platform struct {
	NewBackend          func(name string) (audio.Backend, error)
	NewKeyboard         func(settle time.Duration) (dispatch.Keyboard, error)
	RegisterRecognizers func(f *recognizer.Factory, models *models.Manager, logger *slog.Logger)
}

func (p Platform) backend(name string) (audio.Backend, error) {
	if p.NewBackend != nil {
		return p.NewBackend(name)
	}
	if name != config.BackendPulse {
		return nil, fmt.Errorf("audio backend %q is not available in this build", name)
	}
	return audio.NewPulseBackend(version.Name), nil
}

func (p Platform) keyboard(settle time.Duration) (dispatch.Keyboard, error) {
	if p.NewKeyboard != nil {
		return p.NewKeyboard(settle)
	}
	return dispatch.NewKeyboard(settle)
}

type Runner struct {
	Stdout   io.Writer
	Stderr   io.Writer
	Logger   *slog.Logger
	Platform Platform
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(version.Name))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(version.Name))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New(logging.Options{})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		// A missing file is the normal first-run state for client commands.
		if !cfgLoaded.Exists && parsed.Command != cli.CommandRun && parsed.Command != cli.CommandDoctor {
			logger.Debug("config warning", "message", w.Message)
			continue
		}
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"args", parsed.Args,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	cfg := cfgLoaded.Config
	switch parsed.Command {
	case cli.CommandRun:
		return r.commandRun(ctx, cfg, logger)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandStop:
		return r.commandStop(ctx)
	case cli.CommandEvents:
		return r.commandEvents(ctx, parsed.Args)
	case cli.CommandMicrophone:
		return r.commandMicrophone(ctx, cfg, parsed.Args)
	case cli.CommandRecognizer:
		return r.commandRecognizer(ctx, cfg, parsed.Args)
	case cli.CommandProfile:
		return r.commandProfile(ctx, cfg, parsed.Args)
	case cli.CommandProfiles:
		return r.commandProfiles(ctx, cfg)
	case cli.CommandSettings:
		return r.commandSettings(ctx, cfg, parsed.Args)
	case cli.CommandDevices:
		return r.commandDevices(ctx, cfg)
	case cli.CommandModels:
		return r.commandModels(ctx, cfg, logger, parsed.Args)
	case cli.CommandHistory:
		return r.commandHistory(ctx, cfg, parsed.Args)
	case cli.CommandDoctor:
		backend, err := r.Platform.backend(cfg.Audio.Backend)
		if err != nil {
			logger.Warn("doctor audio backend", "error", err.Error())
		}
		report := doctor.Run(ctx, cfgLoaded, backend)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

// fail prints err and returns the runtime failure exit code.
func (r Runner) fail(err error) int {
	fmt.Fprintf(r.Stderr, "error: %v\n", err)
	return 1
}

// usage prints a usage error and returns the usage exit code.
func (r Runner) usage(format string, args ...any) int {
	fmt.Fprintf(r.Stderr, "error: "+format+"\n", args...)
	return 2
}
