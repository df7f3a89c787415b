// Package main provides the voicecmd CLI process entrypoint.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rbright/voicecmd/internal/app"
	"github.com/rbright/voicecmd/internal/audio"
	"github.com/rbright/voicecmd/internal/audio/portaudio"
	"github.com/rbright/voicecmd/internal/config"
	"github.com/rbright/voicecmd/internal/models"
	"github.com/rbright/voicecmd/internal/recognizer"
	"github.com/rbright/voicecmd/internal/recognizer/vosk"
	"github.com/rbright/voicecmd/internal/recognizer/whisper"
	"github.com/rbright/voicecmd/internal/version"
)

// main wires process signal handling to the application runner.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := app.Runner{
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Platform: platform(),
	}
	exitCode := runner.Execute(ctx, os.Args[1:])
	stop()
	os.Exit(exitCode)
}

// platform binds the native audio and recognition libraries.
func platform() app.Platform {
	return app.Platform{
		NewBackend: func(name string) (audio.Backend, error) {
			switch name {
			case config.BackendPulse:
				return audio.NewPulseBackend(version.Name), nil
			case config.BackendPortAudio:
				return portaudio.New(), nil
			default:
				return nil, fmt.Errorf("unknown audio backend %q", name)
			}
		},
		RegisterRecognizers: func(f *recognizer.Factory, assets *models.Manager, logger *slog.Logger) {
			f.Register(vosk.KindModel, vosk.NewProvider(assets, logger))
			f.Register(vosk.KindKeyword, vosk.NewKeywordProvider(assets, logger))
			f.Register(whisper.Kind, whisper.NewProvider(assets, logger))
		},
	}
}
