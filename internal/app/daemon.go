package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rbright/voicecmd/internal/audio"
	"github.com/rbright/voicecmd/internal/config"
	"github.com/rbright/voicecmd/internal/cue"
	"github.com/rbright/voicecmd/internal/dispatch"
	"github.com/rbright/voicecmd/internal/engine"
	"github.com/rbright/voicecmd/internal/events"
	"github.com/rbright/voicecmd/internal/fsm"
	"github.com/rbright/voicecmd/internal/health"
	"github.com/rbright/voicecmd/internal/history"
	"github.com/rbright/voicecmd/internal/ipc"
	"github.com/rbright/voicecmd/internal/logging"
	"github.com/rbright/voicecmd/internal/models"
	"github.com/rbright/voicecmd/internal/profile"
	"github.com/rbright/voicecmd/internal/recognizer"
	"github.com/rbright/voicecmd/internal/settings"
	"github.com/rbright/voicecmd/internal/version"
)

const (
	socketStatusTimeout = 180 * time.Millisecond
	socketAttempts      = 8
)

// commandRun owns the control socket and runs the engine until it stops.
func (r Runner) commandRun(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		return r.fail(err)
	}
	listener, err := ipc.Acquire(ctx, socketPath, socketStatusTimeout, socketAttempts)
	if err != nil {
		return r.fail(err)
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	store, warnings, err := settings.Open(cfg.Paths.Settings)
	if err != nil {
		return r.fail(err)
	}
	for _, w := range warnings {
		fmt.Fprintf(r.Stderr, "warning: %s\n", w)
		logger.Warn("settings warning", "message", w)
	}

	profiles := profile.NewStore(cfg.Paths.Profiles)
	if created, err := profiles.EnsureDefault(); err != nil {
		return r.fail(err)
	} else if created {
		logger.Info("created default profile", "dir", profiles.Dir())
	}

	ring := events.NewRing(cfg.Events.Buffer)
	bus := events.NewBus(events.NewLogSink(logger), ring)
	if cfg.Notify.Enable {
		notifier := events.NewNotifySink(cfg.Notify.AppName, logger)
		defer notifier.Close()
		bus.Add(notifier)
	}
	if cfg.Notify.Sounds {
		appName := cfg.Notify.AppName
		if appName == "" {
			appName = version.Name
		}
		player := cue.PulsePlayer{AppName: appName, Files: map[cue.Kind]string{
			cue.KindExecuted: cfg.Notify.SoundExecutedFile,
			cue.KindError:    cfg.Notify.SoundErrorFile,
		}}
		cues := cue.NewSink(player, logger)
		defer cues.Close()
		bus.Add(cues)
	}
	if cfg.Events.NATSURL != "" {
		sink, err := events.DialNATS(cfg.Events.NATSURL, cfg.Events.Subject, logger)
		if err != nil {
			logger.Warn("nats event sink disabled", "url", cfg.Events.NATSURL, "error", err.Error())
		} else {
			defer func() { _ = sink.Close() }()
			bus.Add(sink)
		}
	}

	backend, err := r.Platform.backend(cfg.Audio.Backend)
	if err != nil {
		return r.fail(err)
	}
	detector := audio.DefaultDetector()
	detector.Ratio = cfg.Audio.EnergyRatio
	detector.Pause = cfg.Audio.Pause()
	micOpts := []audio.ManagerOption{audio.WithDetector(detector)}
	if cfg.Debug.EnableAudioDump {
		stateDir, err := logging.StateDir()
		if err != nil {
			return r.fail(err)
		}
		micOpts = append(micOpts, audio.WithDumper(audio.NewDumper(filepath.Join(stateDir, "debug"), logger)))
	}
	mics := audio.NewManager(backend, logger, micOpts...)

	fetcher := models.NewFetcher(&http.Client{}, logger, models.WithUserAgent(version.UserAgent()))
	assets := models.NewManager(cfg.Paths.Models, fetcher, logger)
	assets.OnProgress(func(message string) { bus.Infof("%s", message) })

	factory := recognizer.NewFactory()
	if r.Platform.RegisterRecognizers != nil {
		r.Platform.RegisterRecognizers(factory, assets, logger)
	}
	if len(factory.Kinds()) == 0 {
		return r.fail(errors.New("no recognizer backends are available in this build"))
	}

	keyboard, err := r.Platform.keyboard(cfg.Dispatch.Settle())
	if err != nil {
		return r.fail(fmt.Errorf("keystroke injection: %w", err))
	}
	dispatcher := dispatch.New(keyboard, dispatch.WithDelay(cfg.Dispatch.Delay()), dispatch.WithLogger(logger))

	deps := engine.Deps{
		Settings:    store,
		Profiles:    profiles,
		Microphones: mics,
		Recognizers: factory,
		Dispatcher:  dispatcher,
		Events:      bus,
		Ring:        ring,
		Logger:      logger,
	}
	if cfg.History.Enable {
		hist, err := history.Open(cfg.History.Path)
		if err != nil {
			logger.Warn("command history disabled", "path", cfg.History.Path, "error", err.Error())
		} else {
			defer func() { _ = hist.Close() }()
			deps.History = hist
		}
	}

	eng, err := engine.New(deps, engine.Options{
		Calibration:   cfg.Audio.Calibration(),
		ListenTimeout: cfg.Audio.ListenTimeout(),
	})
	if err != nil {
		return r.fail(err)
	}
	eng.OnStateChange(func(state fsm.State) {
		logger.Debug("engine state", "state", string(state))
	})

	if cfg.Health.Addr != "" {
		hs, err := health.Listen(cfg.Health.Addr, logger)
		if err != nil {
			logger.Warn("health service disabled", "addr", cfg.Health.Addr, "error", err.Error())
		} else {
			eng.OnStateChange(hs.SetState)
			go func() {
				if err := hs.Serve(); err != nil {
					logger.Error("health service failed", "error", err.Error())
				}
			}()
			defer hs.Stop()
			logger.Info("health service listening", "addr", hs.Addr())
		}
	}

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, eng)
	}()

	logger.Info("engine starting",
		"socket", socketPath,
		"backend", mics.BackendName(),
		"recognizers", factory.Kinds(),
	)
	runErr := eng.Run(ctx)
	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		logger.Error("ipc server failed", "error", serverErr.Error())
		if runErr == nil {
			return r.fail(fmt.Errorf("ipc server failed: %w", serverErr))
		}
	}
	if runErr != nil {
		logger.Error("engine stopped", "error", runErr.Error())
		return r.fail(runErr)
	}
	logger.Info("engine stopped")
	return 0
}
