package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/rbright/voicecmd/internal/audio"
	"github.com/rbright/voicecmd/internal/profile"
	"github.com/rbright/voicecmd/internal/recognizer"
	"github.com/rbright/voicecmd/internal/settings"
)

// reconfigure applies pending requests. Only an exhausted microphone
// fallback is returned; everything else is reported and skipped.
func (e *Engine) reconfigure(ctx context.Context) error {
	if e.pendingReload.Swap(false) {
		e.reload()
	}

	profileChanged := false
	if name := e.pendingProfile.Swap(nil); name != nil {
		profileChanged = e.applyProfile(*name)
	}

	if req := e.pendingRecognizer.Swap(nil); req != nil {
		e.applyRecognizer(ctx, *req)
	} else if profileChanged && e.cfg.Recognizer == settings.RecognizerKeyword {
		e.rebuildRecognizer(ctx, e.cfg.Recognizer, e.cfg.RecognizerOptions(e.cfg.Recognizer), nil)
	}

	if name := e.pendingMicrophone.Swap(nil); name != nil {
		if err := e.switchMicrophone(ctx, *name); err != nil {
			return err
		}
	}

	e.publishStatus()
	return nil
}

// reload re-reads the settings file. Timing values apply directly. Changed
// selections are queued as switch requests unless one is already pending.
func (e *Engine) reload() {
	warnings, err := e.settings.Reload()
	if err != nil {
		e.bus.Warnf("Could not reload settings: %v", err)
		return
	}
	for _, w := range warnings {
		e.bus.Warnf("%s", w)
	}

	prev := e.cfg
	e.cfg = e.settings.Get()

	if e.cfg.Profile != prev.Profile {
		name := e.cfg.Profile
		e.pendingProfile.CompareAndSwap(nil, &name)
	}
	if e.cfg.Microphone != prev.Microphone {
		name := e.cfg.Microphone
		e.pendingMicrophone.CompareAndSwap(nil, &name)
	}
	options := e.cfg.RecognizerOptions(e.cfg.Recognizer)
	if e.cfg.Recognizer != prev.Recognizer || !maps.Equal(options, prev.RecognizerOptions(e.cfg.Recognizer)) {
		e.pendingRecognizer.CompareAndSwap(nil, &recognizerRequest{kind: e.cfg.Recognizer, options: options})
	}
	e.bus.Infof("Reloaded settings")
}

// applyProfile activates name and reports whether the active profile changed.
func (e *Engine) applyProfile(name string) bool {
	if name == "" {
		e.active = nil
		e.bus.Infof("No profile is active")
		return true
	}

	p, err := e.profiles.Get(name)
	if err != nil {
		e.bus.Warnf("Could not load profile %s: %v", name, err)
		return false
	}
	if err := e.settings.Set(settings.KeyProfile, p.Name); err != nil {
		e.bus.Warnf("Could not save profile %s: %v", p.Name, err)
	}
	e.cfg.Profile = p.Name
	e.active = &p
	e.bus.Infof("Activated profile: %s", p.Name)
	return true
}

// applyRecognizer switches kind and options, persisting them only when the
// new session was created.
func (e *Engine) applyRecognizer(ctx context.Context, req recognizerRequest) {
	options := e.cfg.RecognizerOptions(req.kind)
	updates := map[string]any{settings.KeyRecognizer: req.kind}
	for name, value := range req.options {
		key := req.kind + ":" + name
		if err := settings.Check(key, value); err != nil {
			e.bus.Errorf("Could not load recognizer %s: %v", req.kind, err)
			return
		}
		options[name] = value
		updates[key] = value
	}
	if err := settings.Check(settings.KeyRecognizer, req.kind); err != nil {
		e.bus.Errorf("Could not load recognizer %s: %v", req.kind, err)
		return
	}

	e.rebuildRecognizer(ctx, req.kind, options, updates)
}

// rebuildRecognizer creates the new session before closing the old one. On
// failure the old session stays live.
func (e *Engine) rebuildRecognizer(ctx context.Context, kind string, options map[string]string, updates map[string]any) {
	session, err := e.createSession(ctx, kind, options)
	if err != nil {
		e.bus.Errorf("Could not load recognizer %s: %v", kind, err)
		return
	}

	old := e.session
	e.session = session
	if old != nil {
		if err := old.Close(); err != nil {
			e.logger.Warn("close previous recognizer", "kind", old.Kind(), "error", err.Error())
		}
	}

	if updates != nil {
		if err := e.settings.SetMany(updates); err != nil {
			e.bus.Warnf("Could not save recognizer settings: %v", err)
		}
		e.cfg = e.settings.Get()
		e.cfg.Recognizer = kind
		for name, value := range options {
			e.cfg.Options[kind+":"+name] = value
		}
	}
	e.bus.Infof("Loaded recognizer: %s", session.Kind())
}

func (e *Engine) createSession(ctx context.Context, kind string, options map[string]string) (recognizer.Session, error) {
	spec := recognizer.Spec{Kind: kind, Options: options}
	if kind == settings.RecognizerKeyword && e.active != nil {
		spec.Keywords = recognizer.KeywordsFromCommands(e.active.Commands)
	}
	return e.recognizers.Create(ctx, spec)
}

// switchMicrophone replaces the microphone with name. On a device failure it
// falls back to the backend default once and persists that choice.
func (e *Engine) switchMicrophone(ctx context.Context, name string) error {
	if e.mic != nil {
		if err := e.mic.Close(); err != nil {
			e.logger.Warn("close microphone", "device", e.mic.Device().ID, "error", err.Error())
		}
		e.mic = nil
	}

	mic, err := e.openMicrophone(ctx, name)
	if err == nil {
		e.useMicrophone(name, mic)
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	e.bus.Warnf("Could not use microphone %s: %v", name, err)

	fallback, derr := e.mics.DefaultDevice(ctx)
	if derr != nil {
		e.bus.Errorf("No default microphone available: %v", derr)
		return fmt.Errorf("microphone %q failed and no default is available: %w", name, errors.Join(err, derr))
	}
	mic, ferr := e.openMicrophone(ctx, fallback.ID)
	if ferr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.bus.Errorf("Default microphone %s failed: %v", fallback.Label(), ferr)
		return fmt.Errorf("microphone fallback to %q: %w", fallback.ID, ferr)
	}
	e.useMicrophone(fallback.ID, mic)
	return nil
}

func (e *Engine) openMicrophone(ctx context.Context, name string) (*audio.Handle, error) {
	mic, err := e.mics.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := mic.Calibrate(ctx, e.opts.Calibration); err != nil {
		_ = mic.Close()
		return nil, err
	}
	return mic, nil
}

func (e *Engine) useMicrophone(name string, mic *audio.Handle) {
	e.mic = mic
	if name != e.cfg.Microphone {
		if err := e.settings.Set(settings.KeyMicrophone, name); err != nil {
			e.bus.Warnf("Could not save microphone %s: %v", name, err)
		}
		e.cfg.Microphone = name
	}
	e.bus.Infof("Listening to microphone: %s", mic.Device().Label())
}

var (
	_ ProfileStore = (*profile.Store)(nil)
	_ ConfigStore  = (*settings.Store)(nil)
)
