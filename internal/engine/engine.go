// Package engine runs the listening loop: capture a phrase, recognize it,
// match it against the active profile, and dispatch the command's macro.
// Reconfiguration requests from other goroutines are collected in
// single-slot, last-write-wins slots and applied between capture cycles.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbright/voicecmd/internal/audio"
	"github.com/rbright/voicecmd/internal/events"
	"github.com/rbright/voicecmd/internal/fsm"
	"github.com/rbright/voicecmd/internal/history"
	"github.com/rbright/voicecmd/internal/ipc"
	"github.com/rbright/voicecmd/internal/matcher"
	"github.com/rbright/voicecmd/internal/profile"
	"github.com/rbright/voicecmd/internal/recognizer"
	"github.com/rbright/voicecmd/internal/settings"
)

const (
	DefaultCalibration   = 3 * time.Second
	DefaultListenTimeout = time.Second
)

// ConfigStore is the persisted engine configuration.
type ConfigStore interface {
	Get() settings.EngineConfig
	Set(key string, value any) error
	SetMany(updates map[string]any) error
	Reload() ([]string, error)
}

// ProfileStore loads profiles by name.
type ProfileStore interface {
	Get(name string) (profile.Profile, error)
}

// Dispatcher replays a macro.
type Dispatcher interface {
	Run(ctx context.Context, macro string) error
}

// Recorder stores dispatched commands.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// Deps are the collaborators of an Engine. History, Events, Ring, and Logger
// are optional.
type Deps struct {
	Settings    ConfigStore
	Profiles    ProfileStore
	Microphones *audio.Manager
	Recognizers *recognizer.Factory
	Dispatcher  Dispatcher
	History     Recorder
	Events      *events.Bus
	Ring        *events.Ring
	Logger      *slog.Logger
}

// Options tunes capture timing.
type Options struct {
	Calibration   time.Duration
	ListenTimeout time.Duration
}

type recognizerRequest struct {
	kind    string
	options map[string]string
}

// Engine owns the recognizer session and the microphone. Run must be called
// at most once.
type Engine struct {
	settings    ConfigStore
	profiles    ProfileStore
	mics        *audio.Manager
	recognizers *recognizer.Factory
	dispatcher  Dispatcher
	history     Recorder
	bus         *events.Bus
	ring        *events.Ring
	logger      *slog.Logger
	opts        Options

	pendingProfile    atomic.Pointer[string]
	pendingMicrophone atomic.Pointer[string]
	pendingRecognizer atomic.Pointer[recognizerRequest]
	pendingReload     atomic.Bool
	stopRequested     atomic.Bool

	mu        sync.RWMutex
	state     fsm.State
	status    ipc.Status
	observers []func(fsm.State)

	// Owned by the Run goroutine.
	cfg     settings.EngineConfig
	active  *profile.Profile
	session recognizer.Session
	mic     *audio.Handle
}

// New validates deps and returns an engine in the uninitialized state.
func New(deps Deps, opts Options) (*Engine, error) {
	switch {
	case deps.Settings == nil:
		return nil, errors.New("engine: settings store is required")
	case deps.Profiles == nil:
		return nil, errors.New("engine: profile store is required")
	case deps.Microphones == nil:
		return nil, errors.New("engine: microphone manager is required")
	case deps.Recognizers == nil:
		return nil, errors.New("engine: recognizer factory is required")
	case deps.Dispatcher == nil:
		return nil, errors.New("engine: dispatcher is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.Events == nil {
		deps.Events = events.NewBus()
	}
	if opts.Calibration <= 0 {
		opts.Calibration = DefaultCalibration
	}
	if opts.ListenTimeout <= 0 {
		opts.ListenTimeout = DefaultListenTimeout
	}

	return &Engine{
		settings:    deps.Settings,
		profiles:    deps.Profiles,
		mics:        deps.Microphones,
		recognizers: deps.Recognizers,
		dispatcher:  deps.Dispatcher,
		history:     deps.History,
		bus:         deps.Events,
		ring:        deps.Ring,
		logger:      deps.Logger,
		opts:        opts,
		state:       fsm.StateUninitialized,
		status:      ipc.Status{State: string(fsm.StateUninitialized)},
	}, nil
}

// OnStateChange registers fn to run after every state change. Register
// observers before Run; fn runs on the engine goroutine.
func (e *Engine) OnStateChange(fn func(fsm.State)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, fn)
}

// State returns the current state.
func (e *Engine) State() fsm.State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Status returns a snapshot of the engine configuration and state.
func (e *Engine) Status() ipc.Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st := e.status
	st.State = string(e.state)
	if st.Options != nil {
		opts := make(map[string]string, len(st.Options))
		for k, v := range st.Options {
			opts[k] = v
		}
		st.Options = opts
	}
	return st
}

// RequestProfileSwitch asks the engine to activate name. An empty name
// deactivates matching.
func (e *Engine) RequestProfileSwitch(name string) {
	e.pendingProfile.Store(&name)
}

// RequestMicrophoneSwitch asks the engine to reopen the microphone as name.
func (e *Engine) RequestMicrophoneSwitch(name string) {
	e.pendingMicrophone.Store(&name)
}

// RequestRecognizerSwitch asks the engine to rebuild the recognizer as kind.
// options are keyed without the "kind:" prefix and override stored values.
func (e *Engine) RequestRecognizerSwitch(kind string, options map[string]string) {
	opts := make(map[string]string, len(options))
	for k, v := range options {
		opts[k] = v
	}
	e.pendingRecognizer.Store(&recognizerRequest{kind: kind, options: opts})
}

// RequestReload asks the engine to re-read the settings file. Changed
// values take effect at the next reconfiguration point.
func (e *Engine) RequestReload() {
	e.pendingReload.Store(true)
}

// RequestStop asks Run to return after the current cycle.
func (e *Engine) RequestStop() {
	e.stopRequested.Store(true)
}

func (e *Engine) hasPending() bool {
	return e.pendingReload.Load() ||
		e.pendingProfile.Load() != nil ||
		e.pendingMicrophone.Load() != nil ||
		e.pendingRecognizer.Load() != nil
}

func (e *Engine) stopping(ctx context.Context) bool {
	return e.stopRequested.Load() || ctx.Err() != nil
}

// Run initializes the engine and listens until RequestStop or ctx is done.
// Only initialization failures and an exhausted microphone fallback are
// returned.
func (e *Engine) Run(ctx context.Context) error {
	defer e.release()

	if err := e.init(ctx); err != nil {
		e.transition(fsm.EventStop)
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	if err := e.transition(fsm.EventInit); err != nil {
		return err
	}

	for {
		if e.stopping(ctx) {
			e.transition(fsm.EventStop)
			return nil
		}

		if e.hasPending() {
			e.transition(fsm.EventReconfigure)
			if err := e.reconfigure(ctx); err != nil {
				e.transition(fsm.EventStop)
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			e.transition(fsm.EventReconfigured)
			continue
		}

		e.transition(fsm.EventListen)
		e.cycle(ctx)
		e.transition(fsm.EventIdle)
	}
}

// init loads configuration, the active profile, the recognizer, and the
// microphone.
func (e *Engine) init(ctx context.Context) error {
	e.cfg = e.settings.Get()

	p, err := e.profiles.Get(e.cfg.Profile)
	switch {
	case err == nil:
		e.active = &p
	case errors.Is(err, profile.ErrNotFound):
		e.bus.Warnf("Profile %s not found; no profile is active", e.cfg.Profile)
	default:
		return fmt.Errorf("load profile %q: %w", e.cfg.Profile, err)
	}

	session, err := e.createSession(ctx, e.cfg.Recognizer, e.cfg.RecognizerOptions(e.cfg.Recognizer))
	if err != nil {
		e.bus.Errorf("Could not load recognizer %s: %v", e.cfg.Recognizer, err)
		return err
	}
	e.session = session
	e.bus.Infof("Loaded recognizer: %s", session.Kind())

	if err := e.switchMicrophone(ctx, e.cfg.Microphone); err != nil {
		return err
	}
	e.publishStatus()
	return nil
}

// cycle runs one capture, recognize, match, dispatch pass. Unclassified
// failures are reported and schedule a microphone rebuild.
func (e *Engine) cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			e.fail(fmt.Errorf("panic: %v", r))
		}
	}()

	sample, err := e.mic.Capture(ctx, e.opts.ListenTimeout, e.cfg.PhraseTimeLimit())
	if err != nil {
		if errors.Is(err, audio.ErrCaptureTimeout) || ctx.Err() != nil {
			return
		}
		e.fail(err)
		return
	}

	text, err := e.session.Recognize(ctx, sample)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return
	case errors.Is(err, recognizer.ErrNoMatch):
		e.logger.Debug("no speech recognized", "audio", sample.Duration())
		return
	case errors.Is(err, recognizer.ErrBackendUnavailable):
		e.bus.Warnf("Recognizer %s unavailable: %v", e.session.Kind(), err)
		return
	default:
		e.fail(err)
		return
	}
	e.logger.Debug("recognized", "text", text, "recognizer", e.session.Kind())

	if e.active == nil {
		return
	}
	m, ok := matcher.Find(text, e.active.Commands)
	if !ok {
		e.logger.Debug("no command matched", "text", text, "profile", e.active.Name)
		return
	}

	dispatchErr := e.dispatcher.Run(ctx, m.Command.Macro)
	e.record(ctx, text, m, dispatchErr)
	if dispatchErr != nil {
		if ctx.Err() != nil {
			return
		}
		e.fail(fmt.Errorf("dispatch %q: %w", m.Command.Command, dispatchErr))
		return
	}
	e.bus.Infof("%s%s", events.ExecutedPrefix, m.Command.Command)
}

func (e *Engine) record(ctx context.Context, text string, m matcher.Match, dispatchErr error) {
	if e.history == nil {
		return
	}
	entry := history.Entry{
		Profile:    e.active.Name,
		Recognizer: e.session.Kind(),
		Phrase:     text,
		Command:    m.Command.Command,
		Macro:      m.Command.Macro,
		Exact:      m.Exact,
	}
	if dispatchErr != nil {
		entry.Error = dispatchErr.Error()
	}
	if err := e.history.Record(context.WithoutCancel(ctx), entry); err != nil {
		e.logger.Warn("record command history", "error", err.Error())
	}
}

// fail reports err and schedules a rebuild of the current microphone unless
// a switch is already pending.
func (e *Engine) fail(err error) {
	e.bus.Errorf("Listener error: %v", err)
	name := e.cfg.Microphone
	e.pendingMicrophone.CompareAndSwap(nil, &name)
}

// transition applies event and notifies observers. Invalid transitions are
// logged and ignored.
func (e *Engine) transition(event fsm.Event) error {
	e.mu.Lock()
	next, err := fsm.Transition(e.state, event)
	if err != nil {
		e.mu.Unlock()
		e.logger.Error("engine transition", "error", err.Error())
		return err
	}
	changed := next != e.state
	e.state = next
	observers := e.observers
	e.mu.Unlock()

	if changed {
		for _, fn := range observers {
			fn(next)
		}
	}
	return nil
}

// publishStatus refreshes the snapshot served by Status.
func (e *Engine) publishStatus() {
	st := ipc.Status{
		Profile:    e.cfg.Profile,
		Microphone: e.cfg.Microphone,
		Recognizer: e.cfg.Recognizer,
		Options:    e.cfg.RecognizerOptions(e.cfg.Recognizer),
	}
	if e.active == nil {
		st.Profile = ""
	} else {
		st.Commands = len(e.active.Commands)
	}
	if e.session != nil {
		st.Recognizer = e.session.Kind()
	}
	if e.mic != nil {
		st.Microphone = e.mic.Device().Label()
	}

	e.mu.Lock()
	e.status = st
	e.mu.Unlock()
}

// release closes the recognizer and microphone.
func (e *Engine) release() {
	if e.session != nil {
		if err := e.session.Close(); err != nil {
			e.logger.Warn("close recognizer", "error", err.Error())
		}
		e.session = nil
	}
	if e.mic != nil {
		if err := e.mic.Close(); err != nil {
			e.logger.Warn("close microphone", "error", err.Error())
		}
		e.mic = nil
	}
}
