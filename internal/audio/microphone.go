package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCaptureTimeout reports that no speech started before the capture timeout.
var ErrCaptureTimeout = errors.New("capture timed out waiting for speech")

// DeviceError reports a microphone that could not be opened, calibrated, or read.
type DeviceError struct {
	Device string
	Op     string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("microphone %q: %s: %v", e.Device, e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// flusher is implemented by streams that buffer audio between reads.
type flusher interface {
	Flush()
}

// Manager opens microphones on one backend.
type Manager struct {
	backend  Backend
	detector Detector
	dumper   *Dumper
	logger   *slog.Logger
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithDetector overrides the energy gate tuning.
func WithDetector(d Detector) ManagerOption {
	return func(m *Manager) { m.detector = d }
}

// WithDumper writes every captured phrase through d.
func WithDumper(d *Dumper) ManagerOption {
	return func(m *Manager) { m.dumper = d }
}

// NewManager wraps backend.
func NewManager(backend Backend, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{backend: backend, detector: DefaultDetector(), logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	return m
}

// BackendName names the capture backend.
func (m *Manager) BackendName() string {
	return m.backend.Name()
}

// ListDevices enumerates capture devices.
func (m *Manager) ListDevices(ctx context.Context) ([]Device, error) {
	return m.backend.ListDevices(ctx)
}

// DefaultDevice returns the backend's default source.
func (m *Manager) DefaultDevice(ctx context.Context) (Device, error) {
	devices, err := m.backend.ListDevices(ctx)
	if err != nil {
		return Device{}, err
	}
	dev, ok := defaultFromList(devices)
	if !ok {
		return Device{}, errors.New("default audio source is unavailable")
	}
	return dev, nil
}

// Open resolves name and claims its stream. Failures are *DeviceError.
func (m *Manager) Open(ctx context.Context, name string) (*Handle, error) {
	devices, err := m.backend.ListDevices(ctx)
	if err != nil {
		return nil, &DeviceError{Device: name, Op: "list devices", Err: err}
	}
	device, err := selectDeviceFromList(devices, name)
	if err != nil {
		return nil, &DeviceError{Device: name, Op: "resolve", Err: err}
	}

	stream, err := m.backend.OpenStream(ctx, device)
	if err != nil {
		return nil, &DeviceError{Device: name, Op: "open", Err: err}
	}

	m.logger.Info("microphone opened", "backend", m.backend.Name(), "requested", name, "device", device.ID)
	return &Handle{
		name:      name,
		device:    device,
		stream:    stream,
		detector:  m.detector,
		threshold: m.detector.Threshold,
		dumper:    m.dumper,
		logger:    m.logger,
	}, nil
}

// Handle is one open microphone and its ambient calibration.
type Handle struct {
	name     string
	device   Device
	stream   Stream
	detector Detector
	dumper   *Dumper
	logger   *slog.Logger

	threshold float64

	closeOnce sync.Once
	closeErr  error
}

// Name returns the configured name the handle was opened with.
func (h *Handle) Name() string { return h.name }

// Device returns the resolved device.
func (h *Handle) Device() Device { return h.device }

// Threshold returns the current speech energy threshold.
func (h *Handle) Threshold() float64 { return h.threshold }

// Calibrate listens to room noise for duration and adapts the threshold.
func (h *Handle) Calibrate(ctx context.Context, duration time.Duration) error {
	h.flush()

	var elapsed time.Duration
	for elapsed < duration {
		frame, err := h.stream.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &DeviceError{Device: h.name, Op: "calibrate", Err: err}
		}
		frameLen := frameDuration(frame)
		elapsed += frameLen
		h.threshold = h.detector.adapt(h.threshold, rms(frame), frameLen)
	}

	h.logger.Debug("microphone calibrated", "device", h.device.ID, "threshold", h.threshold)
	return nil
}

// Capture waits up to timeout of audio for speech, then records until
// phraseLimit elapses or a pause ends the phrase. Durations are measured in
// captured audio. A timeout without speech returns ErrCaptureTimeout.
func (h *Handle) Capture(ctx context.Context, timeout time.Duration, phraseLimit time.Duration) (Sample, error) {
	h.flush()

	d := h.detector
	var (
		elapsed time.Duration
		frames  [][]int16
	)

	for {
		// Wait for onset, keeping PreRoll of audio before it.
		frames = frames[:0]
		var preRoll, onset time.Duration
		for {
			frame, err := h.read(ctx)
			if err != nil {
				return Sample{}, err
			}
			frameLen := frameDuration(frame)
			elapsed += frameLen
			if timeout > 0 && elapsed > timeout {
				return Sample{}, ErrCaptureTimeout
			}

			frames = append(frames, frame)
			preRoll += frameLen
			for len(frames) > 1 && preRoll-frameDuration(frames[0]) >= d.PreRoll {
				preRoll -= frameDuration(frames[0])
				frames = frames[1:]
			}

			energy := rms(frame)
			if energy > h.threshold {
				onset = frameLen
				break
			}
			h.threshold = d.adapt(h.threshold, energy, frameLen)
		}

		// Record until the pause or the phrase limit.
		var phrase, silence time.Duration
		for {
			if phraseLimit > 0 && phrase >= phraseLimit {
				break
			}
			frame, err := h.read(ctx)
			if err != nil {
				return Sample{}, err
			}
			frameLen := frameDuration(frame)
			elapsed += frameLen
			phrase += frameLen
			frames = append(frames, frame)

			if rms(frame) > h.threshold {
				silence = 0
			} else {
				silence += frameLen
			}
			if silence > d.Pause {
				break
			}
		}

		if onset+phrase-silence >= d.MinPhrase || (phraseLimit > 0 && phrase >= phraseLimit) {
			break
		}
		// Too short to be a phrase; keep waiting within the same timeout budget.
	}

	sample := Sample{PCM: joinFrames(frames), Rate: SampleRate}
	if h.dumper != nil {
		h.dumper.Dump(sample)
	}
	return sample, nil
}

// Close releases the stream. It is safe to call more than once.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		h.closeErr = h.stream.Close()
	})
	return h.closeErr
}

func (h *Handle) read(ctx context.Context) ([]int16, error) {
	frame, err := h.stream.Read(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &DeviceError{Device: h.name, Op: "capture", Err: err}
	}
	return frame, nil
}

func (h *Handle) flush() {
	if f, ok := h.stream.(flusher); ok {
		f.Flush()
	}
}

func joinFrames(frames [][]int16) []int16 {
	total := 0
	for _, frame := range frames {
		total += len(frame)
	}
	out := make([]int16, 0, total)
	for _, frame := range frames {
		out = append(out, frame...)
	}
	return out
}
