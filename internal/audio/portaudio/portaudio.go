// Package portaudio captures through PortAudio for hosts without a Pulse server.
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	pa "github.com/gordonklaus/portaudio"

	"github.com/rbright/voicecmd/internal/audio"
)

const framesPerBuffer = audio.SampleRate / 50

// Backend lists and opens PortAudio input devices.
type Backend struct{}

// New returns a PortAudio backend.
func New() *Backend {
	return &Backend{}
}

func (b *Backend) Name() string { return "portaudio" }

// ListDevices returns every device with at least one input channel.
func (b *Backend) ListDevices(_ context.Context) ([]audio.Device, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	defer func() { _ = pa.Terminate() }()

	infos, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("list portaudio devices: %w", err)
	}
	def, _ := pa.DefaultInputDevice()

	devices := make([]audio.Device, 0, len(infos))
	for _, info := range infos {
		if info == nil || info.MaxInputChannels < 1 {
			continue
		}
		devices = append(devices, toDevice(info, def))
	}
	return devices, nil
}

// OpenStream opens a blocking 16kHz mono s16 input stream on device.
func (b *Backend) OpenStream(_ context.Context, device audio.Device) (audio.Stream, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	info, err := findDevice(device.ID)
	if err != nil {
		_ = pa.Terminate()
		return nil, err
	}

	params := pa.LowLatencyParameters(info, nil)
	params.Input.Channels = 1
	params.SampleRate = audio.SampleRate
	params.FramesPerBuffer = framesPerBuffer

	buf := make([]int16, framesPerBuffer)
	stream, err := pa.OpenStream(params, buf)
	if err != nil {
		_ = pa.Terminate()
		return nil, fmt.Errorf("open portaudio stream on %q: %w", device.ID, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = pa.Terminate()
		return nil, fmt.Errorf("start portaudio stream on %q: %w", device.ID, err)
	}

	return &paStream{stream: stream, buf: buf}, nil
}

// paStream wraps a started PortAudio stream. Read blocks for one buffer.
type paStream struct {
	mu     sync.Mutex
	stream *pa.Stream
	buf    []int16
	closed bool
}

func (s *paStream) Read(ctx context.Context) ([]int16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("portaudio stream closed")
	}

	// Overflow means frames were lost while nobody read; the buffer is still valid.
	if err := s.stream.Read(); err != nil && !errors.Is(err, pa.InputOverflowed) {
		return nil, fmt.Errorf("read portaudio stream: %w", err)
	}
	frame := make([]int16, len(s.buf))
	copy(frame, s.buf)
	return frame, nil
}

func (s *paStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	stopErr := s.stream.Stop()
	closeErr := s.stream.Close()
	termErr := pa.Terminate()
	return errors.Join(stopErr, closeErr, termErr)
}

func findDevice(id string) (*pa.DeviceInfo, error) {
	infos, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("list portaudio devices: %w", err)
	}
	for _, info := range infos {
		if info != nil && info.MaxInputChannels > 0 && deviceID(info) == id {
			return info, nil
		}
	}
	return nil, fmt.Errorf("portaudio device %q not found", id)
}

func toDevice(info *pa.DeviceInfo, def *pa.DeviceInfo) audio.Device {
	description := info.Name
	if info.HostApi != nil {
		description = info.HostApi.Name + ": " + info.Name
	}
	return audio.Device{
		ID:          deviceID(info),
		Description: description,
		State:       "idle",
		Available:   true,
		Default:     def != nil && deviceID(def) == deviceID(info),
	}
}

func deviceID(info *pa.DeviceInfo) string {
	return info.Name
}
