// Package audiotest provides a scripted capture backend for tests.
package audiotest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rbright/voicecmd/internal/audio"
)

// FrameSamples is the length of every scripted frame (20ms at 16kHz).
const FrameSamples = audio.SampleRate / 50

// Script returns frame i of a stream.
type Script func(i int) ([]int16, error)

// Part is a run of constant-amplitude frames.
type Part struct {
	Frames int
	Amp    int16
}

// Frame builds one constant-amplitude frame.
func Frame(amp int16) []int16 {
	frame := make([]int16, FrameSamples)
	for i := range frame {
		frame[i] = amp
	}
	return frame
}

// Sequence plays parts in order and then repeats the last part forever.
func Sequence(parts ...Part) Script {
	return func(i int) ([]int16, error) {
		if len(parts) == 0 {
			return Frame(0), nil
		}
		for _, part := range parts {
			if i < part.Frames {
				return Frame(part.Amp), nil
			}
			i -= part.Frames
		}
		return Frame(parts[len(parts)-1].Amp), nil
	}
}

// Constant plays amp forever.
func Constant(amp int16) Script {
	return Sequence(Part{Frames: 1, Amp: amp})
}

// FailAfter plays script for n frames and then returns err.
func FailAfter(n int, script Script, err error) Script {
	return func(i int) ([]int16, error) {
		if i >= n {
			return nil, err
		}
		return script(i)
	}
}

// Backend serves scripted streams keyed by device ID.
type Backend struct {
	mu sync.Mutex

	devices  []audio.Device
	scripts  map[string]Script
	openErrs map[string]error
	listErr  error

	opened  []string
	streams []*Stream
}

// NewBackend returns a backend exposing devices, all silent until scripted.
func NewBackend(devices ...audio.Device) *Backend {
	return &Backend{
		devices:  devices,
		scripts:  make(map[string]Script),
		openErrs: make(map[string]error),
	}
}

func (b *Backend) Name() string { return "scripted" }

// SetScript assigns the stream script for deviceID.
func (b *Backend) SetScript(deviceID string, script Script) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scripts[deviceID] = script
}

// FailOpen makes OpenStream fail for deviceID.
func (b *Backend) FailOpen(deviceID string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.openErrs[deviceID] = err
}

// FailList makes ListDevices fail.
func (b *Backend) FailList(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listErr = err
}

// SetDevices replaces the device list.
func (b *Backend) SetDevices(devices ...audio.Device) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices = devices
}

// Opened returns device IDs in the order they were opened.
func (b *Backend) Opened() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.opened...)
}

// OpenStreams counts streams that were opened and not yet closed.
func (b *Backend) OpenStreams() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, s := range b.streams {
		if !s.Closed() {
			n++
		}
	}
	return n
}

func (b *Backend) ListDevices(context.Context) ([]audio.Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	return append([]audio.Device(nil), b.devices...), nil
}

func (b *Backend) OpenStream(_ context.Context, device audio.Device) (audio.Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.openErrs[device.ID]; err != nil {
		return nil, err
	}
	script, ok := b.scripts[device.ID]
	if !ok {
		script = Constant(0)
	}
	b.opened = append(b.opened, device.ID)
	stream := &Stream{script: script}
	b.streams = append(b.streams, stream)
	return stream, nil
}

// ErrClosed is returned by Read after Close.
var ErrClosed = errors.New("scripted stream closed")

// Stream replays a Script.
type Stream struct {
	mu     sync.Mutex
	script Script
	next   int
	closed bool
}

// Reads reports how many frames were read.
func (s *Stream) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Closed reports whether Close was called.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Stream) Read(ctx context.Context) ([]int16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	frame, err := s.script(s.next)
	s.next++
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", s.next-1, err)
	}
	return frame, nil
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
