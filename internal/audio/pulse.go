// Package audio handles device discovery, microphone lifecycle, and phrase capture.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	chunkSizeBytes = 640 // 20ms @ 16kHz mono s16

	defaultStallTimeout = 2 * time.Second
)

var errStreamClosed = errors.New("capture stream closed")

// PulseBackend captures through a PulseAudio (or pipewire-pulse) server.
type PulseBackend struct {
	AppName      string
	StallTimeout time.Duration
}

// NewPulseBackend returns a backend that registers as appName with the server.
func NewPulseBackend(appName string) *PulseBackend {
	return &PulseBackend{AppName: appName, StallTimeout: defaultStallTimeout}
}

func (b *PulseBackend) Name() string { return "pulse" }

func (b *PulseBackend) newClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName(b.AppName),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

// ListDevices returns Pulse input sources with default/availability metadata.
func (b *PulseBackend) ListDevices(_ context.Context) ([]Device, error) {
	client, err := b.newClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}
	defaultID := defaultSource.ID()

	var sourceInfos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &sourceInfos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(sourceInfos))
	for _, source := range sourceInfos {
		if source == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          source.SourceName,
			Description: source.Device,
			State:       sourceStateString(source.State),
			Available:   sourceAvailable(source),
			Muted:       source.Mute,
			Default:     source.SourceName == defaultID,
		})
	}
	return devices, nil
}

// OpenStream creates and starts a 16kHz mono s16 record stream on device.
func (b *PulseBackend) OpenStream(_ context.Context, device Device) (Stream, error) {
	client, err := b.newClient()
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(device.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", device.ID, err)
	}

	capture := newPulseCapture(b.StallTimeout)
	capture.client = client

	writer := pulse.NewWriter(writerFunc(capture.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(chunkSizeBytes),
		pulse.RecordMediaName(b.AppName+" voice commands"),
	)
	if err != nil {
		_ = capture.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	capture.stream = stream
	stream.Start()
	return capture, nil
}

// pulseCapture turns Pulse write callbacks into fixed-size frames.
type pulseCapture struct {
	client *pulse.Client
	stream *pulse.RecordStream

	frames chan []int16
	stopCh chan struct{}
	stall  time.Duration

	mu      sync.Mutex
	pending []byte
	stopped bool

	inflight sync.WaitGroup
	bytes    atomic.Int64
}

func newPulseCapture(stall time.Duration) *pulseCapture {
	if stall <= 0 {
		stall = defaultStallTimeout
	}
	return &pulseCapture{
		frames: make(chan []int16, 128),
		stopCh: make(chan struct{}),
		stall:  stall,
	}
}

// Read returns the next frame. A source that stops delivering audio is an error.
func (c *pulseCapture) Read(ctx context.Context) ([]int16, error) {
	timer := time.NewTimer(c.stall)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case frame, ok := <-c.frames:
		if !ok {
			return nil, errStreamClosed
		}
		return frame, nil
	case <-timer.C:
		return nil, fmt.Errorf("no audio received for %s", c.stall)
	}
}

// Flush discards frames buffered while nobody was reading.
func (c *pulseCapture) Flush() {
	for {
		select {
		case _, ok := <-c.frames:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// BytesCaptured reports total bytes accepted from Pulse.
func (c *pulseCapture) BytesCaptured() int64 {
	return c.bytes.Load()
}

// Close halts the stream and closes the frame channel exactly once.
func (c *pulseCapture) Close() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.stopCh)
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}

	c.inflight.Wait()

	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()

	close(c.frames)
	return nil
}

// onPCM receives raw Pulse bytes and emits chunkSizeBytes frames.
func (c *pulseCapture) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	select {
	case <-c.stopCh:
		return 0, io.EOF
	default:
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	// Guard Add under the same mutex as c.stopped to avoid Add/Wait races.
	c.inflight.Add(1)

	c.pending = append(c.pending, buffer...)
	frames := make([][]int16, 0, len(c.pending)/chunkSizeBytes)
	for len(c.pending) >= chunkSizeBytes {
		frames = append(frames, decodePCM16LE(c.pending[:chunkSizeBytes]))
		c.pending = c.pending[chunkSizeBytes:]
	}
	c.mu.Unlock()
	defer c.inflight.Done()

	c.bytes.Add(int64(len(buffer)))

	for _, frame := range frames {
		select {
		case <-c.stopCh:
			return 0, io.EOF
		case c.frames <- frame:
		default:
			// Drop when the engine is not reading (dispatching or rebuilding).
		}
	}

	return len(buffer), nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}

// sourceStateString maps Pulse source state constants to human-readable values.
func sourceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// sourceAvailable maps Pulse source port availability to a simple boolean.
func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	if len(source.Ports) == 0 {
		return true
	}
	for _, port := range source.Ports {
		if port.Name != source.ActivePortName {
			continue
		}
		// PulseAudio values: unknown=0, no=1, yes=2.
		return port.Available == 0 || port.Available == 2
	}
	return true
}
