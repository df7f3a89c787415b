package audio

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Dumper writes captured phrases as WAV files for debugging.
type Dumper struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// NewDumper writes into dir, creating it on first use.
func NewDumper(dir string, logger *slog.Logger) *Dumper {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dumper{dir: dir, logger: logger, now: time.Now}
}

// Dump writes one sample. Failures are logged, never returned.
func (d *Dumper) Dump(sample Sample) {
	if len(sample.PCM) == 0 {
		return
	}
	path, err := d.write(sample)
	if err != nil {
		d.logger.Warn("unable to write debug audio dump", "error", err.Error())
		return
	}
	d.logger.Debug("debug audio dump written", "path", path, "duration_ms", sample.Duration().Milliseconds())
}

func (d *Dumper) write(sample Sample) (string, error) {
	if err := os.MkdirAll(d.dir, 0o700); err != nil {
		return "", fmt.Errorf("create debug dir: %w", err)
	}

	timestamp := d.now().Format("20060102-150405.000")
	path := filepath.Join(d.dir, fmt.Sprintf("audio-%s.wav", timestamp))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("open debug file %q: %w", path, err)
	}
	defer file.Close()

	rate := sample.Rate
	if rate <= 0 {
		rate = SampleRate
	}
	enc := wav.NewEncoder(file, rate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		Data:           make([]int, len(sample.PCM)),
		SourceBitDepth: 16,
	}
	for i, v := range sample.PCM {
		buf.Data[i] = int(v)
	}
	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		return "", fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("finalize wav: %w", err)
	}
	return path, nil
}
