package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// SampleRate is the capture rate every backend delivers.
const SampleRate = 16000

// Sample is one captured phrase of 16-bit mono PCM.
type Sample struct {
	PCM  []int16
	Rate int
}

// Duration returns the audio length.
func (s Sample) Duration() time.Duration {
	if s.Rate <= 0 {
		return 0
	}
	return time.Duration(len(s.PCM)) * time.Second / time.Duration(s.Rate)
}

// PCM16LE encodes the samples as little-endian bytes.
func (s Sample) PCM16LE() []byte {
	out := make([]byte, len(s.PCM)*2)
	for i, v := range s.PCM {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// Float32 scales the samples into [-1, 1].
func (s Sample) Float32() []float32 {
	out := make([]float32, len(s.PCM))
	for i, v := range s.PCM {
		out[i] = float32(v) / float32(math.MaxInt16+1)
	}
	return out
}

// decodePCM16LE converts little-endian s16 bytes to samples. A trailing odd byte is dropped.
func decodePCM16LE(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}
