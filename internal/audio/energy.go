package audio

import (
	"math"
	"time"
)

// Detector tunes the energy gate that separates speech from room noise.
type Detector struct {
	// Threshold is the RMS energy above which a frame counts as speech.
	Threshold float64
	// Damping is the per-second decay applied when adapting Threshold.
	Damping float64
	// Ratio scales ambient energy into the adapted threshold.
	Ratio float64
	// Pause is the trailing silence that ends a phrase.
	Pause time.Duration
	// MinPhrase is the least speech a phrase must contain to be kept.
	MinPhrase time.Duration
	// PreRoll is the audio kept from before the detected onset.
	PreRoll time.Duration
}

// DefaultDetector mirrors common energy-gate tuning for desk microphones.
func DefaultDetector() Detector {
	return Detector{
		Threshold: 300,
		Damping:   0.15,
		Ratio:     1.5,
		Pause:     800 * time.Millisecond,
		MinPhrase: 300 * time.Millisecond,
		PreRoll:   500 * time.Millisecond,
	}
}

// adapt moves threshold toward ratio*energy, weighted by how long frame lasted.
func (d Detector) adapt(threshold float64, energy float64, frame time.Duration) float64 {
	damping := math.Pow(d.Damping, frame.Seconds())
	target := energy * d.Ratio
	return threshold*damping + target*(1-damping)
}

// rms returns the root-mean-square amplitude of one frame.
func rms(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, v := range frame {
		f := float64(v)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(frame)))
}

// frameDuration converts a frame length at SampleRate into time.
func frameDuration(frame []int16) time.Duration {
	return time.Duration(len(frame)) * time.Second / SampleRate
}
