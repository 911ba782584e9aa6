package wakeword

import (
	"math"

	"github.com/voxhome/assistant/internal/audio"
)

// EnvelopeClassifier is a lightweight spotter that scores frames by how
// closely their energy envelope matches a short spoken phrase: a burst
// of speech energy of plausible wake-word length, preceded by quiet.
// It stands in where no trained wake-word model is wired up; the
// Classifier interface is the integration point for a real model.
type EnvelopeClassifier struct {
	name       string
	sampleRate int
	chunkSize  int

	// rolling per-frame RMS history, oldest first
	history []float64
	noise   float64 // adaptive noise floor estimate
}

// NewEnvelopeClassifier builds a spotter keyed to the given wake word.
func NewEnvelopeClassifier(name string, sampleRate, chunkSize int) *EnvelopeClassifier {
	frames := wordWindow * sampleRate / chunkSize
	if frames < 4 {
		frames = 4
	}
	return &EnvelopeClassifier{
		name:       name,
		sampleRate: sampleRate,
		chunkSize:  chunkSize,
		history:    make([]float64, 0, frames),
		noise:      defaultNoiseFloor,
	}
}

const (
	// wordWindow is how many seconds of audio a spoken wake phrase spans.
	wordWindow = 1

	defaultNoiseFloor = 150.0
	noiseAdapt        = 0.02 // EWMA rate for the noise floor
	activeRatio       = 3.0  // rms/noise ratio counted as speech
)

// Predict implements Classifier. The returned map carries one entry
// keyed by the wake-word name, mirroring a one-model inference run.
func (c *EnvelopeClassifier) Predict(frame audio.Frame) (map[string]float64, error) {
	rms := frame.RMS()

	if cap(c.history) > 0 && len(c.history) == cap(c.history) {
		copy(c.history, c.history[1:])
		c.history = c.history[:len(c.history)-1]
	}
	c.history = append(c.history, rms)

	// Only quiet frames adapt the noise floor, so sustained speech
	// does not raise it under itself.
	if rms < c.noise*activeRatio {
		c.noise += noiseAdapt * (rms - c.noise)
		if c.noise < 1 {
			c.noise = 1
		}
	}

	return map[string]float64{c.name: c.score()}, nil
}

// score measures how word-like the current window looks: mostly-quiet
// leading edge, a contiguous active burst covering the middle, and
// enough dynamic range between burst and floor.
func (c *EnvelopeClassifier) score() float64 {
	n := len(c.history)
	if n < cap(c.history) {
		return 0 // window not yet full
	}

	active := 0
	var peak float64
	for _, rms := range c.history {
		if rms >= c.noise*activeRatio {
			active++
		}
		if rms > peak {
			peak = rms
		}
	}

	// Fraction of the window that is speech, scaled so a burst filling
	// roughly half the window scores near 1.
	coverage := math.Min(float64(active)/(float64(n)*0.5), 1.0)
	if coverage == 0 || peak == 0 {
		return 0
	}

	// Dynamic range term: at least ~12dB over the floor for full credit.
	rangeDB := 20 * math.Log10(peak/c.noise)
	dynamic := math.Min(rangeDB/12.0, 1.0)
	if dynamic < 0 {
		dynamic = 0
	}

	return coverage * dynamic
}
