// Package wakeword scores audio frames against a wake-word model and
// decides when the assistant should wake up.
package wakeword

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxhome/assistant/internal/audio"
	"github.com/voxhome/assistant/internal/observability"
)

// Classifier scores a frame against one or more wake-word models and
// returns a confidence in [0,1] per model.
type Classifier interface {
	Predict(frame audio.Frame) (map[string]float64, error)
}

// LevelFunc receives rate-limited audio level telemetry.
type LevelFunc func(level float64)

// Config tunes the gate.
type Config struct {
	VADThreshold   float64       // mean absolute amplitude below which frames are skipped
	ScoreThreshold float64       // classifier confidence required to wake
	Hangover       time.Duration // how long after the last loud frame quiet frames still pass
	LevelEvery     time.Duration // minimum interval between level telemetry emissions
	PrintLevel     bool          // log every frame that passes the VAD gate
}

// Gate applies cheap amplitude gating before the classifier and turns
// classifier scores into edge-triggered wake decisions. Not safe for
// concurrent Score calls; a single consumer goroutine owns it.
type Gate struct {
	classifier Classifier
	cfg        Config
	logger     zerolog.Logger
	onLevel    LevelFunc

	vadThreshold atomic.Value // float64, adjustable at runtime

	armed     bool
	lastAbove time.Time
	lastEmit  time.Time

	// test seam
	now func() time.Time
}

// NewGate returns an armed gate.
func NewGate(classifier Classifier, cfg Config, onLevel LevelFunc) *Gate {
	g := &Gate{
		classifier: classifier,
		cfg:        cfg,
		logger:     observability.ComponentLogger("wakeword"),
		onLevel:    onLevel,
		armed:      true,
		now:        time.Now,
	}
	g.vadThreshold.Store(cfg.VADThreshold)
	return g
}

// Score runs one frame through the gate and reports whether it fired a
// wake event and at what confidence. Quiet frames outside the hangover
// window are skipped without touching the classifier.
func (g *Gate) Score(frame audio.Frame) (woke bool, score float64) {
	now := g.now()
	level := frame.Level()
	threshold := g.Threshold()

	g.emitLevel(now, level)

	if level < threshold && now.Sub(g.lastAbove) > g.cfg.Hangover {
		observability.RecordFrameSkipped()
		return false, 0
	}
	if level >= threshold {
		g.lastAbove = now
	}
	if g.cfg.PrintLevel {
		g.logger.Debug().Float64("level", level).Msg("Audio level over threshold, scoring frame")
	}

	prediction, err := g.classifier.Predict(frame)
	if err != nil {
		// Model hiccups must not kill the consumer loop.
		g.logger.Warn().Err(err).Msg("Classifier prediction failed")
		observability.RecordError("classifier", "wakeword")
		return false, 0
	}
	score = firstScore(prediction)

	if score < g.cfg.ScoreThreshold || !g.armed {
		return false, score
	}

	g.armed = false
	observability.RecordWakeEvent()
	g.logger.Info().Float64("score", math.Round(score*1000)/1000).Msg("Awoken")
	return true, score
}

// Rearm re-enables wake triggering after a session completes.
func (g *Gate) Rearm() {
	g.armed = true
}

// PrimeSilence feeds two seconds of zeros through the classifier to
// flush any residual model state left by real speech.
func (g *Gate) PrimeSilence(sampleRate int) {
	silence := audio.Silence(2 * sampleRate)
	if _, err := g.classifier.Predict(silence); err != nil {
		g.logger.Warn().Err(err).Msg("Silence priming failed")
	}
}

// Threshold returns the current VAD threshold.
func (g *Gate) Threshold() float64 {
	return g.vadThreshold.Load().(float64)
}

// SetThreshold adjusts the VAD threshold at runtime.
func (g *Gate) SetThreshold(v float64) {
	g.vadThreshold.Store(v)
	g.logger.Info().Float64("vad_threshold", v).Msg("VAD threshold updated")
}

func (g *Gate) emitLevel(now time.Time, level float64) {
	if now.Sub(g.lastEmit) < g.cfg.LevelEvery {
		return
	}
	g.lastEmit = now
	observability.RecordAudioLevel(level)
	if g.onLevel != nil {
		g.onLevel(level)
	}
}

// firstScore extracts the first model's score; with one wake-word model
// loaded the map has exactly one entry.
func firstScore(prediction map[string]float64) float64 {
	for _, s := range prediction {
		return s
	}
	return 0
}
