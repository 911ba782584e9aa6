// Package listener captures a spoken utterance after the wake word and
// turns it into text.
package listener

import (
	"bytes"
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxhome/assistant/internal/audio"
	"github.com/voxhome/assistant/internal/config"
	"github.com/voxhome/assistant/internal/observability"
)

// Outcome classifies a capture attempt. Empty capture is an expected
// condition, not an error.
type Outcome int

const (
	Captured     Outcome = iota // speech recorded, transcript may follow
	EmptyCapture                // timed out waiting for speech, or nothing intelligible
	Failed                      // hardware or backend failure
)

// String returns the outcome name for logs.
func (o Outcome) String() string {
	switch o {
	case Captured:
		return "captured"
	case EmptyCapture:
		return "empty"
	}
	return "failed"
}

// SourceFactory opens a fresh capture stream per listen call, so the
// utterance recorder never contends with the wake-word producer.
type SourceFactory func() (audio.Source, error)

// Transcriber converts captured PCM (as WAV) into text. An empty
// transcript with a nil error means the audio was unintelligible.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// Listener records one utterance at a time.
type Listener struct {
	cfg       *config.Config
	newSource SourceFactory
	trans     Transcriber
	logger    zerolog.Logger

	threshold func() float64 // live VAD threshold
}

// New builds a listener. threshold reports the current VAD threshold so
// runtime adjustments apply to utterance capture too.
func New(cfg *config.Config, newSource SourceFactory, trans Transcriber, threshold func() float64) *Listener {
	return &Listener{
		cfg:       cfg,
		newSource: newSource,
		trans:     trans,
		logger:    observability.ComponentLogger("listener"),
		threshold: threshold,
	}
}

// Listen blocks until an utterance has been captured or the speech-start
// timeout expires. The capture ends after SilenceFrames consecutive
// quiet frames or at the phrase time limit.
func (l *Listener) Listen(ctx context.Context) (audio.Frame, Outcome) {
	src, err := l.newSource()
	if err != nil {
		l.logger.Error().Err(err).Msg("Failed to open capture stream")
		observability.RecordError("capture_open", "listener")
		return nil, Failed
	}
	defer src.Close()
	if err := src.Open(); err != nil {
		l.logger.Error().Err(err).Msg("Failed to start capture stream")
		observability.RecordError("capture_open", "listener")
		return nil, Failed
	}

	l.logger.Info().Msg("Listening for request")

	var (
		recording  audio.Frame
		speaking   bool
		quietRun   int
		started    = time.Now()
		speechFrom time.Time
		timeout    = time.Duration(l.cfg.ListenTimeout) * time.Second
		limit      = time.Duration(l.cfg.PhraseTimeLimit) * time.Second
		threshold  = l.threshold()
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, EmptyCapture
		}

		frame, err := src.Read()
		if err != nil {
			l.logger.Warn().Err(err).Msg("Capture read failed")
			return nil, Failed
		}

		loud := frame.Level() >= threshold
		if !speaking {
			if loud {
				speaking = true
				speechFrom = time.Now()
				recording = append(recording, frame...)
			} else if time.Since(started) > timeout {
				l.logger.Info().Msg("No speech detected before timeout")
				return nil, EmptyCapture
			}
			continue
		}

		recording = append(recording, frame...)
		if loud {
			quietRun = 0
		} else {
			quietRun++
			if quietRun >= l.cfg.SilenceFrames {
				break
			}
		}
		if time.Since(speechFrom) > limit {
			l.logger.Debug().Msg("Phrase time limit reached")
			break
		}
	}

	l.logger.Debug().
		Float64("seconds", float64(len(recording))/float64(l.cfg.SampleRate)).
		Msg("Utterance captured")
	return recording, Captured
}

// Transcribe sends a captured utterance to the transcription backend.
func (l *Listener) Transcribe(ctx context.Context, recording audio.Frame) (string, Outcome) {
	if len(recording) == 0 {
		return "", EmptyCapture
	}

	wav := encodeWAV(recording, l.cfg.SampleRate, l.cfg.Channels)

	text, err := l.trans.Transcribe(ctx, wav)
	if err != nil {
		l.logger.Error().Err(err).Msg("Transcription failed")
		observability.RecordError("transcribe", "listener")
		return "", Failed
	}
	if text == "" {
		l.logger.Info().Msg("Could not understand audio")
		return "", EmptyCapture
	}
	return text, Captured
}

// encodeWAV wraps raw little-endian PCM16 in a minimal RIFF header.
func encodeWAV(samples audio.Frame, sampleRate, channels int) []byte {
	data := samples.BytesLE()
	byteRate := sampleRate * channels * 2

	var buf bytes.Buffer
	buf.Grow(44 + len(data))
	buf.WriteString("RIFF")
	writeLE32(&buf, uint32(36+len(data)))
	buf.WriteString("WAVEfmt ")
	writeLE32(&buf, 16)
	writeLE16(&buf, 1) // PCM
	writeLE16(&buf, uint16(channels))
	writeLE32(&buf, uint32(sampleRate))
	writeLE32(&buf, uint32(byteRate))
	writeLE16(&buf, uint16(channels*2))
	writeLE16(&buf, 16)
	buf.WriteString("data")
	writeLE32(&buf, uint32(len(data)))
	buf.Write(data)
	return buf.Bytes()
}

func writeLE16(buf *bytes.Buffer, v uint16) {
	buf.WriteByte(byte(v))
	buf.WriteByte(byte(v >> 8))
}

func writeLE32(buf *bytes.Buffer, v uint32) {
	buf.WriteByte(byte(v))
	buf.WriteByte(byte(v >> 8))
	buf.WriteByte(byte(v >> 16))
	buf.WriteByte(byte(v >> 24))
}
