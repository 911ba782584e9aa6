package events

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/voxhome/assistant/internal/observability"
)

// Color is an RGB triple for the status ring.
type Color [3]uint8

var (
	Black  = Color{0, 0, 0}
	White  = Color{255, 255, 255}
	Red    = Color{255, 0, 0}
	Yellow = Color{255, 255, 0}
	Blue   = Color{0, 0, 255}
	Green  = Color{0, 255, 0}
	Purple = Color{255, 0, 255}
	Cyan   = Color{0, 255, 255}
)

// ColorFor maps an event to its status ring color. Events with no
// mapping (and the ok=false return) leave the ring unchanged.
func ColorFor(e Event) (Color, bool) {
	switch e {
	case StreamingStarted:
		return Cyan, true
	case Awake:
		return Blue, true
	case VoiceStarted:
		return Yellow, true
	case Transcript:
		return White, true
	case Running:
		return Red, true
	case Connected:
		return Green, true
	case Disconnected:
		return Purple, true
	case Off:
		return Black, true
	}
	return Black, false
}

// ColorWriter pushes a color to whatever drives the status ring
// (GPIO bridge, dashboard, or nothing at all).
type ColorWriter interface {
	SetColor(c Color) error
}

// LEDSink translates events into status ring colors, writing only on
// actual color changes.
type LEDSink struct {
	writer ColorWriter
	logger zerolog.Logger

	mu      sync.Mutex
	current Color
}

// NewLEDSink wires a color writer to the event bus.
func NewLEDSink(w ColorWriter) *LEDSink {
	return &LEDSink{
		writer: w,
		logger: observability.ComponentLogger("led"),
	}
}

// Notify implements Sink.
func (s *LEDSink) Notify(p Payload) {
	color, ok := ColorFor(p.Event)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if color == s.current {
		return
	}
	s.current = color

	if err := s.writer.SetColor(color); err != nil {
		s.logger.Warn().Err(err).Str("event", string(p.Event)).Msg("Failed to set status color")
	}
}

// LogWriter is a ColorWriter that only logs color changes, used when no
// hardware ring is attached.
type LogWriter struct {
	logger zerolog.Logger
}

// NewLogWriter returns a writer that logs instead of driving hardware.
func NewLogWriter() *LogWriter {
	return &LogWriter{logger: observability.ComponentLogger("led")}
}

// SetColor implements ColorWriter.
func (w *LogWriter) SetColor(c Color) error {
	w.logger.Debug().
		Uint8("r", c[0]).Uint8("g", c[1]).Uint8("b", c[2]).
		Msg("Status color changed")
	return nil
}
