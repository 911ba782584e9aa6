package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"github.com/voxhome/assistant/internal/observability"
)

// ErrStreamClosed signals a transient capture fault (device stopped or
// overflowed). The caller recovers by calling Reopen rather than aborting.
var ErrStreamClosed = errors.New("audio: mic stream closed")

// Source yields fixed-size audio frames from a capture device. The handle is
// owned exclusively by its user; Reopen must be called by whichever goroutine
// detected a fault, and Close must only run after all readers have stopped.
type Source interface {
	Open() error
	Read() (Frame, error)
	Reopen() error
	Close() error
}

// MicSource captures frames from the default input device via PortAudio.
type MicSource struct {
	sampleRate int
	channels   int
	chunkSize  int
	logger     zerolog.Logger

	mu     sync.Mutex
	stream *portaudio.Stream
	buf    []int16
	opens  int
	closed bool
}

// NewMicSource creates an unopened microphone source.
func NewMicSource(sampleRate, channels, chunkSize int) *MicSource {
	return &MicSource{
		sampleRate: sampleRate,
		channels:   channels,
		chunkSize:  chunkSize,
		logger:     observability.ComponentLogger("mic"),
	}
}

// Open starts the capture stream. PortAudio itself must already be
// initialized by the process entry point.
func (m *MicSource) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openLocked()
}

func (m *MicSource) openLocked() error {
	if m.closed {
		return fmt.Errorf("audio: source already closed")
	}
	if m.stream != nil {
		return nil
	}

	m.buf = make([]int16, m.chunkSize*m.channels)
	stream, err := portaudio.OpenDefaultStream(m.channels, 0, float64(m.sampleRate), m.chunkSize, m.buf)
	if err != nil {
		return fmt.Errorf("failed to open mic stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start mic stream: %w", err)
	}

	m.stream = stream
	m.opens++
	m.logger.Debug().
		Int("sample_rate", m.sampleRate).
		Int("chunk_size", m.chunkSize).
		Int("opens", m.opens).
		Msg("Mic stream opened")
	return nil
}

// Read blocks until one full frame has been captured. A stopped or
// overflowed stream surfaces as ErrStreamClosed so the caller can Reopen.
func (m *MicSource) Read() (Frame, error) {
	m.mu.Lock()
	stream := m.stream
	m.mu.Unlock()

	if stream == nil {
		return nil, ErrStreamClosed
	}

	if err := stream.Read(); err != nil {
		if errors.Is(err, portaudio.InputOverflowed) {
			// Overflow drops old samples but the stream stays usable.
			m.logger.Debug().Msg("Mic input overflowed, frame dropped")
			return nil, ErrStreamClosed
		}
		return nil, fmt.Errorf("mic read failed: %w", err)
	}

	frame := make(Frame, len(m.buf))
	copy(frame, m.buf)
	return frame, nil
}

// Reopen tears down and reestablishes the capture stream.
func (m *MicSource) Reopen() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream != nil {
		m.stream.Stop()
		m.stream.Close()
		m.stream = nil
	}

	observability.RecordMicReopen()
	return m.openLocked()
}

// SampleRate returns the configured capture rate.
func (m *MicSource) SampleRate() int { return m.sampleRate }

// Opens returns how many times the stream has been (re)opened.
func (m *MicSource) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

// Close releases the device. Idempotent.
func (m *MicSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	if m.stream != nil {
		m.stream.Stop()
		if err := m.stream.Close(); err != nil {
			m.stream = nil
			return fmt.Errorf("failed to close mic stream: %w", err)
		}
		m.stream = nil
	}
	m.logger.Debug().Msg("Mic stream closed")
	return nil
}
