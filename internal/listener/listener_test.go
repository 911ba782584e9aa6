package listener

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/voxhome/assistant/internal/audio"
	"github.com/voxhome/assistant/internal/config"
)

type playbackSource struct {
	frames []audio.Frame
	pos    int
	closed bool
}

func (s *playbackSource) Open() error { return nil }

func (s *playbackSource) Read() (audio.Frame, error) {
	if s.pos >= len(s.frames) {
		return audio.Silence(4), nil
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

func (s *playbackSource) Reopen() error { return nil }
func (s *playbackSource) Close() error  { s.closed = true; return nil }

type stubTranscriber struct {
	text string
	err  error
	wav  []byte
}

func (s *stubTranscriber) Transcribe(ctx context.Context, wav []byte) (string, error) {
	s.wav = wav
	return s.text, s.err
}

func testConfig() *config.Config {
	return &config.Config{
		SampleRate:      16000,
		Channels:        1,
		ListenTimeout:   1,
		PhraseTimeLimit: 15,
		SilenceFrames:   3,
	}
}

func fixedThreshold(v float64) func() float64 {
	return func() float64 { return v }
}

func loudFrame() audio.Frame  { return audio.Frame{8000, -8000, 8000, -8000} }
func quietFrame() audio.Frame { return audio.Silence(4) }

func TestListenCapturesUntilSilence(t *testing.T) {
	source := &playbackSource{frames: []audio.Frame{
		quietFrame(), // pre-speech silence is not recorded
		loudFrame(),
		loudFrame(),
		quietFrame(),
		quietFrame(),
		quietFrame(), // third quiet frame ends the utterance
	}}
	l := New(testConfig(), func() (audio.Source, error) { return source, nil }, nil, fixedThreshold(300))

	recording, outcome := l.Listen(context.Background())
	if outcome != Captured {
		t.Fatalf("outcome = %v, want captured", outcome)
	}
	// two loud frames plus the three-frame quiet tail, 4 samples each
	if len(recording) != 5*4 {
		t.Errorf("recording length = %d samples, want %d", len(recording), 5*4)
	}
	if !source.closed {
		t.Error("capture stream not closed after listen")
	}
}

func TestListenTimesOutWithoutSpeech(t *testing.T) {
	cfg := testConfig()
	cfg.ListenTimeout = 0
	source := &playbackSource{}
	l := New(cfg, func() (audio.Source, error) { return source, nil }, nil, fixedThreshold(300))

	recording, outcome := l.Listen(context.Background())
	if outcome != EmptyCapture {
		t.Errorf("outcome = %v, want empty", outcome)
	}
	if recording != nil {
		t.Errorf("recording = %v, want nil", recording)
	}
}

func TestListenFailsWhenStreamWontOpen(t *testing.T) {
	l := New(testConfig(), func() (audio.Source, error) {
		return nil, errors.New("no capture device")
	}, nil, fixedThreshold(300))

	if _, outcome := l.Listen(context.Background()); outcome != Failed {
		t.Errorf("outcome = %v, want failed", outcome)
	}
}

func TestListenHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	source := &playbackSource{}
	l := New(testConfig(), func() (audio.Source, error) { return source, nil }, nil, fixedThreshold(300))

	if _, outcome := l.Listen(ctx); outcome != EmptyCapture {
		t.Errorf("outcome = %v, want empty", outcome)
	}
}

func TestTranscribeOutcomes(t *testing.T) {
	tests := []struct {
		name      string
		recording audio.Frame
		text      string
		err       error
		want      Outcome
		wantText  string
	}{
		{"success", loudFrame(), "turn on the lights", nil, Captured, "turn on the lights"},
		{"empty recording", nil, "", nil, EmptyCapture, ""},
		{"unintelligible", loudFrame(), "", nil, EmptyCapture, ""},
		{"backend failure", loudFrame(), "", errors.New("api down"), Failed, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trans := &stubTranscriber{text: tt.text, err: tt.err}
			l := New(testConfig(), nil, trans, fixedThreshold(300))

			text, outcome := l.Transcribe(context.Background(), tt.recording)
			if outcome != tt.want {
				t.Errorf("outcome = %v, want %v", outcome, tt.want)
			}
			if text != tt.wantText {
				t.Errorf("text = %q, want %q", text, tt.wantText)
			}
		})
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	samples := audio.Frame{1, -2}
	wav := encodeWAV(samples, 16000, 1)

	if len(wav) != 44+4 {
		t.Fatalf("wav length = %d, want 48", len(wav))
	}
	if !bytes.Equal(wav[0:4], []byte("RIFF")) {
		t.Errorf("missing RIFF marker: %q", wav[0:4])
	}
	if !bytes.Equal(wav[8:16], []byte("WAVEfmt ")) {
		t.Errorf("missing WAVE/fmt markers: %q", wav[8:16])
	}
	if got := binary.LittleEndian.Uint32(wav[4:8]); got != 36+4 {
		t.Errorf("riff size = %d, want 40", got)
	}
	if got := binary.LittleEndian.Uint16(wav[20:22]); got != 1 {
		t.Errorf("format tag = %d, want 1 (PCM)", got)
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 16000 {
		t.Errorf("sample rate = %d, want 16000", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 32000 {
		t.Errorf("byte rate = %d, want 32000", got)
	}
	if got := binary.LittleEndian.Uint16(wav[34:36]); got != 16 {
		t.Errorf("bits per sample = %d, want 16", got)
	}
	if !bytes.Equal(wav[36:40], []byte("data")) {
		t.Errorf("missing data marker: %q", wav[36:40])
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != 4 {
		t.Errorf("data size = %d, want 4", got)
	}
	if !bytes.Equal(wav[44:], []byte{0x01, 0x00, 0xFE, 0xFF}) {
		t.Errorf("pcm payload = %v, want little-endian samples", wav[44:])
	}
}
