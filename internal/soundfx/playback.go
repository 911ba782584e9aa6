// Package soundfx plays the assistant's audio cues and gives the rest
// of the system a shared playback path for synthesized speech and
// streamed music.
package soundfx

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
)

// playbackRate is the output device rate everything gets resampled to.
const playbackRate = beep.SampleRate(44100)

var initOnce sync.Once

// InitPlayback starts the output device. Must run once before any sound
// plays; subsequent calls are no-ops.
func InitPlayback() error {
	var err error
	initOnce.Do(func() {
		err = speaker.Init(playbackRate, playbackRate.N(time.Second/10))
	})
	if err != nil {
		return fmt.Errorf("failed to init playback device: %w", err)
	}
	return nil
}

// resampled adapts a decoded stream to the device rate.
func resampled(streamer beep.Streamer, format beep.Format) beep.Streamer {
	if format.SampleRate == playbackRate {
		return streamer
	}
	return beep.Resample(4, format.SampleRate, playbackRate, streamer)
}

// PlayMP3 decodes and plays an MP3 stream to completion, blocking the
// caller. The reader is closed when playback ends.
func PlayMP3(r io.ReadCloser) error {
	streamer, format, err := mp3.Decode(r)
	if err != nil {
		r.Close()
		return fmt.Errorf("failed to decode mp3: %w", err)
	}
	defer streamer.Close()

	done := make(chan struct{})
	speaker.Play(beep.Seq(resampled(streamer, format), beep.Callback(func() {
		close(done)
	})))
	<-done
	return nil
}

// StartMP3 decodes an MP3 stream and plays it until the returned Handle
// is stopped or the stream ends. Used for radio playback.
func StartMP3(r io.ReadCloser) (*Handle, error) {
	streamer, format, err := mp3.Decode(r)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to decode mp3: %w", err)
	}

	h := &Handle{
		ctrl:   &beep.Ctrl{Streamer: resampled(streamer, format)},
		closer: streamer,
	}
	speaker.Play(beep.Seq(h.ctrl, beep.Callback(h.markDone)))
	return h, nil
}

// Handle controls one in-flight playback.
type Handle struct {
	ctrl   *beep.Ctrl
	closer io.Closer

	mu      sync.Mutex
	stopped bool
}

func (h *Handle) markDone() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
}

// Stop halts playback and releases the underlying stream. Idempotent.
func (h *Handle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.stopped = true

	speaker.Lock()
	h.ctrl.Paused = true
	h.ctrl.Streamer = nil
	speaker.Unlock()
	if h.closer != nil {
		h.closer.Close()
	}
}

// decodeFile decodes a sound file stream, picking the codec by the
// file's extension.
func decodeFile(r io.ReadCloser, path string) (beep.StreamSeekCloser, beep.Format, error) {
	if strings.HasSuffix(path, ".mp3") {
		return mp3.Decode(r)
	}
	return wav.Decode(r)
}
