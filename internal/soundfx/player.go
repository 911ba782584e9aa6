package soundfx

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/rs/zerolog"

	"github.com/voxhome/assistant/internal/observability"
)

// genericSounds play from the sounds root; everything else is looked up
// in the active assistant's subdirectory (per-assistant voice lines).
var genericSounds = map[string]bool{
	"error":          true,
	"awake":          true,
	"done":           true,
	"initializing":   true,
	"loading":        true,
	"halflifebutton": true,
	"alarm":          true,
	"timer":          true,
}

// Player plays named sound effects from the sounds directory.
type Player struct {
	soundsDir string
	assistant string
	logger    zerolog.Logger

	mu      sync.Mutex
	current *Handle
}

// NewPlayer builds a player for the active assistant.
func NewPlayer(soundsDir, assistant string) *Player {
	return &Player{
		soundsDir: soundsDir,
		assistant: assistant,
		logger:    observability.ComponentLogger("soundfx"),
	}
}

// path resolves a sound name to its file, preferring wav.
func (p *Player) path(name string) (string, error) {
	dir := p.soundsDir
	if !genericSounds[name] {
		dir = filepath.Join(dir, p.assistant)
	}
	for _, ext := range []string{".wav", ".mp3"} {
		candidate := filepath.Join(dir, name+ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("sound %q not found in %s", name, dir)
}

// Play plays a named effect to completion, stopping whatever effect was
// already playing. Missing sounds log and return.
func (p *Player) Play(name string) {
	p.Stop()

	streamer, format, err := p.open(name)
	if err != nil {
		p.logger.Warn().Err(err).Str("sound", name).Msg("Failed to play sound")
		return
	}
	defer streamer.Close()

	done := make(chan struct{})
	speaker.Play(beep.Seq(resampled(streamer, format), beep.Callback(func() {
		close(done)
	})))
	<-done
}

// PlayLoop starts a named effect looping until the handle is stopped.
func (p *Player) PlayLoop(name string) *Handle {
	p.Stop()

	streamer, format, err := p.open(name)
	if err != nil {
		p.logger.Warn().Err(err).Str("sound", name).Msg("Failed to loop sound")
		return nil
	}

	h := &Handle{
		ctrl:   &beep.Ctrl{Streamer: resampled(beep.Loop(-1, streamer), format)},
		closer: streamer,
	}
	speaker.Play(beep.Seq(h.ctrl, beep.Callback(h.markDone)))

	p.mu.Lock()
	p.current = h
	p.mu.Unlock()
	return h
}

// Stop halts the current effect, if any. Idempotent.
func (p *Player) Stop() {
	p.mu.Lock()
	h := p.current
	p.current = nil
	p.mu.Unlock()

	if h != nil {
		h.Stop()
	}
}

func (p *Player) open(name string) (beep.StreamSeekCloser, beep.Format, error) {
	path, err := p.path(name)
	if err != nil {
		return nil, beep.Format{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to open sound file: %w", err)
	}
	streamer, format, err := decodeFile(f, path)
	if err != nil {
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return streamer, format, nil
}
