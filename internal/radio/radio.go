// Package radio streams internet radio through the shared playback
// device. While the radio plays, the wake-word pipeline stays paused.
package radio

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/voxhome/assistant/internal/observability"
	"github.com/voxhome/assistant/internal/soundfx"
)

// Player streams one station at a time.
type Player struct {
	httpClient *http.Client
	logger     zerolog.Logger

	mu        sync.Mutex
	handle    *soundfx.Handle
	streamURL string // last station, reused when Start gets no URL
	playing   bool
}

// NewPlayer builds a stopped radio player. defaultURL seeds the station
// used by a bare "play the radio" request.
func NewPlayer(defaultURL string) *Player {
	return &Player{
		// Streaming never finishes; no client timeout.
		httpClient: &http.Client{},
		logger:     observability.ComponentLogger("radio"),
		streamURL:  defaultURL,
	}
}

// Start begins streaming. An empty URL replays the last station.
func (p *Player) Start(streamURL string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.playing {
		return nil
	}
	if streamURL == "" {
		streamURL = p.streamURL
	}
	if streamURL == "" {
		return fmt.Errorf("no stream url configured")
	}

	resp, err := p.httpClient.Get(streamURL)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	handle, err := soundfx.StartMP3(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to start stream playback: %w", err)
	}

	p.handle = handle
	p.streamURL = streamURL
	p.playing = true
	p.logger.Info().Str("url", streamURL).Msg("Radio started")
	return nil
}

// Stop ends streaming. Idempotent.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.playing {
		return
	}
	p.handle.Stop()
	p.handle = nil
	p.playing = false
	p.logger.Info().Msg("Radio stopped")
}

// Playing reports whether a stream is active. The session's reset path
// checks this to decide between resuming the pipeline and staying
// paused.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}
