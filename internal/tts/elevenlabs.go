// Package tts turns reply text into audible speech.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/rs/zerolog"

	"github.com/voxhome/assistant/internal/config"
	"github.com/voxhome/assistant/internal/observability"
	"github.com/voxhome/assistant/internal/soundfx"
)

// Speaker is the speech capability the session consumes.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

const elevenLabsURL = "https://api.elevenlabs.io/v1/text-to-speech/%s/stream"

var nonASCII = regexp.MustCompile(`[^\x00-\x7F]+`)

// voiceSettings tunes the synthesized voice.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// ElevenLabsSpeaker streams synthesized MP3 from ElevenLabs and plays
// it as it arrives.
type ElevenLabsSpeaker struct {
	apiKey     string
	voiceID    string
	assistant  string
	httpClient *http.Client
	logger     zerolog.Logger
	fallback   Speaker
}

// NewElevenLabsSpeaker builds the speaker for one assistant voice. The
// fallback, when non-nil, handles text whenever synthesis fails.
func NewElevenLabsSpeaker(cfg *config.Config, profile config.Profile, fallback Speaker) *ElevenLabsSpeaker {
	return &ElevenLabsSpeaker{
		apiKey:     cfg.ElevenLabsKey,
		voiceID:    profile.ElevenLabsVoiceID,
		assistant:  profile.Name,
		httpClient: &http.Client{},
		logger:     observability.ComponentLogger("tts"),
		fallback:   fallback,
	}
}

// Speak implements Speaker. Emojis and other non-ASCII runes are
// stripped before synthesis so they are never read out.
func (s *ElevenLabsSpeaker) Speak(ctx context.Context, text string) error {
	spoken := nonASCII.ReplaceAllString(text, "")
	if spoken == "" {
		return nil
	}
	s.logger.Info().Str("assistant", s.assistant).Str("text", text).Msg("Speaking")

	if err := s.synthesize(ctx, spoken); err != nil {
		observability.RecordTTSRequest(false)
		s.logger.Warn().Err(err).Msg("Synthesis failed")
		if s.fallback != nil {
			return s.fallback.Speak(ctx, spoken)
		}
		return err
	}
	observability.RecordTTSRequest(true)
	return nil
}

func (s *ElevenLabsSpeaker) synthesize(ctx context.Context, text string) error {
	payload, err := json.Marshal(synthesisRequest{
		Text: text,
		VoiceSettings: voiceSettings{
			Stability:       0.8,
			SimilarityBoost: 0.8,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf(elevenLabsURL, s.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.apiKey)
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("synthesis request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("synthesis request returned status %d", resp.StatusCode)
	}

	// PlayMP3 closes the body when playback finishes.
	return soundfx.PlayMP3(resp.Body)
}
