package tts

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/voxhome/assistant/internal/observability"
	"github.com/voxhome/assistant/internal/soundfx"
)

// TranslateSpeaker uses the public Google Translate TTS endpoint. It is
// the free fallback voice when ElevenLabs is disabled or failing.
type TranslateSpeaker struct {
	language   string
	accent     string // top-level domain selecting the accent, e.g. "co.uk"
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewTranslateSpeaker builds the fallback speaker.
func NewTranslateSpeaker(language, accent string) *TranslateSpeaker {
	if accent == "" {
		accent = "com"
	}
	return &TranslateSpeaker{
		language:   language,
		accent:     accent,
		httpClient: &http.Client{},
		logger:     observability.ComponentLogger("tts"),
	}
}

// Speak implements Speaker.
func (s *TranslateSpeaker) Speak(ctx context.Context, text string) error {
	spoken := nonASCII.ReplaceAllString(text, "")
	if spoken == "" {
		return nil
	}

	endpoint := fmt.Sprintf(
		"https://translate.google.%s/translate_tts?ie=UTF-8&client=tw-ob&tl=%s&q=%s",
		s.accent, url.QueryEscape(s.language), url.QueryEscape(spoken),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tts request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("tts request returned status %d", resp.StatusCode)
	}

	return soundfx.PlayMP3(resp.Body)
}
