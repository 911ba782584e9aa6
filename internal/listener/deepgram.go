package listener

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	prerecorded "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/voxhome/assistant/internal/config"
	"github.com/voxhome/assistant/internal/observability"
	"github.com/voxhome/assistant/internal/resilience"
)

// DeepgramTranscriber transcribes captured utterances through the
// Deepgram prerecorded REST API.
type DeepgramTranscriber struct {
	cfg     *config.Config
	client  *prerecorded.Client
	breaker *resilience.CircuitBreaker
	logger  zerolog.Logger
}

// NewDeepgramTranscriber builds the client from config.
func NewDeepgramTranscriber(cfg *config.Config) *DeepgramTranscriber {
	rest := listenClient.NewREST(cfg.DeepgramAPIKey, &interfaces.ClientOptions{})
	return &DeepgramTranscriber{
		cfg:    cfg,
		client: prerecorded.New(rest),
		breaker: resilience.NewCircuitBreaker(
			"deepgram",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
		logger: observability.ComponentLogger("stt"),
	}
}

// Transcribe implements Transcriber.
func (d *DeepgramTranscriber) Transcribe(ctx context.Context, wav []byte) (string, error) {
	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       d.cfg.DeepgramModel,
		Language:    d.cfg.DeepgramLanguage,
		Punctuate:   true,
		SmartFormat: true,
	}

	var transcript string
	start := time.Now()
	err := d.breaker.Call(func() error {
		response, err := d.client.FromStream(ctx, bytes.NewReader(wav), options)
		if err != nil {
			return fmt.Errorf("deepgram request failed: %w", err)
		}

		channels := response.Results.Channels
		if len(channels) == 0 || len(channels[0].Alternatives) == 0 {
			return nil
		}
		transcript = strings.TrimSpace(channels[0].Alternatives[0].Transcript)
		return nil
	})
	observability.RecordSTTRequest(err == nil, time.Since(start))
	if err != nil {
		observability.RecordError("deepgram", "stt")
		return "", err
	}

	d.logger.Debug().Str("transcript", transcript).Msg("Transcription complete")
	return transcript, nil
}
