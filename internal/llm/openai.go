// Package llm routes transcripts to an OpenAI-compatible chat backend
// and streams the answer back as spoken-sentence chunks.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/voxhome/assistant/internal/config"
	"github.com/voxhome/assistant/internal/observability"
	"github.com/voxhome/assistant/internal/resilience"
)

// Client is the conversational backend capability the session needs.
type Client interface {
	// Send forwards a transcript (optionally with a JPEG attachment)
	// and returns the reply. A nil reply with a non-nil error is a
	// hard failure the caller must recover from.
	Send(ctx context.Context, transcript string, imageB64 string) (*Reply, error)
	// ResetHistory drops the conversation, keeping the system prompt.
	ResetHistory()
}

// ChatClient talks to OpenAI or, via its compatible REST surface, Groq.
type ChatClient struct {
	cfg     *config.Config
	api     *openai.Client
	model   string
	useGroq bool
	logger  zerolog.Logger
	breaker *resilience.CircuitBreaker

	mu      sync.Mutex
	history []openai.ChatCompletionMessage
	system  string
}

// NewChatClient builds the backend client for the active assistant
// profile. The system prompt template is expanded once at construction,
// matching one conversation per detector lifetime.
func NewChatClient(cfg *config.Config, profile config.Profile) *ChatClient {
	var api *openai.Client
	var model string
	if cfg.UseGroq {
		clientCfg := openai.DefaultConfig(cfg.GroqKey)
		clientCfg.BaseURL = cfg.GroqBaseURL
		api = openai.NewClientWithConfig(clientCfg)
		model = cfg.GroqModel
	} else {
		api = openai.NewClient(cfg.OpenAIKey)
		model = cfg.OpenAIModel
	}

	c := &ChatClient{
		cfg:     cfg,
		api:     api,
		model:   model,
		useGroq: cfg.UseGroq,
		logger:  observability.ComponentLogger("llm"),
		breaker: resilience.NewCircuitBreaker(
			"llm",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
	}
	c.system = expandSystemPrompt(cfg.SystemPrompt, profile, time.Now())
	c.ResetHistory()
	return c
}

// expandSystemPrompt fills the prompt template placeholders. The
// weather hint requires a geolocation lookup, so it is only resolved
// when the template actually asks for it.
func expandSystemPrompt(template string, profile config.Profile, now time.Time) string {
	pairs := []string{
		"{assistant_name}", profile.Name,
		"{assistant_acronym}", profile.Acronym,
		"{assistant_descr}", profile.Descr,
		"{today}", now.Format("2006-01-02"),
		"{theCurrentTime}", strings.TrimPrefix(now.Format("3:04 PM"), "0"),
	}
	if strings.Contains(template, "{weather_info}") {
		pairs = append(pairs, "{weather_info}", weatherHint())
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// ResetHistory implements Client.
func (c *ChatClient) ResetHistory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: c.system},
	}
}

// Send implements Client. The returned stream reply carries sentences
// split at ./!/? boundaries; history is extended with the full answer
// once the stream drains.
func (c *ChatClient) Send(ctx context.Context, transcript string, imageB64 string) (*Reply, error) {
	userMsg, err := c.userMessage(transcript, imageB64)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.history = append(c.history, userMsg)
	messages := make([]openai.ChatCompletionMessage, len(c.history))
	copy(messages, c.history)
	c.mu.Unlock()

	start := time.Now()
	var stream *openai.ChatCompletionStream
	err = c.breaker.Call(func() error {
		var streamErr error
		stream, streamErr = c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model:       c.model,
			Messages:    messages,
			MaxTokens:   c.cfg.MaxTokens,
			Temperature: 1,
			Stream:      true,
		})
		return streamErr
	})
	observability.RecordLLMRequest(err == nil, time.Since(start))
	if err != nil {
		observability.RecordError("chat_stream", "llm")
		return nil, fmt.Errorf("chat request failed: %w", err)
	}

	chunks := make(chan string)
	go c.pump(stream, chunks)
	return NewStream(chunks), nil
}

// pump reads model deltas, emits whole sentences, and records the full
// answer into the history when the stream ends.
func (c *ChatClient) pump(stream *openai.ChatCompletionStream, chunks chan<- string) {
	defer close(chunks)
	defer stream.Close()

	var full, sentence strings.Builder
	for {
		response, err := stream.Recv()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.logger.Warn().Err(err).Msg("Response stream ended early")
				observability.RecordError("stream_recv", "llm")
			}
			break
		}
		if len(response.Choices) == 0 {
			continue
		}
		delta := response.Choices[0].Delta.Content
		if delta == "" {
			continue
		}

		sentence.WriteString(strings.ReplaceAll(delta, "\n", ""))
		full.WriteString(strings.ReplaceAll(delta, "\n", ""))
		if endsSentence(delta) {
			chunks <- sentence.String()
			sentence.Reset()
		}
	}
	if sentence.Len() > 0 {
		chunks <- sentence.String()
	}

	c.mu.Lock()
	c.history = append(c.history, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: full.String(),
	})
	c.mu.Unlock()
}

// endsSentence reports whether the delta's last character closes a
// spoken sentence.
func endsSentence(delta string) bool {
	switch delta[len(delta)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}

// userMessage builds the outgoing message, attaching the image as a
// data URL when the backend supports vision input.
func (c *ChatClient) userMessage(transcript, imageB64 string) (openai.ChatCompletionMessage, error) {
	if imageB64 == "" {
		return openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: transcript,
		}, nil
	}
	if c.useGroq {
		return openai.ChatCompletionMessage{}, fmt.Errorf("image input is not supported on this backend")
	}
	return openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: transcript},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: "data:image/jpeg;base64," + imageB64,
				},
			},
		},
	}, nil
}
