package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the voice assistant.
type Config struct {
	// Control server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Audio capture configuration. The wake-word models expect 16kHz mono
	// signed 16-bit PCM in 1280-sample frames (80ms).
	SampleRate int `envconfig:"SAMPLE_RATE" default:"16000"`
	Channels   int `envconfig:"CHANNELS" default:"1"`
	ChunkSize  int `envconfig:"CHUNK_SIZE" default:"1280"`
	QueueDepth int `envconfig:"QUEUE_DEPTH" default:"32"` // Bounded frame queue capacity

	// Wake word and voice activity detection
	VADThreshold       int     `envconfig:"VAD_THRESHOLD" default:"300"`        // Mean absolute amplitude gate
	WakeScoreThreshold float64 `envconfig:"WAKE_SCORE_THRESHOLD" default:"0.5"` // Classifier confidence gate
	HangoverMs         int     `envconfig:"HANGOVER_MS" default:"750"`          // Grace window after an above-threshold frame
	LevelEmitMs        int     `envconfig:"LEVEL_EMIT_MS" default:"100"`        // Min interval between audio level events
	PrintAudioLevel    bool    `envconfig:"PRINT_AUDIO_LEVEL" default:"false"`  // Log the level of every processed frame

	// Utterance listener
	ListenTimeout   int `envconfig:"LISTEN_TIMEOUT" default:"5"`     // Seconds to wait for speech to start
	PhraseTimeLimit int `envconfig:"PHRASE_TIME_LIMIT" default:"15"` // Max seconds of captured speech
	SilenceFrames   int `envconfig:"SILENCE_FRAMES" default:"10"`    // Sub-threshold frames that end an utterance

	// Deepgram STT API configuration
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY" required:"true"`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`

	// Conversational backend. Groq speaks the OpenAI wire format, so both
	// providers share one client and differ only in key, model and base URL.
	UseGroq      bool   `envconfig:"USE_GROQ" default:"false"`
	OpenAIKey    string `envconfig:"OPENAI_API_KEY" default:""`
	OpenAIModel  string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	GroqKey      string `envconfig:"GROQ_API_KEY" default:""`
	GroqModel    string `envconfig:"GROQ_MODEL" default:"llama-3.1-70b-versatile"`
	GroqBaseURL  string `envconfig:"GROQ_BASE_URL" default:"https://api.groq.com/openai/v1"`
	MaxTokens    int    `envconfig:"MAX_TOKENS" default:"300"`
	SystemPrompt string `envconfig:"SYSTEM_PROMPT" default:"You are {assistant_name} ({assistant_acronym}), {assistant_descr}. Today is {today} and the current time is {theCurrentTime}. {weather_info}Keep spoken answers short and conversational."`

	// ElevenLabs TTS configuration
	UseElevenLabs bool   `envconfig:"USE_ELEVENLABS" default:"true"`
	ElevenLabsKey string `envconfig:"ELEVENLABS_API_KEY" default:""`

	// Spoken language for transcription and fallback synthesis
	Language string `envconfig:"LANGUAGE" default:"en"`

	// Radio streaming
	RadioURL string `envconfig:"RADIO_URL" default:""`

	// Local assets and state
	SoundsDir      string `envconfig:"SOUNDS_DIR" default:"sounds"`
	ChatLogDir     string `envconfig:"CHATLOG_DIR" default:"chatlogs"`
	AssistantsFile string `envconfig:"ASSISTANTS_FILE" default:"assistants.json"`
	SettingsFile   string `envconfig:"SETTINGS_FILE" default:"settings.json"`
	Assistant      string `envconfig:"ASSISTANT" default:"jarvis"` // Default profile key; overridden by settings

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"` // Milliseconds
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000"` // Milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
}

// Load reads configuration from environment variables, first attempting to
// load a .env file if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables without
// touching a .env file (useful for containerized deployments and tests).
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.DeepgramAPIKey == "" {
		return nil, fmt.Errorf("DEEPGRAM_API_KEY is required")
	}
	if cfg.ChunkSize <= 0 || cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid audio parameters: chunk=%d rate=%d", cfg.ChunkSize, cfg.SampleRate)
	}
	if cfg.UseGroq && cfg.GroqKey == "" {
		return nil, fmt.Errorf("GROQ_API_KEY is required when USE_GROQ is set")
	}

	return &cfg, nil
}

// Hangover returns the VAD hangover window as a duration.
func (c *Config) Hangover() time.Duration {
	return time.Duration(c.HangoverMs) * time.Millisecond
}

// FrameDuration returns the wall-clock length of one audio frame.
func (c *Config) FrameDuration() time.Duration {
	return time.Duration(c.ChunkSize) * time.Second / time.Duration(c.SampleRate)
}
