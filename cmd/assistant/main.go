package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"github.com/voxhome/assistant/internal/alarm"
	"github.com/voxhome/assistant/internal/audio"
	"github.com/voxhome/assistant/internal/chatlog"
	"github.com/voxhome/assistant/internal/config"
	"github.com/voxhome/assistant/internal/control"
	"github.com/voxhome/assistant/internal/events"
	"github.com/voxhome/assistant/internal/listener"
	"github.com/voxhome/assistant/internal/llm"
	"github.com/voxhome/assistant/internal/observability"
	"github.com/voxhome/assistant/internal/pipeline"
	"github.com/voxhome/assistant/internal/radio"
	"github.com/voxhome/assistant/internal/resilience"
	"github.com/voxhome/assistant/internal/session"
	"github.com/voxhome/assistant/internal/soundfx"
	"github.com/voxhome/assistant/internal/tts"
	"github.com/voxhome/assistant/internal/wakeword"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()
	logger.Info().
		Str("port", cfg.Port).
		Int("sample_rate", cfg.SampleRate).
		Bool("use_groq", cfg.UseGroq).
		Msg("Voice assistant starting")

	if err := portaudio.Initialize(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize audio subsystem")
	}
	defer portaudio.Terminate()

	if err := soundfx.InitPlayback(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize playback device")
	}

	registry, err := config.LoadRegistry(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load assistant profiles")
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	music := radio.NewPlayer(cfg.RadioURL)

	// The detector is rebuilt whenever the active assistant changes,
	// mirroring one conversation and one voice per detector lifetime.
	restart := make(chan string, 1)
	for {
		a := buildApp(cfg, registry, music, restart)
		done := a.start(logger)

		select {
		case sig := <-signals:
			logger.Info().Str("signal", sig.String()).Msg("Shutting down")
			a.stop(logger, true)
			return
		case key := <-restart:
			logger.Info().Str("assistant", key).Msg("Switching assistant, restarting detector")
			a.stop(logger, false)
		case err := <-done:
			if err != nil {
				logger.Error().Err(err).Msg("Pipeline failed, restarting")
				a.stop(logger, false)
				time.Sleep(time.Second)
				continue
			}
			return
		}
	}
}

// app is the explicit application context: every component of one
// detector lifetime, wired at startup and torn down together.
type app struct {
	cfg      *config.Config
	registry *config.Registry
	profile  config.Profile

	bus       *events.Bus
	hub       *events.Hub
	sounds    *soundfx.Player
	speaker   tts.Speaker
	music     *radio.Player
	scheduler *alarm.Scheduler
	log       *chatlog.Log

	mic        *audio.MicSource
	gate       *wakeword.Gate
	bridge     *pipeline.Bridge
	controller *session.Controller
	server     *control.Server
}

func buildApp(cfg *config.Config, registry *config.Registry, music *radio.Player, restart chan<- string) *app {
	activeKey, profile := registry.Active()

	a := &app{
		cfg:      cfg,
		registry: registry,
		profile:  profile,
		music:    music,
	}

	a.bus = events.NewBus()
	a.hub = events.NewHub()
	a.bus.Subscribe(events.NewLogSink())
	a.bus.Subscribe(events.NewLEDSink(events.NewLogWriter()))
	a.bus.Subscribe(a.hub)
	a.bus.Notify(events.Starting, profile.Name)

	a.sounds = soundfx.NewPlayer(cfg.SoundsDir, activeKey)
	a.scheduler = alarm.NewScheduler(func(kind alarm.Kind) {
		if kind == alarm.KindAlarm {
			a.sounds.Play("alarm")
		} else {
			a.sounds.Play("timer")
		}
	})

	var err error
	a.log, err = chatlog.New(cfg.ChatLogDir, activeKey)
	if err != nil {
		observability.GetLogger().Fatal().Err(err).Msg("Failed to open chat log")
	}

	fallback := tts.NewTranslateSpeaker(cfg.Language, profile.Accent)
	if cfg.UseElevenLabs {
		a.speaker = tts.NewElevenLabsSpeaker(cfg, profile, fallback)
	} else {
		a.speaker = fallback
	}

	a.mic = audio.NewMicSource(cfg.SampleRate, cfg.Channels, cfg.ChunkSize)
	queue := audio.NewFrameQueue(cfg.QueueDepth)

	classifier := wakeword.NewEnvelopeClassifier(profile.WakeWord, cfg.SampleRate, cfg.ChunkSize)
	a.gate = wakeword.NewGate(classifier, wakeword.Config{
		VADThreshold:   float64(registry.VADThreshold()),
		ScoreThreshold: cfg.WakeScoreThreshold,
		Hangover:       cfg.Hangover(),
		LevelEvery:     time.Duration(cfg.LevelEmitMs) * time.Millisecond,
		PrintLevel:     cfg.PrintAudioLevel,
	}, func(level float64) {
		// Straight to the dashboard hub: level samples are too chatty
		// for the log and LED sinks on the bus.
		a.hub.Notify(events.Payload{
			Event:  events.AudioLevel,
			Detail: strconv.Itoa(int(level)),
		})
	})

	utterances := listener.New(cfg,
		func() (audio.Source, error) {
			return audio.NewMicSource(cfg.SampleRate, cfg.Channels, cfg.ChunkSize), nil
		},
		listener.NewDeepgramTranscriber(cfg),
		func() float64 { return a.gate.Threshold() },
	)

	requestRestart := func(key string) {
		select {
		case restart <- key:
		default:
		}
	}

	brain := llm.NewChatClient(cfg, profile)
	a.controller = session.NewController(session.Deps{
		Config:    cfg,
		Registry:  registry,
		Listener:  utterances,
		Brain:     brain,
		Speaker:   a.speaker,
		Sounds:    soundAdapter{a.sounds},
		Music:     music,
		Jobs:      a.scheduler,
		Log:       a.log,
		Bus:       a.bus,
		ReopenMic: a.reopenMic,
		Restart:   requestRestart,
	})

	a.bridge = pipeline.NewBridge(a.mic, queue, a.gate, a.controller.HandleWake, &resilience.RetryConfig{
		MaxAttempts:       cfg.ReconnectMaxAttempts,
		InitialBackoff:    time.Duration(cfg.ReconnectBackoff) * time.Millisecond,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2,
	})
	a.controller.AttachDetector(a.bridge)

	a.server = control.NewServer(cfg, registry, a.controller, a.log, a.hub,
		func(threshold int) { a.gate.SetThreshold(float64(threshold)) },
		requestRestart,
		readinessChecks(cfg),
	)

	return a
}

// reopenMic reinitializes the wake-word capture stream after a session,
// retrying with backoff so a briefly busy device does not strand the
// assistant deaf.
func (a *app) reopenMic() error {
	a.bus.Notify(events.Connected, "")
	return resilience.Retry(context.Background(), a.mic.Reopen, &resilience.RetryConfig{
		MaxAttempts:       a.cfg.RetryMaxAttempts,
		InitialBackoff:    time.Duration(a.cfg.RetryInitialBackoff) * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2,
	}, nil)
}

func (a *app) start(logger zerolog.Logger) <-chan error {
	go func() {
		if err := a.server.Start(); err != nil {
			logger.Error().Err(err).Msg("Control server stopped")
		}
	}()

	// Startup announcement, then hand the mic to the pipeline.
	a.bus.Notify(events.VoiceStarted, "")
	if a.cfg.UseElevenLabs {
		a.sounds.Play("ready")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := a.speaker.Speak(ctx, fmt.Sprintf("%s ready!", a.profile.Name)); err != nil {
			logger.Warn().Err(err).Msg("Ready announcement failed")
		}
		cancel()
	}
	a.bus.Notify(events.VoiceStopped, "")
	a.bus.Notify(events.Running, a.profile.Name)
	logger.Info().Str("wake_word", a.profile.WakeWord).Msg("Listening for wake word")

	done := make(chan error, 1)
	go func() {
		done <- a.bridge.Run(context.Background())
	}()
	return done
}

func (a *app) stop(logger zerolog.Logger, goodbye bool) {
	a.bridge.Shutdown()
	a.scheduler.DeleteAll()

	if goodbye {
		a.music.Stop()
		a.bus.Notify(events.Off, "")
		a.sounds.Play("goodbye")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Stop(ctx); err != nil {
		logger.Warn().Err(err).Msg("Control server shutdown failed")
	}
}

// soundAdapter narrows the sound player to the session's interface.
type soundAdapter struct {
	player *soundfx.Player
}

func (s soundAdapter) Play(name string) { s.player.Play(name) }
func (s soundAdapter) Stop()            { s.player.Stop() }

func (s soundAdapter) PlayLoop(name string) session.Stopper {
	h := s.player.PlayLoop(name)
	if h == nil {
		return nil
	}
	return h
}

// readinessChecks validates that each external capability is
// constructible from config without spending API calls.
func readinessChecks(cfg *config.Config) map[string]observability.HealthCheckFunc {
	return map[string]observability.HealthCheckFunc{
		"deepgram": func(ctx context.Context) (bool, error) {
			if cfg.DeepgramAPIKey == "" {
				return false, fmt.Errorf("missing api key")
			}
			return true, nil
		},
		"backend": func(ctx context.Context) (bool, error) {
			if cfg.UseGroq && cfg.GroqKey == "" {
				return false, fmt.Errorf("missing groq key")
			}
			if !cfg.UseGroq && cfg.OpenAIKey == "" {
				return false, fmt.Errorf("missing openai key")
			}
			return true, nil
		},
		"tts": func(ctx context.Context) (bool, error) {
			if cfg.UseElevenLabs && cfg.ElevenLabsKey == "" {
				return false, fmt.Errorf("missing elevenlabs key")
			}
			return true, nil
		},
		"internet": func(ctx context.Context) (bool, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodHead, "https://www.google.com", nil)
			if err != nil {
				return false, err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return false, err
			}
			resp.Body.Close()
			return true, nil
		},
	}
}
