// Package session coordinates one voice interaction at a time: wake,
// listen, transcribe, dispatch, speak, reset.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxhome/assistant/internal/audio"
	"github.com/voxhome/assistant/internal/command"
	"github.com/voxhome/assistant/internal/config"
	"github.com/voxhome/assistant/internal/events"
	"github.com/voxhome/assistant/internal/listener"
	"github.com/voxhome/assistant/internal/llm"
	"github.com/voxhome/assistant/internal/observability"
	"github.com/voxhome/assistant/internal/tts"
)

const greeting = "Hi, how can I help?"

// Stopper stops an in-flight looped sound.
type Stopper interface {
	Stop()
}

// SoundPlayer is the sound-effect capability the session drives.
type SoundPlayer interface {
	Play(name string)
	PlayLoop(name string) Stopper
	Stop()
}

// UtteranceListener captures and transcribes one utterance.
type UtteranceListener interface {
	Listen(ctx context.Context) (audio.Frame, listener.Outcome)
	Transcribe(ctx context.Context, recording audio.Frame) (string, listener.Outcome)
}

// Detector is the pipeline control surface the reset path uses: pause
// stops the wake-word producer, resume restarts it and re-arms the
// gate (priming the classifier with silence first).
type Detector interface {
	Pause()
	Resume()
}

// Music reports and controls background radio playback.
type Music interface {
	Start(url string) error
	Stop()
	Playing() bool
}

// Jobs schedules alarms and timers.
type Jobs interface {
	AddAlarm(hour, minute int) time.Duration
	AddTimer(d time.Duration)
	DeleteAll() int
}

// ChatLog persists the conversation.
type ChatLog interface {
	User(transcript string)
	Assistant(assistantName, text string)
	Append(text string)
	AppendPartial(text string)
}

// MicReopener reinitializes the wake-word capture stream; the reset
// path guarantees exactly one call per session.
type MicReopener func() error

// RestartRequest asks the application loop to rebuild the detector for
// a newly selected assistant.
type RestartRequest func(profileKey string)

// Deps wires the controller's collaborators.
type Deps struct {
	Config    *config.Config
	Registry  *config.Registry
	Listener  UtteranceListener
	Brain     llm.Client
	Speaker   tts.Speaker
	Sounds    SoundPlayer
	Detector  Detector
	Music     Music
	Jobs      Jobs
	Log       ChatLog
	Bus       *events.Bus
	ReopenMic MicReopener
	Restart   RestartRequest
}

// Controller is the session state machine. All voice and control
// surface entries funnel through it, sharing one in-flight guard.
type Controller struct {
	deps   Deps
	logger zerolog.Logger

	processing atomic.Bool
	state      stateVar

	// test seam
	now func() time.Time
}

// NewController builds the controller in the idle state.
func NewController(deps Deps) *Controller {
	return &Controller{
		deps:   deps,
		logger: observability.ComponentLogger("session"),
		now:    time.Now,
	}
}

// AttachDetector binds the pipeline control surface. The bridge is
// constructed after the controller (it needs the wake handler), so the
// binding happens late, before the pipeline runs.
func (c *Controller) AttachDetector(d Detector) {
	c.deps.Detector = d
}

// State returns the current lifecycle position.
func (c *Controller) State() State { return c.state.get() }

// Busy reports whether a session is in flight.
func (c *Controller) Busy() bool { return c.processing.Load() }

// tryBegin claims the in-flight guard. A losing caller gets false and
// must not start a session.
func (c *Controller) tryBegin(origin string) bool {
	if !c.processing.CompareAndSwap(false, true) {
		c.logger.Warn().Str("origin", origin).Msg("A request is already being processed")
		observability.RecordError("session_busy", "session")
		return false
	}
	return true
}

// HandleWake runs a full voice session. The caller (the consumer loop)
// must have paused the pipeline already; the deferred reset decides
// whether it resumes.
func (c *Controller) HandleWake(ctx context.Context) {
	c.runVoiceSession(ctx, "wake", false)
}

// HandleExternalWake services a push-to-talk trigger: the dashboard
// button or a hardware GPIO daemon posting to the control surface. The
// session is the same as a voice wake, but the pipeline is still
// running, so the controller pauses it after winning the guard.
func (c *Controller) HandleExternalWake(ctx context.Context) {
	c.runVoiceSession(ctx, "button", true)
}

func (c *Controller) runVoiceSession(ctx context.Context, origin string, pausePipeline bool) {
	if !c.tryBegin(origin) {
		return
	}

	sessionID := observability.NewSessionID()
	logger := c.logger.With().Str("session_id", sessionID).Logger()
	metrics := observability.NewSessionMetrics(sessionID)
	outcome := "error"
	defer c.reset(logger, metrics, &outcome)

	if pausePipeline {
		c.deps.Detector.Pause()
	}

	c.state.set(StateAwake)
	c.deps.Bus.Notify(events.Awake, "")
	c.deps.Sounds.Play("awake")

	c.state.set(StateListening)
	recording, listenOutcome := c.deps.Listener.Listen(ctx)
	if listenOutcome != listener.Captured {
		logger.Info().Stringer("outcome", listenOutcome).Msg("Nothing captured")
		c.deps.Sounds.Play("error")
		outcome = "empty"
		return
	}

	c.state.set(StateTranscribing)
	loading := c.deps.Sounds.PlayLoop("loading")
	metrics.RecordSTTStart()
	transcript, transOutcome := c.deps.Listener.Transcribe(ctx, recording)
	metrics.RecordSTTEnd(transOutcome != listener.Failed)
	if loading != nil {
		loading.Stop()
	}
	if transOutcome != listener.Captured {
		logger.Info().Stringer("outcome", transOutcome).Msg("No usable transcript")
		c.deps.Sounds.Play("error")
		outcome = "empty"
		return
	}

	c.deps.Bus.Notify(events.Transcript, transcript)
	outcome = c.process(ctx, logger, metrics, transcript, "", "")
}

// ProcessTranscript is the control-surface entry point: dashboard
// submissions and uploaded files share the voice path's guard and
// reset semantics.
func (c *Controller) ProcessTranscript(ctx context.Context, transcript, imageB64, imageName string) error {
	if !c.tryBegin("control") {
		return fmt.Errorf("a request is already being processed")
	}

	sessionID := observability.NewSessionID()
	logger := c.logger.With().Str("session_id", sessionID).Logger()
	metrics := observability.NewSessionMetrics(sessionID)
	outcome := "error"
	defer c.reset(logger, metrics, &outcome)

	c.deps.Detector.Pause()
	outcome = c.process(ctx, logger, metrics, transcript, imageB64, imageName)
	return nil
}

// process dispatches one transcript. The in-flight guard must be held.
func (c *Controller) process(ctx context.Context, logger zerolog.Logger, metrics *observability.SessionMetrics, transcript, imageB64, imageName string) string {
	c.state.set(StateProcessing)
	c.deps.Bus.Notify(events.Processing, transcript)
	logger.Info().Str("transcript", transcript).Msg("Processing request")

	_, profile := c.deps.Registry.Active()

	// Too short to mean anything: greet and bail before dispatch.
	if len(transcript) < 2 && imageB64 == "" {
		c.deps.Sounds.Play("done")
		c.announce(ctx, greeting)
		c.deps.Log.User(transcript)
		c.deps.Log.Assistant(profile.Name, greeting)
		return "greeting"
	}

	kind := command.KindNone
	if imageB64 == "" {
		kind = command.Dispatch(transcript)
	}
	if kind != command.KindNone {
		c.deps.Log.User(transcript)
		c.handleCommand(ctx, logger, kind, transcript, profile)
		return "command"
	}

	return c.handleChat(ctx, logger, metrics, transcript, imageB64, imageName, profile)
}

// handleCommand executes exactly one built-in command branch.
func (c *Controller) handleCommand(ctx context.Context, logger zerolog.Logger, kind command.Kind, transcript string, profile config.Profile) {
	logger.Info().Stringer("command", kind).Msg("Built-in command matched")

	switch kind {
	case command.KindTime:
		c.deps.Sounds.Play("done")
		response := command.FormatTimeOfDay(c.now())
		c.speakAndLog(ctx, profile.Name, response)

	case command.KindSwitchAssistant:
		c.switchAssistant(ctx, transcript, profile)

	case command.KindRadioStart:
		c.deps.Sounds.Play("done")
		if err := c.deps.Music.Start(c.deps.Config.RadioURL); err != nil {
			logger.Warn().Err(err).Msg("Radio failed to start")
			c.speakAndLog(ctx, profile.Name, "I couldn't start the radio.")
			return
		}
		c.deps.Bus.Notify(events.MusicStarted, "")

	case command.KindRadioStop:
		c.deps.Music.Stop()
		c.deps.Bus.Notify(events.MusicStopped, "")
		c.deps.Sounds.Play("done")

	case command.KindDeleteJobs:
		n := c.deps.Jobs.DeleteAll()
		c.deps.Sounds.Play("done")
		if n == 0 {
			c.speakAndLog(ctx, profile.Name, "There were no alarms or timers to delete.")
		} else {
			c.speakAndLog(ctx, profile.Name, "All alarms and timers have been deleted.")
		}

	case command.KindAlarm:
		hour, minute, ok := command.ParseClockTime(transcript)
		if !ok {
			c.speakAndLog(ctx, profile.Name, "I didn't catch the time for the alarm.")
			return
		}
		c.deps.Jobs.AddAlarm(hour, minute)
		c.deps.Sounds.Play("done")
		spoken := command.FormatTimeOfDay(time.Date(0, 1, 1, hour, minute, 0, 0, time.UTC))
		c.speakAndLog(ctx, profile.Name, fmt.Sprintf("Alarm set for %s.", spoken))

	case command.KindTimer:
		seconds, ok := command.ParseDuration(transcript)
		if !ok {
			c.speakAndLog(ctx, profile.Name, "I didn't catch how long the timer should be.")
			return
		}
		c.deps.Jobs.AddTimer(time.Duration(seconds) * time.Second)
		c.deps.Sounds.Play("done")
		c.speakAndLog(ctx, profile.Name, fmt.Sprintf("Timer set for %s.", command.FormatDuration(seconds)))
	}
}

// switchAssistant resolves the requested profile and asks the app loop
// to rebuild the detector around it.
func (c *Controller) switchAssistant(ctx context.Context, transcript string, active config.Profile) {
	key, _, found := c.deps.Registry.ResolveByName(transcript)
	activeKey, _ := c.deps.Registry.Active()
	switch {
	case !found:
		c.speakAndLog(ctx, active.Name, "Assistant not found.")
	case strings.EqualFold(key, activeKey):
		c.speakAndLog(ctx, active.Name, fmt.Sprintf("I'm already %s.", active.Name))
	default:
		if err := c.deps.Registry.SetActive(key); err != nil {
			c.logger.Error().Err(err).Str("assistant", key).Msg("Failed to persist assistant switch")
			c.speakAndLog(ctx, active.Name, "Something went wrong switching assistants.")
			return
		}
		if c.deps.Restart != nil {
			c.deps.Restart(key)
		}
	}
}

// handleChat forwards the transcript to the backend and speaks the
// streamed reply sentence by sentence.
func (c *Controller) handleChat(ctx context.Context, logger zerolog.Logger, metrics *observability.SessionMetrics, transcript, imageB64, imageName string, profile config.Profile) string {
	c.deps.Sounds.Play("done")
	loading := c.deps.Sounds.PlayLoop("loading")
	defer func() {
		if loading != nil {
			loading.Stop()
		}
	}()

	c.deps.Log.Append("")
	c.deps.Log.AppendPartial(fmt.Sprintf("You: %s", transcript))
	if imageName != "" {
		c.deps.Log.AppendPartial(fmt.Sprintf(" %s ", imageName))
	}
	c.deps.Log.Append("")
	c.deps.Log.Append("")

	metrics.RecordLLMStart()
	reply, err := c.deps.Brain.Send(ctx, transcript, imageB64)
	metrics.RecordLLMEnd(err == nil && reply != nil)
	if err != nil || reply == nil {
		if err != nil {
			logger.Error().Err(err).Msg("Backend request failed")
		}
		c.deps.Log.Append(fmt.Sprintf("%s: Something went wrong.", profile.Name))
		c.somethingWentWrong(ctx)
		return "error"
	}

	c.deps.Bus.Notify(events.StreamingStarted, "")
	c.state.set(StateSpeaking)
	c.deps.Bus.Notify(events.VoiceStarted, "")

	first := true
	c.deps.Log.AppendPartial(fmt.Sprintf("%s: ", profile.Name))
	for sentence := range reply.Sentences() {
		if strings.TrimSpace(sentence) == "" {
			continue
		}
		if first {
			if loading != nil {
				loading.Stop()
				loading = nil
			}
			first = false
		}
		c.deps.Log.AppendPartial(sentence)
		c.speak(ctx, sentence)
	}
	c.deps.Log.Append("")
	c.deps.Bus.Notify(events.VoiceStopped, "")
	return "chat"
}

// speak voices one chunk, containing synthesis failures. It emits no
// lifecycle events; a streamed reply speaks many chunks but the voice
// start/stop pair fires once per response.
func (c *Controller) speak(ctx context.Context, text string) {
	if err := c.deps.Speaker.Speak(ctx, text); err != nil {
		c.logger.Warn().Err(err).Msg("Speech failed")
		observability.RecordError("speak", "session")
	}
}

// announce speaks one complete utterance, framing it with the voice
// start/stop pair the way handleChat frames its sentence loop.
func (c *Controller) announce(ctx context.Context, text string) {
	c.state.set(StateSpeaking)
	c.deps.Bus.Notify(events.VoiceStarted, "")
	c.speak(ctx, text)
	c.deps.Bus.Notify(events.VoiceStopped, "")
}

func (c *Controller) speakAndLog(ctx context.Context, assistantName, text string) {
	c.deps.Log.Assistant(assistantName, text)
	c.announce(ctx, text)
}

// somethingWentWrong is the single recovery path for backend failures:
// stop any loop sound, play the error cue, apologize. Mic
// reinitialization is left to the guaranteed reset.
func (c *Controller) somethingWentWrong(ctx context.Context) {
	c.deps.Sounds.Stop()
	c.deps.Sounds.Play("error")
	c.announce(ctx, "Something went wrong!")
}

// reset runs on every session exit path. It contains panics from the
// processing code, clears the guard, re-evaluates music state and
// reinitializes the microphone exactly once.
func (c *Controller) reset(logger zerolog.Logger, metrics *observability.SessionMetrics, outcome *string) {
	if r := recover(); r != nil {
		logger.Error().Interface("panic", r).Msg("Session panicked")
		observability.RecordError("panic", "session")
		c.somethingWentWrong(context.Background())
		*outcome = "error"
	}

	c.deps.Sounds.Stop()

	if err := c.deps.ReopenMic(); err != nil {
		logger.Error().Err(err).Msg("Failed to reinitialize mic stream")
		observability.RecordError("mic_reopen", "session")
	}

	c.processing.Store(false)

	// Music keeps the pipeline paused; the wake loop stays dormant
	// until the radio stops.
	if c.deps.Music != nil && c.deps.Music.Playing() {
		c.state.set(StateMusicPaused)
	} else {
		c.deps.Detector.Resume()
		c.state.set(StateIdle)
		c.deps.Bus.Notify(events.Running, "")
	}

	metrics.RecordEnd(*outcome)
	logger.Info().Str("outcome", *outcome).Msg("Session reset")
}
