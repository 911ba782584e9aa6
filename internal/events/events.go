package events

// Event identifies a lifecycle moment the assistant announces to its
// listeners (status LEDs, dashboard, logs).
type Event string

const (
	Starting         Event = "starting"          // boot begun
	Running          Event = "running"           // idle, waiting for the wake word
	Awake            Event = "awake"             // wake word accepted, about to listen
	Transcript       Event = "transcript"        // user speech transcribed
	Processing       Event = "processing"        // transcript handed to the brain
	StreamingStarted Event = "streaming_started" // first reply chunk arrived
	VoiceStarted     Event = "voice_started"     // playback of the reply began
	VoiceStopped     Event = "voice_stopped"     // playback finished
	MusicStarted     Event = "music_started"     // radio/music playback began
	MusicStopped     Event = "music_stopped"     // radio/music playback ended
	Connected        Event = "connected"         // external backend reachable
	Disconnected     Event = "disconnected"      // external backend unreachable
	Error            Event = "error"             // a session failed
	Off              Event = "off"               // shutting down
	AudioLevel       Event = "audio_level"       // rate-limited mic level sample
)

// Payload carries an event plus optional free-form detail (a transcript,
// an assistant name, an error message).
type Payload struct {
	Event  Event  `json:"event"`
	Detail string `json:"detail,omitempty"`
}

// Sink receives event notifications. Implementations must not block:
// the bus delivers inline from whichever goroutine raised the event.
type Sink interface {
	Notify(p Payload)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(p Payload)

// Notify implements Sink.
func (f SinkFunc) Notify(p Payload) { f(p) }
