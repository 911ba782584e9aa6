package session

import "sync/atomic"

// State is the session lifecycle position. Exactly one controller
// exists per running detector, so this is process-global state.
type State int32

const (
	StateIdle State = iota
	StateAwake
	StateMusicPaused
	StateListening
	StateTranscribing
	StateProcessing
	StateSpeaking
)

// String returns the state name for logs and the dashboard.
func (s State) String() string {
	switch s {
	case StateAwake:
		return "awake"
	case StateMusicPaused:
		return "music_paused"
	case StateListening:
		return "listening"
	case StateTranscribing:
		return "transcribing"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	}
	return "idle"
}

// stateVar is an atomically-updated state cell readable from any
// goroutine (control surface, dashboard) while the consumer mutates it.
type stateVar struct {
	v atomic.Int32
}

func (s *stateVar) get() State     { return State(s.v.Load()) }
func (s *stateVar) set(next State) { s.v.Store(int32(next)) }
