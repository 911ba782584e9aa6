package events

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/voxhome/assistant/internal/observability"
)

// Bus fans events out to registered sinks. Delivery is synchronous and
// in registration order; sinks that may stall must buffer internally.
type Bus struct {
	mu     sync.RWMutex
	sinks  []Sink
	logger zerolog.Logger
}

// NewBus returns a bus with no sinks attached.
func NewBus() *Bus {
	return &Bus{logger: observability.ComponentLogger("events")}
}

// Subscribe attaches a sink. Not safe to call concurrently with itself
// from multiple goroutines during steady state; wiring happens at boot.
func (b *Bus) Subscribe(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, s)
}

// Notify delivers the event to every sink. A panicking sink is logged
// and skipped so one bad consumer cannot take the pipeline down.
func (b *Bus) Notify(event Event, detail string) {
	p := Payload{Event: event, Detail: detail}

	b.mu.RLock()
	sinks := b.sinks
	b.mu.RUnlock()

	for _, s := range sinks {
		b.deliver(s, p)
	}
}

func (b *Bus) deliver(s Sink, p Payload) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Interface("panic", r).
				Str("event", string(p.Event)).
				Msg("Event sink panicked")
		}
	}()
	s.Notify(p)
}
