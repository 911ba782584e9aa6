// Package pipeline runs the always-on audio loop: a producer feeding
// microphone frames into a bounded queue and a consumer scoring them
// for the wake word.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/voxhome/assistant/internal/audio"
	"github.com/voxhome/assistant/internal/observability"
	"github.com/voxhome/assistant/internal/resilience"
	"github.com/voxhome/assistant/internal/wakeword"
)

// WakeHandler runs a full session when the gate fires. It executes on
// the consumer goroutine; the pipeline is paused for its duration.
type WakeHandler func(ctx context.Context)

// Bridge owns the producer and consumer workers and the shared frame
// queue between them. The gate is owned by the consumer goroutine and
// the source by the producer goroutine; other goroutines ask for gate
// rearms and stream reinitialization through the pending flags instead
// of touching either directly.
type Bridge struct {
	source    audio.Source
	queue     *audio.FrameQueue
	gate      *wakeword.Gate
	onWake    WakeHandler
	reconnect *resilience.RetryConfig
	logger    zerolog.Logger

	running       atomic.Bool
	resumePending atomic.Bool
	reopenPending atomic.Bool
	wg            sync.WaitGroup

	mu      sync.Mutex
	prodErr error

	closeOnce sync.Once
}

// NewBridge assembles the pipeline. The source must not be opened yet.
// reconnect bounds the backoff used when the capture stream has to be
// reinitialized; nil picks the package defaults.
func NewBridge(source audio.Source, queue *audio.FrameQueue, gate *wakeword.Gate, onWake WakeHandler, reconnect *resilience.RetryConfig) *Bridge {
	return &Bridge{
		source:    source,
		queue:     queue,
		gate:      gate,
		onWake:    onWake,
		reconnect: reconnect,
		logger:    observability.ComponentLogger("pipeline"),
	}
}

// Run opens the microphone and blocks until both workers exit.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.source.Open(); err != nil {
		return err
	}
	b.running.Store(true)

	b.wg.Add(2)
	go b.producer()
	go b.consumer(ctx)
	b.wg.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.prodErr
}

// producer reads frames from the mic and pushes them into the queue.
// A closed-stream fault (or a reinit request from the consumer's panic
// recovery) reopens the stream in place with backoff; exhausting the
// reopen attempts ends the worker and is surfaced through Run.
func (b *Bridge) producer() {
	defer b.wg.Done()

	for b.running.Load() {
		if b.reopenPending.CompareAndSwap(true, false) {
			if err := b.reopenSource(); err != nil {
				b.fail(err)
				return
			}
		}

		frame, err := b.source.Read()
		if err != nil {
			if !b.running.Load() {
				return
			}
			if errors.Is(err, audio.ErrStreamClosed) {
				if reopenErr := b.reopenSource(); reopenErr != nil {
					b.fail(reopenErr)
					return
				}
				continue
			}
			b.logger.Error().Err(err).Msg("Mic read failed, producer exiting")
			b.fail(err)
			return
		}

		observability.RecordFrameProduced()
		if err := b.queue.Push(frame); err != nil {
			// queue closed: shutdown in progress
			return
		}
	}
}

// reopenSource reinitializes the capture stream, backing off between
// attempts. Only the producer goroutine calls it; the source stays
// single-owner.
func (b *Bridge) reopenSource() error {
	err := resilience.Retry(context.Background(), b.source.Reopen, b.reconnect, nil)
	if err != nil {
		b.logger.Error().Err(err).Msg("Mic reopen failed, producer exiting")
		return err
	}
	b.logger.Info().Msg("Mic stream reopened")
	return nil
}

// consumer pulls frames and scores them. When the gate fires it pauses
// the queue and hands the consumer goroutine to the session handler;
// the handler's reset path resumes the queue via Pause/Resume.
func (b *Bridge) consumer(ctx context.Context) {
	defer b.wg.Done()

	for b.running.Load() {
		b.runOneFrame(ctx)
	}
}

// runOneFrame isolates one frame's handling so a panic anywhere in the
// scoring or session path never kills the consumer loop. Recovery asks
// the producer to reinitialize the stream and re-arms the gate before
// the loop continues.
func (b *Bridge) runOneFrame(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Msg("Consumer loop recovered")
			observability.RecordError("panic", "pipeline")
			b.reopenPending.Store(true)
			b.Resume()
		}
	}()

	frame, err := b.queue.Pop()
	if err != nil {
		// queue closed: stop spinning
		b.running.Store(false)
		return
	}

	// Pending rearms are serviced here so all gate and classifier
	// mutation stays on this goroutine.
	if b.resumePending.CompareAndSwap(true, false) {
		b.gate.PrimeSilence(sampleRateOf(b.source))
		b.gate.Rearm()
	}
	observability.RecordFrameConsumed()

	woke, _ := b.gate.Score(frame)
	if !woke {
		return
	}

	b.Pause()
	b.onWake(ctx)
}

// Pause stops the producer from feeding new frames. Implements the
// session's detector control surface.
func (b *Bridge) Pause() {
	b.queue.Pause()
}

// Resume discards stale frames and schedules a classifier flush and
// gate rearm. The gate work runs on the consumer goroutine before the
// next frame is scored; Resume itself is safe from any goroutine.
func (b *Bridge) Resume() {
	b.resumePending.Store(true)
	b.queue.Resume()
}

// Shutdown stops both workers, waits for them and then releases the
// microphone. Safe to call more than once.
func (b *Bridge) Shutdown() {
	b.closeOnce.Do(func() {
		b.running.Store(false)
		b.queue.Close()
		b.wg.Wait()
		if err := b.source.Close(); err != nil {
			b.logger.Warn().Err(err).Msg("Mic close failed")
		}
		b.logger.Info().Msg("Pipeline stopped")
	})
}

func (b *Bridge) fail(err error) {
	b.mu.Lock()
	b.prodErr = err
	b.mu.Unlock()
}

// sampleRateOf recovers the configured rate for silence priming.
type rateReporter interface{ SampleRate() int }

func sampleRateOf(s audio.Source) int {
	if r, ok := s.(rateReporter); ok {
		return r.SampleRate()
	}
	return 16000
}
