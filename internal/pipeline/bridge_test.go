package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/voxhome/assistant/internal/audio"
	"github.com/voxhome/assistant/internal/resilience"
	"github.com/voxhome/assistant/internal/wakeword"
)

type readResult struct {
	frame audio.Frame
	err   error
}

// feedSource hands out results pushed through feed; while the feed is
// empty it emits quiet frames, like an open mic in a silent room.
// reopenErrs scripts consecutive Reopen failures.
type feedSource struct {
	feed chan readResult

	mu         sync.Mutex
	opens      int
	reopens    int
	closes     int
	reopenErrs []error
}

func newFeedSource() *feedSource {
	return &feedSource{feed: make(chan readResult, 16)}
}

func (s *feedSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens++
	return nil
}

func (s *feedSource) Read() (audio.Frame, error) {
	select {
	case r := <-s.feed:
		return r.frame, r.err
	default:
		time.Sleep(2 * time.Millisecond)
		return quiet(), nil
	}
}

func (s *feedSource) Reopen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reopens++
	if len(s.reopenErrs) > 0 {
		err := s.reopenErrs[0]
		s.reopenErrs = s.reopenErrs[1:]
		return err
	}
	return nil
}

func (s *feedSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *feedSource) SampleRate() int { return 16000 }

func (s *feedSource) counts() (opens, reopens, closes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens, s.reopens, s.closes
}

// wakeOnLoud fires whenever the frame carries any energy.
type wakeOnLoud struct{}

func (wakeOnLoud) Predict(frame audio.Frame) (map[string]float64, error) {
	if frame.Level() > 0 {
		return map[string]float64{"wake": 0.99}, nil
	}
	return map[string]float64{"wake": 0}, nil
}

func testGate() *wakeword.Gate {
	return wakeword.NewGate(wakeOnLoud{}, wakeword.Config{
		VADThreshold:   10,
		ScoreThreshold: 0.5,
		Hangover:       750 * time.Millisecond,
		LevelEvery:     time.Hour, // keep telemetry out of the way
	}, nil)
}

// fastReconnect keeps backoff waits out of the tests' way.
func fastReconnect(attempts int) *resilience.RetryConfig {
	return &resilience.RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        4 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

func loud() audio.Frame  { return audio.Frame{8000, -8000, 8000, -8000} }
func quiet() audio.Frame { return audio.Frame{0, 0, 0, 0} }

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for " + what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWakePausesQueueAndInvokesHandler(t *testing.T) {
	source := newFeedSource()
	queue := audio.NewFrameQueue(8)

	var mu sync.Mutex
	wakes := 0
	b := NewBridge(source, queue, testGate(), func(ctx context.Context) {
		mu.Lock()
		wakes++
		mu.Unlock()
	}, nil)

	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background()) }()

	source.feed <- readResult{frame: loud()}
	waitFor(t, "wake handler", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return wakes == 1
	})
	if !queue.Paused() {
		t.Error("queue not paused after wake")
	}

	b.Shutdown()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
}

func TestClosedStreamReopensInPlace(t *testing.T) {
	source := newFeedSource()
	queue := audio.NewFrameQueue(8)
	b := NewBridge(source, queue, testGate(), func(ctx context.Context) {}, nil)

	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background()) }()

	source.feed <- readResult{err: audio.ErrStreamClosed}
	waitFor(t, "stream reopen", func() bool {
		_, reopens, _ := source.counts()
		return reopens == 1
	})

	b.Shutdown()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v, want nil after in-place reopen", err)
	}
}

func TestReopenBacksOffUntilSuccess(t *testing.T) {
	source := newFeedSource()
	source.reopenErrs = []error{errors.New("device busy"), errors.New("device busy")}
	queue := audio.NewFrameQueue(8)
	b := NewBridge(source, queue, testGate(), func(ctx context.Context) {}, fastReconnect(5))

	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background()) }()

	source.feed <- readResult{err: audio.ErrStreamClosed}
	waitFor(t, "third reopen attempt", func() bool {
		_, reopens, _ := source.counts()
		return reopens == 3
	})

	b.Shutdown()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v, want nil after eventual reopen", err)
	}
}

func TestReopenExhaustionSurfacesThroughRun(t *testing.T) {
	reopenErr := errors.New("device gone")
	source := newFeedSource()
	source.reopenErrs = []error{reopenErr, reopenErr}
	queue := audio.NewFrameQueue(8)
	b := NewBridge(source, queue, testGate(), func(ctx context.Context) {}, fastReconnect(2))

	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background()) }()

	source.feed <- readResult{err: audio.ErrStreamClosed}
	waitFor(t, "producer failure", func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.prodErr != nil
	})

	b.Shutdown()
	if err := <-done; !errors.Is(err, reopenErr) {
		t.Errorf("Run returned %v, want %v", err, reopenErr)
	}
}

func TestFatalReadErrorSurfacesThroughRun(t *testing.T) {
	readErr := errors.New("device unplugged")
	source := newFeedSource()
	queue := audio.NewFrameQueue(8)
	b := NewBridge(source, queue, testGate(), func(ctx context.Context) {}, nil)

	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background()) }()

	source.feed <- readResult{err: readErr}
	waitFor(t, "producer failure", func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.prodErr != nil
	})

	b.Shutdown()
	if err := <-done; !errors.Is(err, readErr) {
		t.Errorf("Run returned %v, want %v", err, readErr)
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	source := newFeedSource()
	queue := audio.NewFrameQueue(8)
	b := NewBridge(source, queue, testGate(), func(ctx context.Context) {}, nil)

	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background()) }()

	b.Shutdown()
	b.Shutdown()
	b.Shutdown()
	<-done

	opens, _, closes := source.counts()
	if opens != 1 {
		t.Errorf("source opened %d times, want 1", opens)
	}
	if closes != 1 {
		t.Errorf("source closed %d times, want exactly 1", closes)
	}
}

func TestHandlerPanicDoesNotKillConsumer(t *testing.T) {
	source := newFeedSource()
	queue := audio.NewFrameQueue(8)

	var mu sync.Mutex
	wakes := 0
	b := NewBridge(source, queue, testGate(), func(ctx context.Context) {
		mu.Lock()
		wakes++
		n := wakes
		mu.Unlock()
		if n == 1 {
			panic("session blew up")
		}
	}, nil)

	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background()) }()

	source.feed <- readResult{frame: loud()}
	waitFor(t, "first wake", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return wakes == 1
	})

	// The recovery path must resume the pipeline and re-arm the gate, so
	// a later loud frame produces a second wake.
	waitFor(t, "pipeline resume", func() bool { return !queue.Paused() })
	source.feed <- readResult{frame: loud()}
	waitFor(t, "second wake after panic", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return wakes == 2
	})

	b.Shutdown()
	<-done
}

// panicThenWake blows up on its first prediction, then behaves like
// wakeOnLoud. The panic lands inside Gate.Score, i.e. the scoring path
// rather than the session handler.
type panicThenWake struct{ calls int }

func (p *panicThenWake) Predict(frame audio.Frame) (map[string]float64, error) {
	p.calls++
	if p.calls == 1 {
		panic("model blew up")
	}
	if frame.Level() > 0 {
		return map[string]float64{"wake": 0.99}, nil
	}
	return map[string]float64{"wake": 0}, nil
}

func TestScoringPanicReinitializesMic(t *testing.T) {
	source := newFeedSource()
	queue := audio.NewFrameQueue(8)
	gate := wakeword.NewGate(&panicThenWake{}, wakeword.Config{
		VADThreshold:   10,
		ScoreThreshold: 0.5,
		Hangover:       750 * time.Millisecond,
		LevelEvery:     time.Hour,
	}, nil)

	var mu sync.Mutex
	wakes := 0
	b := NewBridge(source, queue, gate, func(ctx context.Context) {
		mu.Lock()
		wakes++
		mu.Unlock()
	}, fastReconnect(3))

	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background()) }()

	// First loud frame panics inside the classifier; recovery must force
	// a stream reinitialization, not just keep looping.
	source.feed <- readResult{frame: loud()}
	waitFor(t, "mic reinit after panic", func() bool {
		_, reopens, _ := source.counts()
		return reopens >= 1
	})

	source.feed <- readResult{frame: loud()}
	waitFor(t, "wake after recovery", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return wakes == 1
	})

	b.Shutdown()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
}

// Resume is called from session resets running on whatever goroutine
// finished the session, including HTTP handlers, while the consumer may
// still be scoring queued frames. All gate and classifier mutation has
// to stay on the consumer; this exercises the handoff under the race
// detector with the stateful production classifier.
func TestResumeWhileConsumerScoring(t *testing.T) {
	source := newFeedSource()
	queue := audio.NewFrameQueue(8)
	classifier := wakeword.NewEnvelopeClassifier("jarvis", 16000, 4)
	gate := wakeword.NewGate(classifier, wakeword.Config{
		VADThreshold:   10,
		ScoreThreshold: 0.99,
		Hangover:       750 * time.Millisecond,
		LevelEvery:     time.Hour,
	}, nil)
	b := NewBridge(source, queue, gate, func(ctx context.Context) {}, nil)

	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background()) }()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				b.Resume()
			}
		}()
	}
	for i := 0; i < 50; i++ {
		source.feed <- readResult{frame: loud()}
	}
	wg.Wait()

	b.Shutdown()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
}
