package wakeword

import (
	"errors"
	"testing"
	"time"

	"github.com/voxhome/assistant/internal/audio"
)

// fakeClassifier returns scripted scores and counts invocations.
type fakeClassifier struct {
	score float64
	err   error
	calls int
}

func (f *fakeClassifier) Predict(frame audio.Frame) (map[string]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return map[string]float64{"hey_jarvis": f.score}, nil
}

func testConfig() Config {
	return Config{
		VADThreshold:   300,
		ScoreThreshold: 0.5,
		Hangover:       750 * time.Millisecond,
		LevelEvery:     100 * time.Millisecond,
	}
}

func loudFrame() audio.Frame  { return audio.Frame{500, -500, 500, -500} }
func quietFrame() audio.Frame { return audio.Frame{10, -10, 10, -10} }

// clock lets tests drive the gate's notion of time.
type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestGate(f *fakeClassifier) (*Gate, *clock) {
	g := NewGate(f, testConfig(), nil)
	c := &clock{t: time.Unix(1000, 0)}
	g.now = c.now
	return g, c
}

func TestQuietFramesSkipClassifier(t *testing.T) {
	f := &fakeClassifier{score: 0.9}
	g, c := newTestGate(f)

	// No above-threshold frame has ever been seen and the zero-valued
	// lastAbove is far in the past, so quiet frames never reach the
	// classifier.
	for i := 0; i < 10; i++ {
		woke, _ := g.Score(quietFrame())
		if woke {
			t.Fatal("quiet frame woke the gate")
		}
		c.advance(80 * time.Millisecond)
	}
	if f.calls != 0 {
		t.Errorf("classifier called %d times for quiet frames, want 0", f.calls)
	}
}

func TestHangoverKeepsQuietFramesAlive(t *testing.T) {
	f := &fakeClassifier{score: 0.1}
	g, c := newTestGate(f)

	g.Score(loudFrame())
	calls := f.calls

	// Within the hangover window quiet frames still get scored.
	c.advance(500 * time.Millisecond)
	g.Score(quietFrame())
	if f.calls != calls+1 {
		t.Error("quiet frame within hangover was not scored")
	}

	// Beyond the window they are skipped again.
	c.advance(400 * time.Millisecond)
	g.Score(quietFrame())
	if f.calls != calls+1 {
		t.Error("quiet frame past hangover was scored")
	}
}

func TestWakeIsEdgeTriggered(t *testing.T) {
	f := &fakeClassifier{score: 0.9}
	g, _ := newTestGate(f)

	woke, score := g.Score(loudFrame())
	if !woke {
		t.Fatalf("expected wake, score=%v", score)
	}

	// Still scoring high, but the gate is disarmed until Rearm.
	woke, _ = g.Score(loudFrame())
	if woke {
		t.Error("gate re-fired while disarmed")
	}

	g.Rearm()
	woke, _ = g.Score(loudFrame())
	if !woke {
		t.Error("gate did not fire after Rearm")
	}
}

func TestLowScoreDoesNotWake(t *testing.T) {
	f := &fakeClassifier{score: 0.49}
	g, _ := newTestGate(f)

	if woke, _ := g.Score(loudFrame()); woke {
		t.Error("score below threshold woke the gate")
	}
}

func TestClassifierErrorIsContained(t *testing.T) {
	f := &fakeClassifier{err: errors.New("model crashed")}
	g, _ := newTestGate(f)

	woke, score := g.Score(loudFrame())
	if woke || score != 0 {
		t.Errorf("Score with failing classifier = (%v, %v), want (false, 0)", woke, score)
	}
	// The gate stays usable afterwards.
	f.err = nil
	f.score = 0.9
	if woke, _ := g.Score(loudFrame()); !woke {
		t.Error("gate did not recover after classifier error")
	}
}

func TestSetThreshold(t *testing.T) {
	f := &fakeClassifier{score: 0.9}
	g, _ := newTestGate(f)

	g.SetThreshold(5)
	if got := g.Threshold(); got != 5 {
		t.Fatalf("Threshold = %v, want 5", got)
	}

	// With the bar lowered, a formerly-quiet frame passes the VAD gate.
	if woke, _ := g.Score(quietFrame()); !woke {
		t.Error("frame above the lowered threshold did not wake")
	}
}
