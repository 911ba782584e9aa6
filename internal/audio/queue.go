package audio

import (
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Push and Pop after Close.
var ErrQueueClosed = errors.New("audio: frame queue closed")

// FrameQueue is a bounded FIFO of audio frames with an explicit pause gate.
// While paused, Push blocks the producer before it can enqueue anything, so
// no stale audio accumulates during an active session; frames already queued
// remain poppable. This replaces polling a shared "awake" flag.
type FrameQueue struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond
	frames   []Frame
	capacity int
	paused   bool
	closed   bool
}

// NewFrameQueue creates a queue holding at most capacity frames.
func NewFrameQueue(capacity int) *FrameQueue {
	if capacity <= 0 {
		capacity = 1
	}
	q := &FrameQueue{capacity: capacity}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Push enqueues a frame, blocking while the queue is full or paused.
// Returns ErrQueueClosed once the queue has been closed.
func (q *FrameQueue) Push(frame Frame) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for (len(q.frames) >= q.capacity || q.paused) && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return ErrQueueClosed
	}

	q.frames = append(q.frames, frame)
	q.notEmpty.Signal()
	return nil
}

// Pop dequeues the oldest frame, blocking while the queue is empty.
// Returns ErrQueueClosed once the queue is closed and drained.
func (q *FrameQueue) Pop() (Frame, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.frames) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if len(q.frames) == 0 {
		return nil, ErrQueueClosed
	}

	frame := q.frames[0]
	q.frames = q.frames[1:]
	q.notFull.Signal()
	return frame, nil
}

// Pause stops the producer side. Push calls block until Resume.
func (q *FrameQueue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
}

// Resume reopens the producer side and discards any frames that were queued
// before the pause; they predate the session that just ran.
func (q *FrameQueue) Resume() {
	q.mu.Lock()
	q.paused = false
	q.frames = q.frames[:0]
	q.notFull.Broadcast()
	q.mu.Unlock()
}

// Paused reports whether the producer side is currently gated.
func (q *FrameQueue) Paused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

// Len returns the number of queued frames.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Close wakes all blocked producers and consumers. Idempotent.
func (q *FrameQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.notFull.Broadcast()
	q.notEmpty.Broadcast()
	q.mu.Unlock()
}
