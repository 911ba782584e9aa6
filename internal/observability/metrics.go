package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline metrics
	framesProduced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assistant_frames_produced_total",
		Help: "Total audio frames read from the microphone",
	})

	framesConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assistant_frames_consumed_total",
		Help: "Total audio frames pulled by the wake-word consumer",
	})

	framesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assistant_frames_skipped_total",
		Help: "Frames rejected by the VAD gate without classifier inference",
	})

	audioLevel = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "assistant_audio_level",
		Help: "Mean absolute amplitude of the most recent processed frame",
	})

	wakeEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assistant_wake_events_total",
		Help: "Wake-word detections that started a session",
	})

	micReopens = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assistant_mic_reopens_total",
		Help: "Microphone stream reinitializations",
	})

	// Session metrics
	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assistant_sessions_total",
		Help: "Completed sessions by outcome",
	}, []string{"outcome"}) // outcome: command, chat, greeting, empty, rejected, error

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "assistant_session_duration_seconds",
		Help:    "Duration of a session from wake to reset",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
	})

	// External capability metrics
	sttRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assistant_stt_requests_total",
		Help: "Total transcription requests",
	}, []string{"status"})

	sttLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "assistant_stt_latency_seconds",
		Help:    "Transcription latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	llmRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assistant_llm_requests_total",
		Help: "Total backend chat requests",
	}, []string{"status"})

	llmLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "assistant_llm_latency_seconds",
		Help:    "Backend time to first response in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	ttsRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assistant_tts_requests_total",
		Help: "Total speech synthesis requests",
	}, []string{"status"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assistant_errors_total",
		Help: "Total errors by type and component",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "assistant_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assistant_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// RecordFrameProduced counts a frame read from the microphone.
func RecordFrameProduced() { framesProduced.Inc() }

// RecordFrameConsumed counts a frame pulled by the consumer.
func RecordFrameConsumed() { framesConsumed.Inc() }

// RecordFrameSkipped counts a frame rejected by the VAD gate.
func RecordFrameSkipped() { framesSkipped.Inc() }

// RecordAudioLevel publishes the most recent frame level.
func RecordAudioLevel(level float64) { audioLevel.Set(level) }

// RecordWakeEvent counts a wake-word detection.
func RecordWakeEvent() { wakeEvents.Inc() }

// RecordMicReopen counts a microphone stream reinitialization.
func RecordMicReopen() { micReopens.Inc() }

// RecordError counts an error by type and component.
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// UpdateCircuitBreakerState updates the circuit breaker state gauge.
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments the circuit breaker failure counter.
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}

// SessionMetrics tracks timing for a single wake-to-reset session.
type SessionMetrics struct {
	sessionID    string
	startTime    time.Time
	sttStartTime time.Time
	llmStartTime time.Time
	mu           sync.Mutex
}

// NewSessionMetrics creates a metrics tracker for one session.
func NewSessionMetrics(sessionID string) *SessionMetrics {
	return &SessionMetrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// RecordEnd records the session outcome and duration.
func (m *SessionMetrics) RecordEnd(outcome string) {
	sessionsTotal.WithLabelValues(outcome).Inc()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordSTTStart marks the beginning of transcription.
func (m *SessionMetrics) RecordSTTStart() {
	m.mu.Lock()
	m.sttStartTime = time.Now()
	m.mu.Unlock()
}

// RecordSTTEnd records transcription completion.
func (m *SessionMetrics) RecordSTTEnd(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.sttStartTime.IsZero() {
		sttLatency.Observe(time.Since(m.sttStartTime).Seconds())
	}
	sttRequests.WithLabelValues(statusLabel(success)).Inc()
}

// RecordLLMStart marks the beginning of a backend request.
func (m *SessionMetrics) RecordLLMStart() {
	m.mu.Lock()
	m.llmStartTime = time.Now()
	m.mu.Unlock()
}

// RecordLLMEnd records backend request completion.
func (m *SessionMetrics) RecordLLMEnd(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.llmStartTime.IsZero() {
		llmLatency.Observe(time.Since(m.llmStartTime).Seconds())
	}
	llmRequests.WithLabelValues(statusLabel(success)).Inc()
}

// RecordTTS records a speech synthesis attempt.
func (m *SessionMetrics) RecordTTS(success bool) {
	ttsRequests.WithLabelValues(statusLabel(success)).Inc()
}

// RecordSTTRequest records one transcription request with its latency.
func RecordSTTRequest(success bool, latency time.Duration) {
	sttLatency.Observe(latency.Seconds())
	sttRequests.WithLabelValues(statusLabel(success)).Inc()
}

// RecordLLMRequest records one backend chat request with its time to
// first response.
func RecordLLMRequest(success bool, latency time.Duration) {
	llmLatency.Observe(latency.Seconds())
	llmRequests.WithLabelValues(statusLabel(success)).Inc()
}

// RecordTTSRequest records one speech synthesis attempt.
func RecordTTSRequest(success bool) {
	ttsRequests.WithLabelValues(statusLabel(success)).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
