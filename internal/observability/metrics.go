package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ActiveSessions     prometheus.Gauge
	SessionEvents      *prometheus.CounterVec
	WSMessages         *prometheus.CounterVec
	Intents            *prometheus.CounterVec
	RetrievalFallbacks *prometheus.CounterVec
	RetrievalCache     *prometheus.CounterVec
	GenerationFailures *prometheus.CounterVec
	IngestedChunks     *prometheus.CounterVec
	TurnLatency        prometheus.Histogram

	stages *turnStageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active chat sessions.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		Intents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intent_total",
			Help:      "Classified queries by intent and deciding stage.",
		}, []string{"intent", "stage"}),
		RetrievalFallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_fallbacks_total",
			Help:      "Retrieval calls that fell back to a weaker result.",
		}, []string{"reason"}),
		RetrievalCache: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_cache_total",
			Help:      "Retrieval cache lookups by outcome.",
		}, []string{"outcome"}),
		GenerationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_failures_total",
			Help:      "Generation backend failures answered with the apology text.",
		}, []string{"backend"}),
		IngestedChunks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_chunks_total",
			Help:      "Policy chunks written to the index by category.",
		}, []string{"category"}),
		TurnLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_latency_ms",
			Help:      "End-to-end latency of one question in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}),
		stages: newTurnStageWindow(256),
	}
}

// ObserveSessionEvent counts a session lifecycle event and refreshes the
// active-session gauge.
func (m *Metrics) ObserveSessionEvent(event string, active int) {
	if m == nil {
		return
	}
	m.SessionEvents.WithLabelValues(event).Inc()
	m.ActiveSessions.Set(float64(active))
}

func (m *Metrics) ObserveWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

func (m *Metrics) ObserveIntent(intent, stage string) {
	if m == nil {
		return
	}
	m.Intents.WithLabelValues(intent, stage).Inc()
}

func (m *Metrics) ObserveRetrievalFallback(reason string) {
	if m == nil {
		return
	}
	m.RetrievalFallbacks.WithLabelValues(reason).Inc()
	m.stages.ObserveIndicator("retrieval_fallback")
}

func (m *Metrics) ObserveRetrievalCache(hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.RetrievalCache.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveGenerationFailure(backend string) {
	if m == nil {
		return
	}
	m.GenerationFailures.WithLabelValues(backend).Inc()
	m.stages.ObserveIndicator("generation_failure")
}

func (m *Metrics) ObserveIngested(category string, chunks int) {
	if m == nil || chunks <= 0 {
		return
	}
	m.IngestedChunks.WithLabelValues(category).Add(float64(chunks))
}

// ObserveStage records one pipeline stage latency for the rolling window.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	ms := float64(d.Microseconds()) / 1000
	m.stages.Observe(stage, ms)
	if stage == StageTurn {
		m.TurnLatency.Observe(ms)
	}
}

func (m *Metrics) SnapshotTurnStages() TurnStageSnapshot {
	if m == nil {
		return TurnStageSnapshot{Stages: []TurnStageStats{}}
	}
	return m.stages.Snapshot()
}

// ResetTurnStages clears the rolling latency window and indicators.
func (m *Metrics) ResetTurnStages() {
	if m == nil {
		return
	}
	m.stages.Reset()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
