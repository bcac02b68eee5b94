package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "insight_engine_active_sessions",
		Help: "Number of active meeting sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "insight_engine_sessions_total",
		Help: "Total number of sessions processed",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "insight_engine_session_duration_seconds",
		Help:    "Duration of meeting sessions in seconds",
		Buckets: []float64{60, 300, 600, 1200, 1800, 3600, 7200},
	})

	// Audio / segmentation metrics
	audioBytesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "insight_engine_audio_bytes_total",
		Help: "Total raw audio bytes ingested",
	})

	segmentsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insight_engine_segments_total",
		Help: "Total transcript segments emitted",
	}, []string{"kind"}) // kind: "partial" or "final"

	sttRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insight_engine_stt_requests_total",
		Help: "Total number of STT requests",
	}, []string{"status"})

	sttLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "insight_engine_stt_latency_seconds",
		Help:    "STT transcription latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	// AI pipeline metrics
	screeningRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insight_engine_screening_requests_total",
		Help: "Total screening-tier invocations",
	}, []string{"status"}) // status: success, error, cached, skipped

	analysisRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insight_engine_analysis_requests_total",
		Help: "Total analysis-tier invocations",
	}, []string{"status"})

	llmLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "insight_engine_llm_latency_seconds",
		Help:    "LLM invocation latency in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	}, []string{"role"})

	// Cost metrics
	tokensConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insight_engine_tokens_total",
		Help: "Total LLM tokens consumed",
	}, []string{"tier", "direction"}) // direction: "input" or "output"

	costSpent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "insight_engine_cost_usd_total",
		Help: "Cumulative estimated USD spend across all sessions",
	})

	budgetExceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "insight_engine_budget_exceeded_total",
		Help: "Number of sessions that hit their budget ceiling",
	})

	// Cache metrics
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insight_engine_cache_lookups_total",
		Help: "Response cache lookups",
	}, []string{"result"}) // result: "hit" or "miss"

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insight_engine_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "insight_engine_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insight_engine_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// RecordSessionStart records the start of a meeting session
func RecordSessionStart() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records the end of a meeting session
func RecordSessionEnd(seconds float64) {
	activeSessions.Dec()
	sessionDuration.Observe(seconds)
}

// RecordAudioBytes records raw audio bytes fed into a segmenter
func RecordAudioBytes(n int) {
	audioBytesIngested.Add(float64(n))
}

// RecordSegment records an emitted transcript segment
func RecordSegment(partial bool) {
	kind := "final"
	if partial {
		kind = "partial"
	}
	segmentsFinalized.WithLabelValues(kind).Inc()
}

// RecordSTT records an STT request outcome and latency
func RecordSTT(success bool, seconds float64) {
	status := "success"
	if !success {
		status = "error"
	}
	sttRequests.WithLabelValues(status).Inc()
	if success {
		sttLatency.Observe(seconds)
	}
}

// RecordScreening records a screening-tier outcome
func RecordScreening(status string) {
	screeningRequests.WithLabelValues(status).Inc()
}

// RecordAnalysis records an analysis-tier outcome
func RecordAnalysis(status string) {
	analysisRequests.WithLabelValues(status).Inc()
}

// RecordLLMLatency records LLM invocation latency for a role
func RecordLLMLatency(role string, seconds float64) {
	llmLatency.WithLabelValues(role).Observe(seconds)
}

// RecordTokens records token consumption for a pricing tier
func RecordTokens(tier string, inputTokens, outputTokens int) {
	tokensConsumed.WithLabelValues(tier, "input").Add(float64(inputTokens))
	tokensConsumed.WithLabelValues(tier, "output").Add(float64(outputTokens))
}

// RecordCost records estimated USD spend
func RecordCost(usd float64) {
	costSpent.Add(usd)
}

// RecordBudgetExceeded records a session hitting its budget ceiling
func RecordBudgetExceeded() {
	budgetExceeded.Inc()
}

// RecordCacheLookup records a response cache hit or miss
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(result).Inc()
}

// RecordError records an error by type and component
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
