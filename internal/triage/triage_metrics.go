package triage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	SessionsCreated   prometheus.Counter
	SessionsFinalized *prometheus.CounterVec
	SessionTurns      prometheus.Histogram
	LLMCallsTotal     prometheus.Counter
	LLMTokensIn       prometheus.Counter
	LLMTokensOut      prometheus.Counter
	LLMDuration       prometheus.Histogram
	RetrievalsTotal   *prometheus.CounterVec
	RetrievalHits     prometheus.Histogram
	AnalysisFailures  *prometheus.CounterVec
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "acuity_sessions_created_total",
			Help: "Total triage sessions created.",
		}),
		SessionsFinalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acuity_sessions_finalized_total",
			Help: "Total finalized sessions by urgency level and whether the turn ceiling forced completion.",
		}, []string{"urgency", "forced"}),
		SessionTurns: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "acuity_session_turns",
			Help:    "User turns per finalized session.",
			Buckets: prometheus.LinearBuckets(1, 1, 10), // 1 .. 10
		}),
		LLMCallsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "acuity_llm_calls_total",
			Help: "Total LLM provider calls.",
		}),
		LLMTokensIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "acuity_llm_tokens_input_total",
			Help: "Total LLM input tokens consumed.",
		}),
		LLMTokensOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "acuity_llm_tokens_output_total",
			Help: "Total LLM output tokens consumed.",
		}),
		LLMDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "acuity_llm_call_duration_seconds",
			Help:    "Duration of individual LLM calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s .. ~64s
		}),
		RetrievalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acuity_retrievals_total",
			Help: "Total retrieval passes by outcome.",
		}, []string{"outcome"}),
		RetrievalHits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "acuity_retrieval_hits",
			Help:    "Chunks returned per retrieval pass.",
			Buckets: prometheus.LinearBuckets(0, 1, 11), // 0 .. 10
		}),
		AnalysisFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acuity_analysis_failures_total",
			Help: "Completion analysis failures by kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.SessionsCreated,
		m.SessionsFinalized,
		m.SessionTurns,
		m.LLMCallsTotal,
		m.LLMTokensIn,
		m.LLMTokensOut,
		m.LLMDuration,
		m.RetrievalsTotal,
		m.RetrievalHits,
		m.AnalysisFailures,
	)

	return m
}

// Hooks returns a Hooks that increments the corresponding metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnSessionCreated: func() {
			m.SessionsCreated.Inc()
		},
		OnSessionFinalized: func(level UrgencyLevel, userTurns int, forced bool) {
			f := "false"
			if forced {
				f = "true"
			}
			m.SessionsFinalized.WithLabelValues(string(level), f).Inc()
			m.SessionTurns.Observe(float64(userTurns))
		},
		OnLLMCall: func(inputTokens, outputTokens int, seconds float64) {
			m.LLMCallsTotal.Inc()
			m.LLMTokensIn.Add(float64(inputTokens))
			m.LLMTokensOut.Add(float64(outputTokens))
			m.LLMDuration.Observe(seconds)
		},
		OnRetrieval: func(hits int, degraded bool) {
			outcome := "ok"
			if degraded {
				outcome = "empty"
			}
			m.RetrievalsTotal.WithLabelValues(outcome).Inc()
			m.RetrievalHits.Observe(float64(hits))
		},
		OnAnalysisFailure: func() {
			m.AnalysisFailures.WithLabelValues("provider").Inc()
		},
		OnAnalysisParseFailure: func() {
			m.AnalysisFailures.WithLabelValues("parse").Inc()
		},
	}
}
