package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder implements Recorder with Prometheus counters and histograms.
type PrometheusRecorder struct {
	requestsTotal   *prometheus.CounterVec
	tokensTotal     *prometheus.CounterVec
	costsTotal      *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the LLM metrics with reg. A nil reg uses the
// default registerer.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ganesha_llm_requests_total",
				Help: "Total number of LLM requests by provider, model, session and status",
			},
			[]string{"provider", "model", "session_id", "status", "error_type"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ganesha_llm_tokens_total",
				Help: "Total number of tokens used in LLM requests",
			},
			[]string{"provider", "model", "session_id", "type"},
		),
		costsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ganesha_llm_costs_total",
				Help: "Total cost in USD for LLM requests",
			},
			[]string{"provider", "model", "session_id"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ganesha_llm_request_duration_seconds",
				Help:    "Duration of LLM requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "model"},
		),
	}
}

// ObserveRequest records metrics for a completed LLM request.
func (p *PrometheusRecorder) ObserveRequest(obs Observation) {
	status := "success"
	if !obs.Success {
		status = "error"
	}
	session := obs.Labels.SessionID

	p.requestsTotal.WithLabelValues(obs.Provider, obs.Model, session, status, obs.ErrorType).Inc()
	if obs.Success {
		p.tokensTotal.WithLabelValues(obs.Provider, obs.Model, session, "prompt").Add(float64(obs.PromptTokens))
		p.tokensTotal.WithLabelValues(obs.Provider, obs.Model, session, "completion").Add(float64(obs.CompletionTokens))
		p.costsTotal.WithLabelValues(obs.Provider, obs.Model, session).Add(obs.Cost)
	}
	p.requestDuration.WithLabelValues(obs.Provider, obs.Model).Observe(obs.Duration.Seconds())
}
