package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SchedulerRecorder observes sub-agent scheduling.
type SchedulerRecorder interface {
	// TaskStarted is called once a task holds its provider permit.
	TaskStarted(provider string, permitWait time.Duration)
	// TaskFinished is called after a task's loop ends and its permit is released.
	TaskFinished(provider, outcome string, duration time.Duration)
	// Fallback is called when a task runs on the default provider instead of its tier.
	Fallback(requestedTier, provider string)
}

type nopScheduler struct{}

// NopScheduler returns a SchedulerRecorder that records nothing.
func NopScheduler() SchedulerRecorder { return nopScheduler{} }

func (nopScheduler) TaskStarted(string, time.Duration)          {}
func (nopScheduler) TaskFinished(string, string, time.Duration) {}
func (nopScheduler) Fallback(string, string)                    {}

// PrometheusScheduler implements SchedulerRecorder with Prometheus metrics.
type PrometheusScheduler struct {
	running      *prometheus.GaugeVec
	finished     *prometheus.CounterVec
	fallbacks    *prometheus.CounterVec
	permitWait   *prometheus.HistogramVec
	taskDuration *prometheus.HistogramVec
}

// NewPrometheusScheduler registers scheduler metrics with reg. A nil reg uses
// the default registerer.
func NewPrometheusScheduler(reg prometheus.Registerer) *PrometheusScheduler {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &PrometheusScheduler{
		running: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ganesha_subagents_running",
			Help: "Sub-agents currently holding a provider permit",
		}, []string{"provider"}),
		finished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ganesha_subagents_finished_total",
			Help: "Sub-agent tasks finished by provider and outcome",
		}, []string{"provider", "outcome"}),
		fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ganesha_provider_fallbacks_total",
			Help: "Tasks that ran on the default provider instead of their requested tier",
		}, []string{"requested_tier", "provider"}),
		permitWait: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ganesha_permit_wait_seconds",
			Help:    "Time spent waiting for a provider concurrency permit",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		taskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ganesha_subagent_duration_seconds",
			Help:    "Wall-clock duration of sub-agent execution loops",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"provider"}),
	}
}

// TaskStarted implements SchedulerRecorder.
func (p *PrometheusScheduler) TaskStarted(provider string, permitWait time.Duration) {
	p.running.WithLabelValues(provider).Inc()
	p.permitWait.WithLabelValues(provider).Observe(permitWait.Seconds())
}

// TaskFinished implements SchedulerRecorder.
func (p *PrometheusScheduler) TaskFinished(provider, outcome string, duration time.Duration) {
	p.running.WithLabelValues(provider).Dec()
	p.finished.WithLabelValues(provider, outcome).Inc()
	p.taskDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// Fallback implements SchedulerRecorder.
func (p *PrometheusScheduler) Fallback(requestedTier, provider string) {
	p.fallbacks.WithLabelValues(requestedTier, provider).Inc()
}
