package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the console's Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	activePolls  prometheus.Gauge
	jobsFinished *prometheus.CounterVec
	pollErrors   prometheus.Counter
	resolutions  *prometheus.CounterVec
	submissions  *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		activePolls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "console",
			Subsystem: "tracker",
			Name:      "active_polls",
			Help:      "Number of job poll tasks currently running.",
		}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "console",
			Subsystem: "tracker",
			Name:      "jobs_finished_total",
			Help:      "Tracked jobs that reached a terminal status.",
		}, []string{"status"}),
		pollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "console",
			Subsystem: "tracker",
			Name:      "poll_errors_total",
			Help:      "Job status fetches that failed or returned nothing.",
		}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "console",
			Subsystem: "wizard",
			Name:      "resolutions_total",
			Help:      "Dependency resolutions by action and outcome.",
		}, []string{"action", "outcome"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "console",
			Subsystem: "wizard",
			Name:      "submissions_total",
			Help:      "Command submissions by level and outcome.",
		}, []string{"level", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.activePolls, m.jobsFinished, m.pollErrors, m.resolutions, m.submissions)
	}
	return m
}

func (m *Metrics) pollStarted() {
	if m != nil {
		m.activePolls.Inc()
	}
}

func (m *Metrics) pollStopped() {
	if m != nil {
		m.activePolls.Dec()
	}
}

func (m *Metrics) pollFailed() {
	if m != nil {
		m.pollErrors.Inc()
	}
}

func (m *Metrics) jobFinished(status string) {
	if m != nil {
		m.jobsFinished.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) resolved(action, outcome string) {
	if m != nil {
		m.resolutions.WithLabelValues(action, outcome).Inc()
	}
}

func (m *Metrics) submitted(level, outcome string) {
	if m != nil {
		m.submissions.WithLabelValues(level, outcome).Inc()
	}
}
