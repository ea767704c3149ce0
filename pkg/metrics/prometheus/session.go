// Package prometheus implements the instrumentation interfaces declared by
// their consuming packages, backed by the process registry in pkg/metrics.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pmpwsk/cocoding/pkg/metrics"
	"github.com/pmpwsk/cocoding/pkg/session"
)

// sessionMetrics is the Prometheus implementation of session.Metrics.
type sessionMetrics struct {
	updatesRelayed   prometheus.Counter
	relayRecipients  prometheus.Histogram
	statesReplaced   prometheus.Counter
	persists         *prometheus.CounterVec
	restores         *prometheus.CounterVec
	liveSessions     prometheus.Gauge
	liveParticipants prometheus.Gauge
}

// NewSessionMetrics creates a Prometheus-backed session.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called); the hub
// and worker treat a nil Metrics as a no-op.
func NewSessionMetrics() session.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &sessionMetrics{
		updatesRelayed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "cocoding_updates_relayed_total",
				Help: "Total number of update fragments relayed between participants",
			},
		),
		relayRecipients: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cocoding_relay_recipients",
				Help:    "Distribution of recipient counts per relayed update",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
			},
		),
		statesReplaced: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "cocoding_states_replaced_total",
				Help: "Total number of full-state compactions pushed by clients",
			},
		),
		persists: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cocoding_session_persists_total",
				Help: "Total number of session persist attempts by outcome",
			},
			[]string{"outcome"}, // "success", "failure"
		),
		restores: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cocoding_version_restores_total",
				Help: "Total number of version restores by outcome",
			},
			[]string{"outcome"}, // "restored", "aborted"
		),
		liveSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "cocoding_live_sessions",
				Help: "Current number of resident file sessions",
			},
		),
		liveParticipants: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "cocoding_participants",
				Help: "Current number of attached participants across all files",
			},
		),
	}
}

func (m *sessionMetrics) RecordUpdateRelayed(recipients int) {
	m.updatesRelayed.Inc()
	m.relayRecipients.Observe(float64(recipients))
}

func (m *sessionMetrics) RecordStateReplaced() {
	m.statesReplaced.Inc()
}

func (m *sessionMetrics) RecordPersist(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.persists.WithLabelValues(outcome).Inc()
}

func (m *sessionMetrics) RecordRestore(aborted bool) {
	outcome := "restored"
	if aborted {
		outcome = "aborted"
	}
	m.restores.WithLabelValues(outcome).Inc()
}

func (m *sessionMetrics) SetLiveSessions(n int) {
	m.liveSessions.Set(float64(n))
}

func (m *sessionMetrics) SetParticipants(n int) {
	m.liveParticipants.Set(float64(n))
}
