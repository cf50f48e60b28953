// Package metrics exposes session activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/muurk/airtouch/internal/session"
)

const namespace = "airtouch"

// NewRegistry returns a registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the scrape handler for reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// SessionMetrics records session events. It implements session.Recorder.
type SessionMetrics struct {
	Frames          *prometheus.CounterVec // labels: result=ok|sync|checksum|...
	Messages        *prometheus.CounterVec // labels: kind
	Reconnects      prometheus.Counter
	State           prometheus.Gauge       // numeric session.State
	UnitCount       *prometheus.GaugeVec   // labels: kind=ac|group
	AbilityRequests *prometheus.CounterVec // labels: result
}

var _ session.Recorder = (*SessionMetrics)(nil)

// NewSessionMetrics registers the session metrics on reg.
func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	m := &SessionMetrics{
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames read from the gateway, by result.",
		}, []string{"result"}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Decoded gateway messages, by kind.",
		}, []string{"kind"}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Connections lost and re-established in the background.",
		}),
		State: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "Transport state: 0 disconnected, 1 connecting, 2 streaming, 3 reconnecting.",
		}),
		UnitCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "units",
			Help:      "Units known to the session, by kind.",
		}, []string{"kind"}),
		AbilityRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ability_requests_total",
			Help:      "AC ability exchanges, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.Frames, m.Messages, m.Reconnects, m.State, m.UnitCount, m.AbilityRequests)
	return m
}

func (m *SessionMetrics) FrameReceived(result string) { m.Frames.WithLabelValues(result).Inc() }

func (m *SessionMetrics) MessageDecoded(kind string) { m.Messages.WithLabelValues(kind).Inc() }

func (m *SessionMetrics) Reconnected() { m.Reconnects.Inc() }

func (m *SessionMetrics) StateChanged(s session.State) { m.State.Set(float64(s)) }

func (m *SessionMetrics) Units(kind string, n int) { m.UnitCount.WithLabelValues(kind).Set(float64(n)) }

func (m *SessionMetrics) AbilityRequest(result string) {
	m.AbilityRequests.WithLabelValues(result).Inc()
}
