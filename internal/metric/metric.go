// Package metric provides Prometheus metrics for the call client and a small
// debug HTTP server exposing them.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"randomvoice/native/internal/domain"
)

// Metrics holds the registered collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	stateTransitions *prometheus.CounterVec
	signalMessages   *prometheus.CounterVec
	staleNegotiation prometheus.Counter
	peerSessions     prometheus.Gauge
	peerSessionsOpen prometheus.Counter
	mediaReleases    prometheus.Counter
	playbackBlocked  prometheus.Counter
	connectivityLost prometheus.Counter
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "call_state_transitions_total",
			Help: "Call state transitions by target state.",
		}, []string{"state"}),
		signalMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signaling_messages_total",
			Help: "Signaling messages by direction and type.",
		}, []string{"direction", "type"}), // direction: "inbound" or "outbound"
		staleNegotiation: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stale_negotiation_total",
			Help: "Negotiation messages ignored because they no longer applied.",
		}),
		peerSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "peer_sessions",
			Help: "Current number of live peer sessions.",
		}),
		peerSessionsOpen: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "peer_sessions_opened_total",
			Help: "Peer sessions created.",
		}),
		mediaReleases: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "local_media_releases_total",
			Help: "Local capture streams released.",
		}),
		playbackBlocked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "playback_blocked_total",
			Help: "Remote streams whose playback could not start.",
		}),
		connectivityLost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "connectivity_lost_total",
			Help: "Peer connectivity failures and disconnects.",
		}),
	}

	m.registry.MustRegister(
		m.stateTransitions,
		m.signalMessages,
		m.staleNegotiation,
		m.peerSessions,
		m.peerSessionsOpen,
		m.mediaReleases,
		m.playbackBlocked,
		m.connectivityLost,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveState(s domain.CallState) {
	if m == nil {
		return
	}
	m.stateTransitions.WithLabelValues(s.String()).Inc()
}

func (m *Metrics) ObserveMessage(outbound bool, t domain.MessageType) {
	if m == nil {
		return
	}
	direction := "inbound"
	if outbound {
		direction = "outbound"
	}
	m.signalMessages.WithLabelValues(direction, string(t)).Inc()
}

func (m *Metrics) StaleNegotiation() {
	if m == nil {
		return
	}
	m.staleNegotiation.Inc()
}

func (m *Metrics) PeerOpened() {
	if m == nil {
		return
	}
	m.peerSessionsOpen.Inc()
	m.peerSessions.Inc()
}

func (m *Metrics) PeerClosed() {
	if m == nil {
		return
	}
	m.peerSessions.Dec()
}

func (m *Metrics) MediaReleased() {
	if m == nil {
		return
	}
	m.mediaReleases.Inc()
}

func (m *Metrics) PlaybackBlocked() {
	if m == nil {
		return
	}
	m.playbackBlocked.Inc()
}

func (m *Metrics) ConnectivityLost() {
	if m == nil {
		return
	}
	m.connectivityLost.Inc()
}
