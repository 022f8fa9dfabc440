// Package prom implements observability.Observer on top of a Prometheus
// registry.
package prom

import (
	"net/http"
	"time"

	"github.com/floegence/chatrelay/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry returns a fresh Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// Handler returns an HTTP handler exposing the registry in the Prometheus
// text exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Observer exports relay metrics to Prometheus.
type Observer struct {
	sessionsActive   prometheus.Gauge
	handshakesTotal  *prometheus.CounterVec
	messagesRouted   prometheus.Counter
	replayRejections prometheus.Counter
	routingErrors    prometheus.Counter
	closeTotal       *prometheus.CounterVec
	handshakeLatency prometheus.Histogram
}

// New registers relay metrics on reg and returns an Observer backed by them.
func New(reg *prometheus.Registry) *Observer {
	o := &Observer{
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatrelay_sessions_active",
			Help: "Current number of live client sessions.",
		}),
		handshakesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatrelay_handshakes_total",
			Help: "Handshake attempts by result.",
		}, []string{"result"}),
		messagesRouted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_messages_routed_total",
			Help: "Directed messages successfully routed to a recipient.",
		}),
		replayRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_replay_rejections_total",
			Help: "Inbound frames rejected for a non-increasing sequence number.",
		}),
		routingErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_routing_errors_total",
			Help: "send_message requests naming an offline or unknown target_id.",
		}),
		closeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatrelay_session_closes_total",
			Help: "Session closes by reason.",
		}, []string{"reason"}),
		handshakeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chatrelay_handshake_latency_seconds",
			Help:    "Time from accept to a completed handshake.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		o.sessionsActive,
		o.handshakesTotal,
		o.messagesRouted,
		o.replayRejections,
		o.routingErrors,
		o.closeTotal,
		o.handshakeLatency,
	)
	return o
}

func (o *Observer) SessionsActive(n int) { o.sessionsActive.Set(float64(n)) }

func (o *Observer) Handshake(result observability.HandshakeResult) {
	o.handshakesTotal.WithLabelValues(string(result)).Inc()
}

func (o *Observer) MessageRouted() { o.messagesRouted.Inc() }

func (o *Observer) ReplayRejected() { o.replayRejections.Inc() }

func (o *Observer) RoutingError() { o.routingErrors.Inc() }

func (o *Observer) SessionClosed(reason observability.CloseReason) {
	o.closeTotal.WithLabelValues(string(reason)).Inc()
}

func (o *Observer) HandshakeLatency(d time.Duration) {
	o.handshakeLatency.Observe(d.Seconds())
}
