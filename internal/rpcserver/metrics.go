package rpcserver

import "github.com/prometheus/client_golang/prometheus"

var (
	handshakeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apollo_handshakes_total",
			Help: "Handshake attempts by outcome.",
		},
		[]string{"outcome"},
	)

	statusReportsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "apollo_status_reports_total",
			Help: "Inbound StatusReport frames processed.",
		},
	)

	commandsDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apollo_commands_dispatched_total",
			Help: "Directive-matched commands dispatched, by whether the target queue accepted them.",
		},
		[]string{"outcome"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "apollo_active_sessions",
			Help: "Currently registered plugin sessions.",
		},
	)
)

func init() {
	prometheus.MustRegister(handshakeTotal, statusReportsTotal, commandsDispatchedTotal, activeSessions)
}
