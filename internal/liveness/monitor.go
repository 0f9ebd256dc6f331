// Package liveness runs the background sweep that evicts plugin sessions
// the coordinator hasn't heard from recently, grounded on the ticker-driven
// background task idiom the coordinator's daemon uses for its own
// housekeeping loops.
package liveness

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jLSumner/apollo/internal/logring"
	"github.com/jLSumner/apollo/internal/session"
)

// sessionsEvicted counts sessions the sweep has dropped for going idle,
// distinct from rpcserver's gauge of currently active sessions.
var sessionsEvicted = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "apollo_sessions_evicted_total",
	Help: "Sessions evicted by the liveness sweep for exceeding the idle timeout.",
})

func init() {
	prometheus.MustRegister(sessionsEvicted)
}

const (
	sweepInterval = 5 * time.Second
	idleTimeout   = 15 * time.Second
)

// Monitor periodically sweeps a session.Registry and removes sessions that
// have gone idle past idleTimeout.
type Monitor struct {
	sessions *session.Registry
}

// New builds a Monitor over the given registry.
func New(sessions *session.Registry) *Monitor {
	return &Monitor{sessions: sessions}
}

// Run blocks, sweeping every sweepInterval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Monitor) sweep() {
	for _, sess := range m.sessions.Snapshot() {
		if sess.IdleSince() > idleTimeout {
			logring.Infof("[LIVENESS] evicting %s, idle since %s", sess.EntityID, sess.IdleSince())
			m.sessions.Remove(sess.Token)
			sessionsEvicted.Inc()
		}
	}
}
