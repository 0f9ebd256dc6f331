// Package rpcserver implements the CoreConnector gRPC service: plugin
// handshake authentication and the bidirectional status/command stream.
package rpcserver

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jLSumner/apollo/apollopb"
	"github.com/jLSumner/apollo/internal/directive"
	"github.com/jLSumner/apollo/internal/logring"
	"github.com/jLSumner/apollo/internal/session"
	"github.com/jLSumner/apollo/internal/topology"
)

// Server implements apollopb.CoreConnectorServer against the coordinator's
// live topology, directive engine, and session registry. Lock order when a
// single call needs more than one of these is always engine, then
// registry, matching the rest of the coordinator.
type Server struct {
	topo     *topology.Manager
	engine   *directive.Engine
	sessions *session.Registry
}

// New builds a Server over the given managers.
func New(topo *topology.Manager, engine *directive.Engine, sessions *session.Registry) *Server {
	return &Server{topo: topo, engine: engine, sessions: sessions}
}

var _ apollopb.CoreConnectorServer = (*Server)(nil)

// Handshake authenticates a plugin against the topology and, on success,
// opens a new session and returns its token. The entity ID's arity
// determines which auth key is checked: a bare plugin ID (P) authenticates
// at the plugin level; a full P_S_E identifies one entity. Any other arity
// is rejected.
func (s *Server) Handshake(ctx context.Context, req *apollopb.HandshakeRequest) (*apollopb.HandshakeResponse, error) {
	parts := strings.Split(req.EntityID, "_")

	var (
		authKey string
		ok      bool
	)
	switch len(parts) {
	case 1:
		authKey, ok = s.topo.LookupPlugin(parts[0])
	case 3:
		authKey, ok = s.topo.LookupEntity(parts[0], parts[1], parts[2])
	default:
		logring.Warningf("[GRPC] handshake rejected: %q has invalid arity", req.EntityID)
		handshakeTotal.WithLabelValues("invalid_arity").Inc()
		return nil, status.Errorf(codes.InvalidArgument, "entity id %q has invalid arity", req.EntityID)
	}

	if !ok || authKey != req.AuthKey {
		logring.Warningf("[GRPC] handshake rejected for %q: bad credentials", req.EntityID)
		handshakeTotal.WithLabelValues("bad_credentials").Inc()
		return nil, status.Errorf(codes.Unauthenticated, "bad credentials for %q", req.EntityID)
	}

	token := uuid.NewString()
	s.sessions.Open(req.EntityID, token)
	handshakeTotal.WithLabelValues("accepted").Inc()
	activeSessions.Inc()
	logring.Infof("[GRPC] handshake accepted for %q, session %s opened", req.EntityID, token)

	return &apollopb.HandshakeResponse{
		SessionToken: token,
		Message:      "handshake accepted",
	}, nil
}

// ReportStatus services the bidirectional status/command stream. Every
// inbound StatusReport is resolved against the directive engine and, on a
// match, the resolved command is dispatched non-blockingly either to the
// reporting session itself or to whichever session the rule targets. A
// separate goroutine drains the session's own command queue and writes
// HeartbeatResponse frames back for as long as the stream is open.
func (s *Server) ReportStatus(stream apollopb.CoreConnector_ReportStatusServer) error {
	var sess *session.ActiveSession

	sendErrCh := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	for {
		report, err := stream.Recv()
		if err != nil {
			if sess != nil {
				s.sessions.Remove(sess.Token)
				activeSessions.Dec()
			}
			return err
		}

		if sess == nil {
			var ok bool
			sess, ok = s.sessions.ByToken(report.SessionToken)
			if !ok {
				logring.Warningf("[GRPC] report_status with unknown session token %s", report.SessionToken)
				return status.Errorf(codes.Unauthenticated, "unknown session token")
			}
			sess.PromoteQueue()
			go pumpCommands(stream, sess, done, sendErrCh)
		}

		sess.Touch(report.Status)
		statusReportsTotal.Inc()

		target, commandJSON, matched := s.engine.ProcessReport(sess.EntityID, report.Status)
		if !matched {
			continue
		}

		dest := sess
		if target != sess.EntityID {
			if t, ok := s.sessions.ByEntity(target); ok {
				dest = t
			} else {
				logring.Warningf("[CORE] directive for %s resolved to offline target %s", sess.EntityID, target)
				continue
			}
		}
		if dest.Dispatch(session.Command{Target: target, JSON: commandJSON}) {
			commandsDispatchedTotal.WithLabelValues("accepted").Inc()
		} else {
			logring.Warningf("[GRPC] command queue full for %s, dropping command", dest.EntityID)
			commandsDispatchedTotal.WithLabelValues("dropped").Inc()
		}

		select {
		case err := <-sendErrCh:
			return errors.Wrap(err, "sending heartbeat response")
		default:
		}
	}
}

func pumpCommands(stream apollopb.CoreConnector_ReportStatusServer, sess *session.ActiveSession, done <-chan struct{}, errCh chan<- error) {
	for {
		select {
		case <-done:
			return
		case cmd, ok := <-sess.Commands():
			if !ok {
				return
			}
			resp := &apollopb.HeartbeatResponse{Status: "CommandIssued", CommandJSON: cmd.JSON}
			if err := stream.Send(resp); err != nil {
				select {
				case errCh <- err:
				default:
				}
				return
			}
		}
	}
}
