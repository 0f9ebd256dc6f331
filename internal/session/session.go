// Package session tracks the live plugin connections the coordinator is
// currently serving: one ActiveSession per handshake, indexed by the
// opaque token handed back to the plugin and by the hierarchical entity
// ID it authenticated as.
package session

import (
	"sync"
	"time"
)

// placeholderQueueDepth bounds the command queue created at handshake time,
// before the plugin has opened its ReportStatus stream. realQueueDepth
// replaces it once the stream's first frame arrives.
const (
	placeholderQueueDepth = 4
	realQueueDepth        = 32
)

// Command is a directive-engine match queued for delivery to a plugin on
// its next heartbeat response.
type Command struct {
	Target string
	JSON   string
}

// ActiveSession is one authenticated plugin connection. Everything but the
// immutable EntityID/Token pair is guarded by mu, since the RPC goroutine
// servicing the stream and the liveness monitor's sweep both touch it.
type ActiveSession struct {
	EntityID string
	Token    string

	mu       sync.Mutex
	status   string
	lastSeen time.Time
	commands chan Command
}

func newSession(entityID, token string) *ActiveSession {
	return &ActiveSession{
		EntityID: entityID,
		Token:    token,
		status:   "Handshaking",
		lastSeen: time.Now(),
		commands: make(chan Command, placeholderQueueDepth),
	}
}

// Touch stamps the session as seen now and records its latest reported
// status.
func (s *ActiveSession) Touch(status string) {
	s.mu.Lock()
	s.status = status
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// IdleSince reports how long it has been since the session was last heard
// from.
func (s *ActiveSession) IdleSince() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastSeen)
}

// Status returns the last-reported status string.
func (s *ActiveSession) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// PromoteQueue swaps the placeholder command channel for a full-depth one.
// Called once, when the plugin's first StatusReport frame arrives; it is a
// no-op on every subsequent call so repeated frames don't reset the queue
// and drop anything already pending.
func (s *ActiveSession) PromoteQueue() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cap(s.commands) >= realQueueDepth {
		return
	}
	old := s.commands
	s.commands = make(chan Command, realQueueDepth)
	close(old)
	for cmd := range old {
		select {
		case s.commands <- cmd:
		default:
		}
	}
}

// Dispatch enqueues cmd for delivery without blocking the caller. It
// reports false if the session's queue is full and the command was
// dropped, mirroring the RPC layer's non-blocking try-send contract.
func (s *ActiveSession) Dispatch(cmd Command) bool {
	s.mu.Lock()
	ch := s.commands
	s.mu.Unlock()
	select {
	case ch <- cmd:
		return true
	default:
		return false
	}
}

// Commands exposes the channel the stream-serving goroutine drains to
// build heartbeat responses.
func (s *ActiveSession) Commands() <-chan Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commands
}

// Registry is the coordinator-wide table of active sessions.
type Registry struct {
	mu       sync.RWMutex
	byToken  map[string]*ActiveSession
	byEntity map[string]*ActiveSession
}

// NewRegistry builds an empty session table.
func NewRegistry() *Registry {
	return &Registry{
		byToken:  map[string]*ActiveSession{},
		byEntity: map[string]*ActiveSession{},
	}
}

// Open creates and registers a new session for entityID under the given
// token, replacing any prior session the same entity held.
func (r *Registry) Open(entityID, token string) *ActiveSession {
	s := newSession(entityID, token)
	r.mu.Lock()
	if old, ok := r.byEntity[entityID]; ok {
		delete(r.byToken, old.Token)
	}
	r.byToken[token] = s
	r.byEntity[entityID] = s
	r.mu.Unlock()
	return s
}

// ByToken looks up a session by its session token.
func (r *Registry) ByToken(token string) (*ActiveSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byToken[token]
	return s, ok
}

// ByEntity looks up a session by the entity ID it authenticated as.
func (r *Registry) ByEntity(entityID string) (*ActiveSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byEntity[entityID]
	return s, ok
}

// Remove drops a session from both indexes.
func (r *Registry) Remove(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byToken[token]
	if !ok {
		return
	}
	delete(r.byToken, token)
	if r.byEntity[s.EntityID] == s {
		delete(r.byEntity, s.EntityID)
	}
}

// Snapshot returns every active session, for the liveness sweep and the
// console's status view.
func (r *Registry) Snapshot() []*ActiveSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ActiveSession, 0, len(r.byToken))
	for _, s := range r.byToken {
		out = append(out, s)
	}
	return out
}
