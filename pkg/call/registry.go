package call

import (
	"log/slog"
	"sync"
)

// Registry maps CallIds to live sessions. It is the only mutable state
// shared across calls; all access goes through the mutex.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		logger:   logger.With("component", "call.registry"),
	}
}

// Add registers a session under its CallId. Returns ErrDuplicateSession
// if a live session already holds the id; the existing session is kept.
func (r *Registry) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID()]; exists {
		r.logger.Warn("rejected duplicate session", "call_id", s.ID())
		return ErrDuplicateSession
	}
	r.sessions[s.ID()] = s
	r.logger.Info("session registered", "call_id", s.ID(), "active", len(r.sessions))
	return nil
}

// Get returns the session for a CallId, if registered.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove evicts a session. Idempotent; reports whether an eviction
// actually happened.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; !exists {
		return false
	}
	delete(r.sessions, id)
	r.logger.Info("session evicted", "call_id", id, "active", len(r.sessions))
	return true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
