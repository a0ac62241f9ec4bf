package relay

import (
	"sync"
)

// Registry tracks live sessions and supports graceful draining. When draining
// is enabled, new sessions are rejected while existing ones are closed.
//
// The mu mutex makes the draining check, map insert and wg.Add atomic in Add,
// so StartDraining followed by Wait cannot miss a session registered
// concurrently.
type Registry struct {
	mu       sync.Mutex
	draining bool
	sessions map[string]*Session
	wg       sync.WaitGroup
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers s. Returns false if the registry is draining.
func (r *Registry) Add(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.draining {
		return false
	}
	if _, ok := r.sessions[s.ID]; ok {
		return true
	}
	r.sessions[s.ID] = s
	r.wg.Add(1)
	return true
}

// Remove unregisters s. Removing an unknown session is a no-op.
func (r *Registry) Remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; !ok {
		return
	}
	delete(r.sessions, s.ID)
	r.wg.Done()
}

// Snapshot returns a copy of the live sessions. Callers may iterate it while
// sessions are added or removed.
func (r *Registry) Snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// StartDraining makes future Add calls return false.
func (r *Registry) StartDraining() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draining = true
}

// IsDraining reports whether the registry is in draining mode.
func (r *Registry) IsDraining() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draining
}

// CloseAll asks every live session to shut down.
func (r *Registry) CloseAll() {
	for _, s := range r.Snapshot() {
		s.Shutdown()
	}
}

// Wait blocks until every registered session has been removed.
func (r *Registry) Wait() {
	r.wg.Wait()
}
