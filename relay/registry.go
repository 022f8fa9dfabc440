package relay

import "sync"

// Registry is the process-wide mapping of ClientId to Session. A single
// mutex guards the map; it is held only for map operations, never across
// socket I/O, so a slow sender never blocks a concurrent lookup or insert.
type Registry struct {
	mu       sync.Mutex
	sessions map[uint64]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uint64]*Session)}
}

// Insert registers session under its ClientID. Called exactly once per
// successful handshake.
func (r *Registry) Insert(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ClientID] = s
}

// Lookup returns the session for id, or nil if no such client is online.
func (r *Registry) Lookup(id uint64) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id]
}

// Remove deregisters id. Called exactly once per disconnect.
func (r *Registry) Remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Len returns the current number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// SnapshotDirectory returns every registered client except excluding, in no
// particular order.
func (r *Registry) SnapshotDirectory(excluding uint64) []ClientInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ClientInfo, 0, len(r.sessions))
	for id, s := range r.sessions {
		if id == excluding {
			continue
		}
		out = append(out, ClientInfo{ID: id, Name: s.DisplayName})
	}
	return out
}
