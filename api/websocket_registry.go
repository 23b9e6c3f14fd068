package api

import "sync"

// ConnectionRegistry maps an authenticated identity to its live connection.
// At most one connection is registered per identity.
type ConnectionRegistry struct {
	mu         sync.RWMutex
	byIdentity map[string]*Connection
}

// NewConnectionRegistry creates an empty registry
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{byIdentity: make(map[string]*Connection)}
}

// Put registers conn for identityID and returns the connection it replaced, if any
func (r *ConnectionRegistry) Put(identityID string, conn *Connection) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	prior := r.byIdentity[identityID]
	r.byIdentity[identityID] = conn
	if prior == conn {
		return nil
	}
	return prior
}

// Get returns the connection registered for identityID
func (r *ConnectionRegistry) Get(identityID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.byIdentity[identityID]
	return conn, ok
}

// Remove drops whatever connection is registered for identityID
func (r *ConnectionRegistry) Remove(identityID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byIdentity, identityID)
}

// RemoveIf drops the entry only when it still points at conn. A closing
// connection that was already replaced leaves its successor in place.
func (r *ConnectionRegistry) RemoveIf(identityID string, conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byIdentity[identityID] != conn {
		return false
	}
	delete(r.byIdentity, identityID)
	return true
}

// Snapshot returns a copy of all registered connections
func (r *ConnectionRegistry) Snapshot() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]*Connection, 0, len(r.byIdentity))
	for _, conn := range r.byIdentity {
		conns = append(conns, conn)
	}
	return conns
}

// ForEach calls visit for every entry of a snapshot. The lock is not held
// while visit runs, so visit may call back into the registry.
func (r *ConnectionRegistry) ForEach(visit func(identityID string, conn *Connection)) {
	type entry struct {
		id   string
		conn *Connection
	}
	r.mu.RLock()
	entries := make([]entry, 0, len(r.byIdentity))
	for id, conn := range r.byIdentity {
		entries = append(entries, entry{id: id, conn: conn})
	}
	r.mu.RUnlock()

	for _, e := range entries {
		visit(e.id, e.conn)
	}
}

// Count returns the number of registered identities
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIdentity)
}
