package registry

import (
	"fmt"
	"log"
	"sync"
)

// Transport is the minimal write surface of a duplex connection.
// *websocket.Conn from gorilla satisfies it directly.
type Transport interface {
	WriteJSON(v interface{}) error
	Close() error
}

// conn pairs a transport with the mutex serializing its writes. Sends for one
// session can race between the read loop and synthesis tasks; interleaved
// frames on the wire are not an option.
type conn struct {
	transport Transport
	writeMu   sync.Mutex
}

// Registry tracks the single live connection per session id and owns all
// synchronization around the map. Callers never iterate it directly.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*conn
}

func New() *Registry {
	return &Registry{conns: make(map[string]*conn)}
}

// Connect stores the transport for the session, replacing any prior entry.
// A replaced transport is closed so the stale peer learns it lost the slot.
func (r *Registry) Connect(sessionID string, t Transport) {
	r.mu.Lock()
	old := r.conns[sessionID]
	r.conns[sessionID] = &conn{transport: t}
	r.mu.Unlock()

	if old != nil {
		log.Printf("[%s] connection replaced, closing previous transport", sessionID)
		_ = old.transport.Close()
	}
}

// Disconnect removes the session entry if it still points at t. Idempotent;
// a reconnect that already replaced the entry is left alone.
func (r *Registry) Disconnect(sessionID string, t Transport) {
	r.mu.Lock()
	if c, ok := r.conns[sessionID]; ok && (t == nil || c.transport == t) {
		delete(r.conns, sessionID)
	}
	r.mu.Unlock()
}

// Send serializes msg to the session's transport. Writes for one connection
// are mutex-serialized. A failed write deregisters the session before the
// error propagates, so stale entries never accumulate.
func (r *Registry) Send(sessionID string, msg interface{}) error {
	r.mu.RLock()
	c, ok := r.conns[sessionID]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("session %s not connected", sessionID)
	}

	c.writeMu.Lock()
	err := c.transport.WriteJSON(msg)
	c.writeMu.Unlock()
	if err != nil {
		r.Disconnect(sessionID, c.transport)
		return fmt.Errorf("write to session %s: %w", sessionID, err)
	}
	return nil
}

// Broadcast sends msg to every live connection. Write failures are isolated
// per connection: the failing session is deregistered and the rest still
// receive the message.
func (r *Registry) Broadcast(msg interface{}) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		if err := r.Send(id, msg); err != nil {
			log.Printf("[%s] broadcast send failed: %v", id, err)
		}
	}
}

// IsConnected reports whether the session has a live transport.
func (r *Registry) IsConnected(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[sessionID]
	return ok
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
