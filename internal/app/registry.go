package app

import (
	"sync"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

// Registry maps identities to their current signal connection.
//
// At most one connection is current per identity. A later Register for the
// same identity wins: the earlier connection stays open but is no longer
// routable, and its own removal becomes a no-op.
type Registry struct {
	mu         sync.RWMutex
	byIdentity map[domain.Identity]core.SignalConnection
	byConn     map[core.ConnID]domain.Identity
}

func NewRegistry() *Registry {
	return &Registry{
		byIdentity: make(map[domain.Identity]core.SignalConnection),
		byConn:     make(map[core.ConnID]domain.Identity),
	}
}

// Register makes conn the current connection for id and returns the
// connection it superseded, if any.
func (r *Registry) Register(id domain.Identity, conn core.SignalConnection) core.SignalConnection {
	r.mu.Lock()
	defer r.mu.Unlock()

	// A connection belongs to one identity at a time.
	if prevID, ok := r.byConn[conn.ID()]; ok && prevID != id {
		if cur, ok := r.byIdentity[prevID]; ok && cur.ID() == conn.ID() {
			delete(r.byIdentity, prevID)
		}
	}

	old, had := r.byIdentity[id]
	if had && old.ID() != conn.ID() {
		delete(r.byConn, old.ID())
		log.Info().Str("module", "app.registry").Str("identity", string(id)).
			Str("conn", string(conn.ID())).Str("superseded", string(old.ID())).Msg("superseded connection")
	}
	r.byIdentity[id] = conn
	r.byConn[conn.ID()] = id
	log.Info().Str("module", "app.registry").Str("identity", string(id)).Str("conn", string(conn.ID())).Msg("registered")

	if had && old.ID() != conn.ID() {
		return old
	}
	return nil
}

func (r *Registry) Lookup(id domain.Identity) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byIdentity[id]
	return c, ok
}

// Remove drops the entry owned by connID. It reports the identity only when
// connID was still current for it.
func (r *Registry) Remove(connID core.ConnID) (domain.Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byConn[connID]
	if !ok {
		return "", false
	}
	delete(r.byConn, connID)
	if cur, ok := r.byIdentity[id]; !ok || cur.ID() != connID {
		return "", false
	}
	delete(r.byIdentity, id)
	log.Info().Str("module", "app.registry").Str("identity", string(id)).Str("conn", string(connID)).Msg("removed")
	return id, true
}

// Deliver resolves id and hands f to its connection without releasing the
// lock in between, so a concurrent Remove cannot interleave. The returned
// connection is nil on a routing miss.
func (r *Registry) Deliver(id domain.Identity, f core.Frame) (core.SignalConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byIdentity[id]
	if !ok {
		return nil, nil
	}
	return c, c.TrySend(f)
}

// Refusal is a connection that did not accept a broadcast frame.
type Refusal struct {
	Identity domain.Identity
	Conn     core.SignalConnection
	Err      error
}

// DeliverAll hands f to every routable connection under one read lock. It
// returns how many took the frame and which refused it.
func (r *Registry) DeliverAll(f core.Frame) (int, []Refusal) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	var refused []Refusal
	for id, c := range r.byIdentity {
		if err := c.TrySend(f); err != nil {
			refused = append(refused, Refusal{Identity: id, Conn: c, Err: err})
			continue
		}
		n++
	}
	return n, refused
}

func (r *Registry) Online() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIdentity)
}
