package orch

import (
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

// Connect tracks a new anonymous connection.
func (o *Orchestrator) Connect(conn core.SignalConnection) {
	o.mu.Lock()
	o.conns[conn.ID()] = &connState{conn: conn}
	o.mu.Unlock()
	log.Info().Str("module", "app.orch").Str("conn", string(conn.ID())).Msg("connected")
}

// Join attributes conn to id and makes it the routable connection for id.
// Calls still ringing for id are offered again on conn. A connection that was already joined under another identity releases it
// first, ending that identity's calls.
func (o *Orchestrator) Join(conn core.SignalConnection, id domain.Identity) {
	o.mu.Lock()
	st, ok := o.conns[conn.ID()]
	if !ok {
		st = &connState{conn: conn}
		o.conns[conn.ID()] = st
	}
	prev := st.identity
	st.identity = id
	o.mu.Unlock()

	if prev != "" && prev != id {
		log.Info().Str("module", "app.orch").Str("conn", string(conn.ID())).
			Str("from", string(prev)).Str("to", string(id)).Msg("identity changed")
		o.release(conn.ID())
	}

	if old := o.Registry.Register(id, conn); old != nil {
		log.Info().Str("module", "app.orch").Str("identity", string(id)).
			Str("stale_conn", string(old.ID())).Msg("join superseded older connection")
	}
	o.Calls.ReplayRinging(id)
}

// IdentityOf reports who conn speaks for. False means not joined yet.
func (o *Orchestrator) IdentityOf(id core.ConnID) (domain.Identity, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	st, ok := o.conns[id]
	if !ok || st.identity == "" {
		return "", false
	}
	return st.identity, true
}

// Disconnect forgets conn. When it was the current connection of its
// identity, every call of that identity is ended and the peers notified.
func (o *Orchestrator) Disconnect(connID core.ConnID) {
	o.mu.Lock()
	st, ok := o.conns[connID]
	delete(o.conns, connID)
	o.mu.Unlock()

	if !ok || st.identity == "" {
		log.Info().Str("module", "app.orch").Str("conn", string(connID)).Msg("anonymous disconnect")
		return
	}
	log.Info().Str("module", "app.orch").Str("conn", string(connID)).Str("identity", string(st.identity)).Msg("disconnect")
	o.release(connID)
}

func (o *Orchestrator) release(connID core.ConnID) {
	id, ok := o.Registry.Remove(connID)
	if !ok {
		return
	}
	if n := o.Calls.EndAll(id); n > 0 {
		log.Info().Str("module", "app.orch").Str("identity", string(id)).Int("calls", n).Msg("ended calls of departed identity")
	}
	o.Limiter.Forget(id)
}
