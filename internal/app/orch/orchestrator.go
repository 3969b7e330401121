package orch

import (
	"sync"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

// Orchestrator owns the connection lifecycle: it attributes connections to
// identities on join and tears routing and call state down on disconnect.
type Orchestrator struct {
	Registry *app.Registry
	Router   *app.Router
	Calls    *app.Coordinator
	Limiter  *app.RateLimiter

	mu    sync.RWMutex
	conns map[core.ConnID]*connState
}

type connState struct {
	conn     core.SignalConnection
	identity domain.Identity
}

func New(reg *app.Registry, router *app.Router, calls *app.Coordinator, limiter *app.RateLimiter) *Orchestrator {
	return &Orchestrator{
		Registry: reg,
		Router:   router,
		Calls:    calls,
		Limiter:  limiter,
		conns:    make(map[core.ConnID]*connState),
	}
}

// Stats is what the stats endpoint reports.
type Stats struct {
	Connections int               `json:"connections"`
	Online      int               `json:"online"`
	Calls       []domain.CallInfo `json:"calls"`
}

func (o *Orchestrator) Stats() Stats {
	o.mu.RLock()
	n := len(o.conns)
	o.mu.RUnlock()
	return Stats{
		Connections: n,
		Online:      o.Registry.Online(),
		Calls:       o.Calls.Active(),
	}
}

// Shutdown forgets all calls and closes every live connection. Read pumps
// then run their usual Disconnect.
func (o *Orchestrator) Shutdown() {
	o.Calls.Close()

	o.mu.RLock()
	conns := make([]core.SignalConnection, 0, len(o.conns))
	for _, st := range o.conns {
		conns = append(conns, st.conn)
	}
	o.mu.RUnlock()

	for _, c := range conns {
		c.Close()
	}
	log.Info().Str("module", "app.orch").Int("closed", len(conns)).Msg("shutdown")
}
