package signal

import (
	"encoding/json"

	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

// broadcast returns a handler that fans a feed event out to everyone online.
// The payload is opaque to the relay.
func (ctl *SignalWSController) broadcast(kind domain.EventKind) func(*WsSignalConn, domain.Identity, []byte) {
	return func(conn *WsSignalConn, from domain.Identity, data []byte) {
		var fields map[string]json.RawMessage
		if !decode(conn, kind, data, &fields) {
			return
		}
		delete(fields, "type")
		n := ctl.Orch.Router.Broadcast(kind, from, fields)
		log.Debug().Str("module", "signal").Str("conn", string(conn.ID())).Str("type", string(kind)).Int("delivered", n).Msg("feed event")
	}
}
