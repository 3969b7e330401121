package signal

import (
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleJoin(conn *WsSignalConn, _ domain.Identity, data []byte) {
	type joinPayload struct {
		Identity string `json:"identity"`
	}
	var p joinPayload
	if !decode(conn, domain.EventJoin, data, &p) {
		return
	}
	id, err := domain.ParseIdentity(p.Identity)
	if err != nil {
		malformed(conn, domain.EventJoin, err.Error())
		ctl.sendJSON(conn, map[string]any{
			"type":  domain.EventError,
			"error": "bad_identity",
		})
		return
	}

	log.Info().Str("module", "signal").Str("conn", string(conn.ID())).Str("client", conn.token).Str("identity", string(id)).Msg("join")
	ctl.Orch.Join(conn, id)
}
