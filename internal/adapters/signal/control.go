package signal

import "github.com/dkeye/Relay/internal/domain"

func (ctl *SignalWSController) handlePing(conn *WsSignalConn, _ domain.Identity, _ []byte) {
	resp := struct {
		Type domain.EventKind `json:"type"`
	}{
		Type: domain.EventPong,
	}
	ctl.sendJSON(conn, resp)
}

func (ctl *SignalWSController) handleWhoAmI(conn *WsSignalConn, from domain.Identity, _ []byte) {
	resp := struct {
		Type     domain.EventKind `json:"type"`
		Identity domain.Identity  `json:"identity,omitempty"`
		Conn     string           `json:"conn"`
	}{
		Type:     domain.EventWhoAmI,
		Identity: from,
		Conn:     string(conn.ID()),
	}
	ctl.sendJSON(conn, resp)
}
