package signal

import (
	"encoding/json"

	"github.com/dkeye/Relay/internal/domain"
)

// handlePrivateMessage forwards the stored message to recipientId as is.
// Content was already accepted by the message store.
func (ctl *SignalWSController) handlePrivateMessage(conn *WsSignalConn, from domain.Identity, data []byte) {
	var msg domain.ChatMessage
	if !decode(conn, domain.EventPrivateMessage, data, &msg) {
		return
	}
	var recipient string
	if raw, ok := msg[domain.FieldRecipientID]; ok {
		if err := json.Unmarshal(raw, &recipient); err != nil {
			malformed(conn, domain.EventPrivateMessage, "recipientId: "+err.Error())
			return
		}
	}
	to, err := domain.ParseIdentity(recipient)
	if err != nil {
		malformed(conn, domain.EventPrivateMessage, "recipientId: "+err.Error())
		return
	}
	delete(msg, "type")

	ctl.Orch.Router.PrivateMessage(from, to, msg)
}
