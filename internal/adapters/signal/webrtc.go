package signal

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Relay/internal/domain"
	"github.com/pion/webrtc/v4"
)

var (
	errMissing     = errors.New("missing")
	errEmptySDP    = errors.New("empty sdp")
	errNotAnObject = errors.New("not an object")
)

// checkSessionDescription accepts a WebRTC session description of the
// wanted type. Descriptions without a type are accepted; browsers send
// RTCSessionDescriptionInit objects that may omit it.
func checkSessionDescription(raw json.RawMessage, want webrtc.SDPType) error {
	if isAbsent(raw) {
		return errMissing
	}
	var sd webrtc.SessionDescription
	if err := json.Unmarshal(raw, &sd); err != nil {
		return err
	}
	if sd.SDP == "" {
		return errEmptySDP
	}
	if sd.Type != webrtc.SDPTypeUnknown && sd.Type != want {
		return fmt.Errorf("sdp type %s, want %s", sd.Type, want)
	}
	return nil
}

// checkCandidate accepts an RTCIceCandidateInit object. An empty candidate
// string is the end-of-candidates marker and passes.
func checkCandidate(raw json.RawMessage) error {
	if isAbsent(raw) {
		return errMissing
	}
	if raw[0] != '{' {
		return errNotAnObject
	}
	var ci webrtc.ICECandidateInit
	return json.Unmarshal(raw, &ci)
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func (ctl *SignalWSController) handleCallUser(conn *WsSignalConn, from domain.Identity, data []byte) {
	type callPayload struct {
		RecipientID string            `json:"recipientId"`
		Offer       json.RawMessage   `json:"offer"`
		CallerInfo  domain.CallerInfo `json:"callerInfo"`
	}
	var p callPayload
	if !decode(conn, domain.EventCallUser, data, &p) {
		return
	}
	to, err := domain.ParseIdentity(p.RecipientID)
	if err != nil {
		malformed(conn, domain.EventCallUser, "recipientId: "+err.Error())
		return
	}
	// Clients that negotiate after accept ring without an offer.
	if isAbsent(p.Offer) {
		p.Offer = nil
	} else if err := checkSessionDescription(p.Offer, webrtc.SDPTypeOffer); err != nil {
		malformed(conn, domain.EventCallUser, "offer: "+err.Error())
		return
	}
	_ = ctl.Orch.Calls.CallUser(from, to, p.Offer, p.CallerInfo)
}

func (ctl *SignalWSController) handleAcceptCall(conn *WsSignalConn, from domain.Identity, data []byte) {
	type acceptPayload struct {
		CallerID string          `json:"callerId"`
		Answer   json.RawMessage `json:"answer"`
	}
	var p acceptPayload
	if !decode(conn, domain.EventAcceptCall, data, &p) {
		return
	}
	caller, err := domain.ParseIdentity(p.CallerID)
	if err != nil {
		malformed(conn, domain.EventAcceptCall, "callerId: "+err.Error())
		return
	}
	if err := checkSessionDescription(p.Answer, webrtc.SDPTypeAnswer); err != nil {
		malformed(conn, domain.EventAcceptCall, "answer: "+err.Error())
		return
	}
	_ = ctl.Orch.Calls.AcceptCall(from, caller, p.Answer)
}

func (ctl *SignalWSController) handleRejectCall(conn *WsSignalConn, from domain.Identity, data []byte) {
	type rejectPayload struct {
		CallerID string `json:"callerId"`
	}
	var p rejectPayload
	if !decode(conn, domain.EventRejectCall, data, &p) {
		return
	}
	caller, err := domain.ParseIdentity(p.CallerID)
	if err != nil {
		malformed(conn, domain.EventRejectCall, "callerId: "+err.Error())
		return
	}
	_ = ctl.Orch.Calls.RejectCall(from, caller)
}

func (ctl *SignalWSController) handleICECandidate(conn *WsSignalConn, from domain.Identity, data []byte) {
	type candidatePayload struct {
		RecipientID string          `json:"recipientId"`
		Candidate   json.RawMessage `json:"candidate"`
	}
	var p candidatePayload
	if !decode(conn, domain.EventICECandidate, data, &p) {
		return
	}
	to, err := domain.ParseIdentity(p.RecipientID)
	if err != nil {
		malformed(conn, domain.EventICECandidate, "recipientId: "+err.Error())
		return
	}
	if err := checkCandidate(p.Candidate); err != nil {
		malformed(conn, domain.EventICECandidate, "candidate: "+err.Error())
		return
	}
	_ = ctl.Orch.Calls.RelayCandidate(from, to, p.Candidate)
}

func (ctl *SignalWSController) handleEndCall(conn *WsSignalConn, from domain.Identity, data []byte) {
	type endPayload struct {
		RecipientID string `json:"recipientId"`
	}
	var p endPayload
	if !decode(conn, domain.EventEndCall, data, &p) {
		return
	}
	to, err := domain.ParseIdentity(p.RecipientID)
	if err != nil {
		malformed(conn, domain.EventEndCall, "recipientId: "+err.Error())
		return
	}
	_ = ctl.Orch.Calls.EndCall(from, to)
}
