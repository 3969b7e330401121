package domain

import "time"

type CallPhase string

const (
	CallRinging CallPhase = "ringing"
	CallActive  CallPhase = "active"
	CallEnded   CallPhase = "ended"
)

// CallKey identifies a call by its unordered pair of parties.
type CallKey struct {
	Low  Identity
	High Identity
}

func NewCallKey(a, b Identity) CallKey {
	if b < a {
		a, b = b, a
	}
	return CallKey{Low: a, High: b}
}

func (k CallKey) Involves(id Identity) bool {
	return k.Low == id || k.High == id
}

func (k CallKey) String() string {
	return string(k.Low) + "<->" + string(k.High)
}

// CallInfo is a read-only view of a call session for APIs.
type CallInfo struct {
	Caller    Identity  `json:"caller"`
	Callee    Identity  `json:"callee"`
	Phase     CallPhase `json:"phase"`
	StartedAt time.Time `json:"started_at"`
}
