package app

import (
	"strings"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

type BackpressureAction int

const (
	DropEvent BackpressureAction = iota
	KickConnection
)

// Policy decides what happens to a connection whose outbound buffer is full.
type Policy interface {
	OnBackPressure(to domain.Identity, conn core.SignalConnection) BackpressureAction
}

// DropPolicy treats a full buffer like a routing miss.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(domain.Identity, core.SignalConnection) BackpressureAction {
	return DropEvent
}

// KickPolicy closes slow connections; the read pump then runs the normal
// disconnect cleanup.
type KickPolicy struct{}

func (KickPolicy) OnBackPressure(domain.Identity, core.SignalConnection) BackpressureAction {
	return KickConnection
}

// PolicyFromString maps the backpressure config value to a Policy.
func PolicyFromString(s string) Policy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "kick":
		return KickPolicy{}
	default:
		return DropPolicy{}
	}
}
