package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

// Delivery is the outcome of a single Route call. Callers never surface it
// to the sender; it exists for logging, stats and tests.
type Delivery int

const (
	Offline Delivery = iota
	Delivered
	Dropped
)

func (d Delivery) String() string {
	switch d {
	case Delivered:
		return "delivered"
	case Dropped:
		return "dropped"
	default:
		return "offline"
	}
}

// Router forwards events to the current connection of an identity.
// Delivery is fire-and-forget: no retries, no queue for offline targets.
type Router struct {
	Registry *Registry
	Policy   Policy
	Now      func() time.Time
}

func NewRouter(reg *Registry, policy Policy) *Router {
	if policy == nil {
		policy = DropPolicy{}
	}
	return &Router{Registry: reg, Policy: policy, Now: time.Now}
}

// Route delivers payload to the target stamped with type, from and sentAt.
// The sender's identity always overrides any "from" in the payload.
func (rt *Router) Route(kind domain.EventKind, from, to domain.Identity, payload any) Delivery {
	frame, err := EncodeEvent(kind, from, rt.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.router").Str("type", string(kind)).Msg("encode event")
		return Dropped
	}

	conn, err := rt.Registry.Deliver(to, frame)
	if conn == nil {
		log.Debug().Str("module", "app.router").Str("type", string(kind)).
			Str("from", string(from)).Str("to", string(to)).Msg("routing miss")
		return Offline
	}
	if err != nil {
		rt.sendFailed(kind, to, conn, err)
		return Dropped
	}
	return Delivered
}

// Broadcast delivers payload to every online identity, from included. It
// returns the number of connections that accepted the frame.
func (rt *Router) Broadcast(kind domain.EventKind, from domain.Identity, payload any) int {
	frame, err := EncodeEvent(kind, from, rt.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.router").Str("type", string(kind)).Msg("encode event")
		return 0
	}
	n, refused := rt.Registry.DeliverAll(frame)
	for _, r := range refused {
		rt.sendFailed(kind, r.Identity, r.Conn, r.Err)
	}
	log.Debug().Str("module", "app.router").Str("type", string(kind)).Str("from", string(from)).
		Int("delivered", n).Int("dropped", len(refused)).Msg("broadcast")
	return n
}

// sendFailed applies the backpressure policy to a connection that refused a frame.
func (rt *Router) sendFailed(kind domain.EventKind, to domain.Identity, conn core.SignalConnection, err error) {
	log.Warn().Err(err).Str("module", "app.router").Str("type", string(kind)).
		Str("to", string(to)).Str("conn", string(conn.ID())).Msg("send failed")
	if errors.Is(err, core.ErrBackpressure) && rt.Policy.OnBackPressure(to, conn) == KickConnection {
		log.Warn().Str("module", "app.router").Str("conn", string(conn.ID())).Msg("kicking slow connection")
		conn.Close()
	}
}

// PrivateMessage forwards a chat message to its live recipient with every
// field intact. The server clock sets createdAt and recipientId is not
// echoed; nothing is stored or replayed.
func (rt *Router) PrivateMessage(from, to domain.Identity, msg domain.ChatMessage) Delivery {
	out := make(domain.ChatMessage, len(msg)+1)
	for k, v := range msg {
		out[k] = v
	}
	delete(out, domain.FieldRecipientID)
	createdAt, err := json.Marshal(rt.Now())
	if err != nil {
		log.Error().Err(err).Str("module", "app.router").Msg("marshal createdAt")
		return Dropped
	}
	out[domain.FieldCreatedAt] = createdAt
	return rt.Route(domain.EventPrivateMessage, from, to, out)
}

// EncodeEvent flattens payload into a JSON object and adds the envelope
// fields. payload must encode to an object or null.
func EncodeEvent(kind domain.EventKind, from domain.Identity, at time.Time, payload any) (core.Frame, error) {
	fields := make(map[string]json.RawMessage)
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		if string(raw) != "null" {
			if err := json.Unmarshal(raw, &fields); err != nil {
				return nil, fmt.Errorf("payload is not an object: %w", err)
			}
		}
	}

	var err error
	set := func(key string, v any) {
		if err != nil {
			return
		}
		var b []byte
		b, err = json.Marshal(v)
		fields[key] = b
	}
	set("type", kind)
	if from != "" {
		set("from", from)
	}
	set("sentAt", at.UTC())
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return out, nil
}
