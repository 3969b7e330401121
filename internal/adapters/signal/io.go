package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/Relay/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type handler struct {
	// anonymous handlers run before join.
	anonymous bool
	fn        func(c *WsSignalConn, from domain.Identity, data []byte)
}

func (ctl *SignalWSController) dispatchTable() map[domain.EventKind]handler {
	return map[domain.EventKind]handler{
		domain.EventJoin:           {anonymous: true, fn: ctl.handleJoin},
		domain.EventPing:           {anonymous: true, fn: ctl.handlePing},
		domain.EventWhoAmI:         {anonymous: true, fn: ctl.handleWhoAmI},
		domain.EventPrivateMessage: {fn: ctl.handlePrivateMessage},
		domain.EventCallUser:       {fn: ctl.handleCallUser},
		domain.EventAcceptCall:     {fn: ctl.handleAcceptCall},
		domain.EventRejectCall:     {fn: ctl.handleRejectCall},
		domain.EventICECandidate:   {fn: ctl.handleICECandidate},
		domain.EventEndCall:        {fn: ctl.handleEndCall},
		domain.EventMessage:        {fn: ctl.broadcast(domain.EventMessage)},
		domain.EventPostLiked:      {fn: ctl.broadcast(domain.EventPostLiked)},
		domain.EventPostDeleted:    {fn: ctl.broadcast(domain.EventPostDeleted)},
		domain.EventPostUpdated:    {fn: ctl.broadcast(domain.EventPostUpdated)},
	}
}

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.Settings.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("conn", string(c.ID())).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("conn", string(c.ID())).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.Settings.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("conn", string(c.ID())).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(ctl.Settings.WriteWait)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.ID())).Msg("ping failed")
				return
			}
		}
	}
}

// readPump is the single consumer of a connection's inbound frames; each
// frame is handled to completion before the next is read.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(c.ID())).Msg("readPump closing")
		cancel()
		ctl.Orch.Disconnect(c.ID())
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.Settings.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.Settings.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.Settings.PongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", string(c.ID())).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.ID())).Msg("readPump read error")
				}
				return
			}
			_ = c.conn.SetReadDeadline(time.Now().Add(ctl.Settings.PongWait))
			ctl.handleSignal(c, data)
		}
	}
}

// handleSignal dispatches one frame. Failures stay inside this call: bad
// frames are logged and dropped, and a panicking handler only loses its
// own event.
func (ctl *SignalWSController) handleSignal(c *WsSignalConn, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "signal").Str("conn", string(c.ID())).Interface("panic", r).Msg("handler panic")
		}
	}()

	var env struct {
		Type domain.EventKind `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.ID())).Msg("bad json")
		return
	}

	h, ok := ctl.handlers[env.Type]
	if !ok {
		log.Warn().Str("module", "signal").Str("type", string(env.Type)).Msg("unknown signal")
		return
	}

	from, joined := ctl.Orch.IdentityOf(c.ID())
	if !joined && !h.anonymous {
		log.Warn().Str("module", "signal").Str("conn", string(c.ID())).Str("type", string(env.Type)).Msg("event before join dropped")
		return
	}
	h.fn(c, from, data)
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

// decode unmarshals a payload and logs malformed ones.
func decode(c *WsSignalConn, kind domain.EventKind, data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.ID())).Str("type", string(kind)).Msg("bad payload")
		return false
	}
	return true
}

func malformed(c *WsSignalConn, kind domain.EventKind, reason string) {
	log.Warn().Str("module", "signal").Str("conn", string(c.ID())).Str("type", string(kind)).Str("reason", reason).Msg("malformed payload dropped")
}
