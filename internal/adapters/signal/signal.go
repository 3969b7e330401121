package signal

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/Relay/internal/app/orch"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Settings tunes the websocket side of the controller.
type Settings struct {
	ReadLimit      int64
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	SendBuffer     int
	AllowedOrigins []string
}

type SignalWSController struct {
	Orch     *orch.Orchestrator
	Settings Settings

	upgrader websocket.Upgrader
	handlers map[domain.EventKind]handler
}

func NewSignalWSController(o *orch.Orchestrator, s Settings) *SignalWSController {
	ctl := &SignalWSController{
		Orch:     o,
		Settings: s,
	}
	ctl.upgrader = websocket.Upgrader{
		CheckOrigin: originChecker(s.AllowedOrigins),
	}
	ctl.handlers = ctl.dispatchTable()
	return ctl
}

// originChecker allows requests without an Origin header (non-browser
// clients) and browsers whose origin is listed. "*" allows any.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.TrimSpace(o), "/")] = struct{}{}
	}
	_, anyOrigin := set["*"]
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || anyOrigin {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

type WsSignalConn struct {
	id    core.ConnID
	token string
	conn  *websocket.Conn
	send  chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int, token string) *WsSignalConn {
	return &WsSignalConn{
		id:    core.ConnID(uuid.NewString()),
		token: token,
		conn:  ws,
		send:  make(chan core.Frame, buffer),
	}
}

func (c *WsSignalConn) ID() core.ConnID { return c.id }

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	token := c.GetString("client_token")

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("client", token).Msg("ws upgrade")
		return
	}

	conn := newWsSignalConn(ws, ctl.Settings.SendBuffer, token)
	log.Info().Str("module", "signal").Str("conn", string(conn.ID())).Str("client", token).Msg("new WS connection")
	ctl.Orch.Connect(conn)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, conn)
}
