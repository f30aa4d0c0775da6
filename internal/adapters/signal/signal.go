package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gibridargos/live-suhbat/internal/app/orch"
	"github.com/gibridargos/live-suhbat/internal/config"
	"github.com/gibridargos/live-suhbat/internal/core"
	"github.com/gibridargos/live-suhbat/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// Settings tunes the WebSocket pumps.
type Settings struct {
	ReadLimit  int64
	PingPeriod time.Duration
	PongWait   time.Duration
	WriteWait  time.Duration
	SendBuffer int
	AckErrors  bool
}

func SettingsFrom(cfg *config.Config) Settings {
	return Settings{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		PongWait:   cfg.PongWait,
		WriteWait:  cfg.WriteWait,
		SendBuffer: cfg.SendBuffer,
		AckErrors:  cfg.AckErrors,
	}
}

type SignalWSController struct {
	Orch     *orch.Orchestrator
	settings Settings
}

func NewSignalWSController(o *orch.Orchestrator, settings Settings) *SignalWSController {
	return &SignalWSController{
		Orch:     o,
		settings: settings,
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
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

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and binds a new session to it. The
// display name defaults to the logged-in username, if any.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context, displayName string) {
	sid := core.SessionID(uuid.NewString())

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("remote", c.ClientIP()).Msg("new WS connection")

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.settings.SendBuffer),
	}

	if displayName == "" {
		displayName = "guest"
	}
	user, err := domain.NewUser(domain.UserID(sid), displayName)
	if err != nil {
		user = &domain.User{ID: domain.UserID(sid), Username: "guest"}
	}
	sess := core.NewMemberSession(sid, domain.NewMember(user), conn)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Connect(sess, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, conn)
}
