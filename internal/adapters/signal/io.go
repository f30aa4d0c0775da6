package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gibridargos/live-suhbat/internal/core"
	"github.com/gibridargos/live-suhbat/internal/domain"
	"github.com/gibridargos/live-suhbat/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.settings.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(ctl.settings.WriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.settings.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(ctl.settings.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping failed")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, sid core.SessionID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.Orch.Disconnect(sid)
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.settings.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.settings.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.settings.PongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				}
				return
			}
			_ = c.conn.SetReadDeadline(time.Now().Add(ctl.settings.PongWait))
			ctl.handleSignal(sid, c, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(sid core.SessionID, c *WsSignalConn, data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		ctl.reject(sid, c, "decode", domain.Malformed("decode", err.Error()))
		return
	}

	switch msg.Type {
	case protocol.TypeJoinRoom:
		ctl.handleJoin(sid, c, msg)
	case protocol.TypeLeaveRoom:
		ctl.handleLeave(sid)
	case protocol.TypeSignal:
		ctl.handleRelay(sid, c, msg)
	case protocol.TypeChat:
		ctl.handleChat(sid, c, msg)
	case protocol.TypePing:
		ctl.handlePing(c)
	case protocol.TypeWhoAmI:
		ctl.handleWhoAmI(sid, c)
	default:
		ctl.reject(sid, c, msg.Type, domain.Malformed(msg.Type, "unknown event"))
	}
}

// reject logs a dropped request and, when enabled, tells the sender why.
func (ctl *SignalWSController) reject(sid core.SessionID, c *WsSignalConn, op string, err error) {
	log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("op", op).Str("code", domain.Code(err)).Msg("request dropped")
	if ctl.Orch.Metrics != nil {
		ctl.Orch.Metrics.IncDropped()
	}
	if !ctl.settings.AckErrors {
		return
	}
	ctl.sendJSON(c, protocol.TypeError, protocol.ErrorPayload{Op: op, Code: domain.Code(err), Msg: err.Error()})
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, t string, v any) {
	b, err := protocol.Encode(t, v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func decodeString(msg protocol.Message) (string, error) {
	var s string
	if err := json.Unmarshal(msg.Payload, &s); err != nil {
		return "", err
	}
	return s, nil
}
