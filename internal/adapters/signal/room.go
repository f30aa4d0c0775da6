package signal

import (
	"github.com/gibridargos/live-suhbat/internal/core"
	"github.com/gibridargos/live-suhbat/internal/domain"
	"github.com/gibridargos/live-suhbat/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleJoin(
	sid core.SessionID,
	conn *WsSignalConn,
	msg protocol.Message,
) {
	var p protocol.JoinRoomPayload
	if err := msg.DecodePayload(&p); err != nil {
		ctl.reject(sid, conn, msg.Type, domain.Malformed(msg.Type, err.Error()))
		return
	}

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.Room).Str("user", p.User).Msg("join")
	if err := ctl.Orch.Join(sid, p.Room, p.User); err != nil {
		ctl.reject(sid, conn, msg.Type, err)
		return
	}
	if sess, err := ctl.Orch.Registry.Get(sid); err == nil {
		if p.Mic != nil {
			sess.Meta().Mic = *p.Mic
		}
		if p.Cam != nil {
			sess.Meta().Cam = *p.Cam
		}
	}
}

// handleLeave keeps the connection open.
func (ctl *SignalWSController) handleLeave(sid core.SessionID) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("leave")
	ctl.Orch.Leave(sid)
}
