package signal

import (
	"github.com/gibridargos/live-suhbat/internal/core"
	"github.com/gibridargos/live-suhbat/internal/domain"
	"github.com/gibridargos/live-suhbat/internal/protocol"
)

func (ctl *SignalWSController) handleRelay(
	sid core.SessionID,
	conn *WsSignalConn,
	msg protocol.Message,
) {
	var p protocol.SignalRequest
	if err := msg.DecodePayload(&p); err != nil {
		ctl.reject(sid, conn, msg.Type, domain.Malformed(msg.Type, err.Error()))
		return
	}
	if err := ctl.Orch.Relay(sid, p.To, p.Data); err != nil {
		ctl.reject(sid, conn, msg.Type, err)
	}
}
