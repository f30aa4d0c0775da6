package signal

import (
	"github.com/gibridargos/live-suhbat/internal/core"
	"github.com/gibridargos/live-suhbat/internal/domain"
	"github.com/gibridargos/live-suhbat/internal/protocol"
)

func (ctl *SignalWSController) handleChat(
	sid core.SessionID,
	conn *WsSignalConn,
	msg protocol.Message,
) {
	text, err := decodeString(msg)
	if err != nil {
		ctl.reject(sid, conn, msg.Type, domain.Malformed(msg.Type, "chat payload must be a string"))
		return
	}
	if err := ctl.Orch.Chat(sid, text); err != nil {
		ctl.reject(sid, conn, msg.Type, err)
	}
}
