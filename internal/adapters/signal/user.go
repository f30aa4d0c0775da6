package signal

import (
	"github.com/gibridargos/live-suhbat/internal/core"
	"github.com/gibridargos/live-suhbat/internal/protocol"
)

func (ctl *SignalWSController) handleWhoAmI(
	sid core.SessionID,
	conn *WsSignalConn,
) {
	who, err := ctl.Orch.WhoAmI(sid)
	if err != nil {
		ctl.reject(sid, conn, protocol.TypeWhoAmI, err)
		return
	}
	ctl.sendJSON(conn, protocol.TypeWhoAmI, who)
}
