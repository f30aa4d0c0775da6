package signal

import "github.com/gibridargos/live-suhbat/internal/protocol"

func (ctl *SignalWSController) handlePing(
	conn *WsSignalConn,
) {
	ctl.sendJSON(conn, protocol.TypePong, nil)
}
