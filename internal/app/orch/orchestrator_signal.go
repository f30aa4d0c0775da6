package orch

import (
	"bytes"
	"encoding/json"

	"github.com/gibridargos/live-suhbat/internal/core"
	"github.com/gibridargos/live-suhbat/internal/domain"
	"github.com/gibridargos/live-suhbat/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Relay forwards an opaque negotiation envelope from one session to another.
// The payload is never inspected.
func (o *Orchestrator) Relay(from core.SessionID, to string, data json.RawMessage) error {
	trimmed := bytes.TrimSpace(data)
	if to == "" || len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return domain.Malformed("signal", "to and data are required")
	}
	if core.SessionID(to) == from {
		return domain.Malformed("signal", "cannot signal self")
	}
	target, err := o.Registry.Get(core.SessionID(to))
	if err != nil {
		return domain.NewOpError("signal", domain.ErrUnknownRecipient, to)
	}

	frame, err := protocol.Encode(protocol.TypeSignal, protocol.SignalDelivery{From: string(from), Data: data})
	if err != nil {
		return domain.Malformed("signal", err.Error())
	}
	if err := target.Signal().TrySend(frame); err != nil {
		room, _, _ := o.Registry.RoomOf(target.ID())
		o.applyPolicy(room, core.PublishResult{Dropped: []core.MemberSession{target}})
		return domain.NewOpError("signal", domain.ErrOverloaded, to)
	}
	if o.Metrics != nil {
		o.Metrics.IncRelayed()
	}
	log.Debug().Str("module", "app.orch").Str("from", string(from)).Str("to", to).Msg("signal relayed")
	return nil
}
