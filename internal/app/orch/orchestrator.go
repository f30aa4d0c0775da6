package orch

import (
	"time"

	"github.com/gibridargos/live-suhbat/internal/app"
	"github.com/gibridargos/live-suhbat/internal/app/chatlog"
	"github.com/gibridargos/live-suhbat/internal/core"
	"github.com/gibridargos/live-suhbat/internal/domain"
	"github.com/gibridargos/live-suhbat/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Orchestrator ties the Session Registry and the Room Directory together and
// implements presence, signaling relay and chat fan-out on top of them.
type Orchestrator struct {
	Registry  *app.Registry
	Rooms     core.RoomDirectory
	Policy    app.Policy
	ChatLog   *chatlog.Pipeline
	ChatLimit *app.RateLimiter
	Metrics   *app.Metrics
	Now       func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Connect registers a fresh session for a new connection.
func (o *Orchestrator) Connect(sess core.MemberSession, cancel func()) {
	o.Registry.Register(sess, cancel)
	if o.Metrics != nil {
		o.Metrics.IncConn()
	}
	if frame, err := protocol.Encode(protocol.TypeSession, protocol.SessionPayload{ID: string(sess.ID())}); err == nil {
		_ = sess.Signal().TrySend(frame)
	}
}

// WhoAmI reports the session's identity, display name and room.
func (o *Orchestrator) WhoAmI(sid core.SessionID) (protocol.WhoAmIPayload, error) {
	sess, err := o.Registry.Get(sid)
	if err != nil {
		return protocol.WhoAmIPayload{}, domain.NewOpError("whoami", err, string(sid))
	}
	out := protocol.WhoAmIPayload{ID: string(sid), User: sess.Meta().User.Username}
	if room, _, ok := o.Registry.RoomOf(sid); ok {
		out.Room = string(room)
	}
	return out, nil
}

// applyPolicy runs the backpressure policy for members whose queue was full.
// It must be called outside any room lock.
func (o *Orchestrator) applyPolicy(roomID domain.RoomID, res core.PublishResult) {
	if len(res.Dropped) == 0 {
		return
	}
	room, _ := o.Rooms.Get(roomID)
	for _, slow := range res.Dropped {
		action := app.KickMember
		if o.Policy != nil {
			action = o.Policy.OnBackPressure(room, slow)
		}
		log.Warn().Str("module", "app.orch").Str("sid", string(slow.ID())).Str("room", string(roomID)).Str("action", action.String()).Msg("backpressure")
		switch action {
		case app.KickMember:
			o.KickBySID(slow.ID())
		case app.MarkSlow, app.DropFrame, app.NoAction:
		}
	}
}

func sendTo(targets []core.MemberSession, frame core.Frame) core.PublishResult {
	res := core.PublishResult{}
	for _, m := range targets {
		if err := m.Signal().TrySend(frame); err != nil {
			res.Dropped = append(res.Dropped, m)
			continue
		}
		res.SendTo++
	}
	return res
}
