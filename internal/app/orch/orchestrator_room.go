package orch

import (
	"errors"
	"strings"

	"github.com/gibridargos/live-suhbat/internal/core"
	"github.com/gibridargos/live-suhbat/internal/domain"
	"github.com/gibridargos/live-suhbat/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Join puts sid into room under the display name user. The joiner receives
// the roster of members present before it; each of them receives one
// user-joined notification. Joining the current room again is a no-op.
func (o *Orchestrator) Join(sid core.SessionID, rawRoom, user string) error {
	if strings.TrimSpace(rawRoom) == "" || strings.TrimSpace(user) == "" {
		return domain.Malformed("join", "room and user are required")
	}
	roomID, err := domain.ParseRoomID(rawRoom)
	if err != nil {
		return err
	}
	sess, err := o.Registry.Get(sid)
	if err != nil {
		return domain.NewOpError("join", err, string(sid))
	}

	if cur, _, ok := o.Registry.RoomOf(sid); ok {
		if cur == roomID {
			log.Debug().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(roomID)).Msg("already in room")
			return nil
		}
		o.leave(sid, cur)
		log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("from_room", string(cur)).Msg("left previous room")
	}

	if err := o.Registry.SetUsername(sid, user); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewOpError("join", err, string(sid))
		}
		return domain.NewOpError("join", domain.ErrMalformedRequest, err.Error())
	}
	if !o.Registry.SetRoom(sid, roomID) {
		return domain.NewOpError("join", domain.ErrNotFound, string(sid))
	}

	joinedFrame, err := protocol.Encode(protocol.TypeUserJoined, protocol.UserJoinedPayload{
		ID:   string(sid),
		User: sess.Meta().User.Username,
	})
	if err != nil {
		return err
	}

	var res core.PublishResult
	o.Rooms.Join(roomID, sess, func(others []core.MemberSession) {
		ids := make([]string, 0, len(others))
		for _, m := range others {
			ids = append(ids, string(m.ID()))
		}
		roster, err := protocol.Encode(protocol.TypeAllUsers, ids)
		if err != nil {
			log.Error().Err(err).Str("module", "app.orch").Msg("encode roster")
			return
		}
		res.Merge(sendTo(others, joinedFrame))
		res.Merge(sendTo([]core.MemberSession{sess}, roster))
	})

	// A kick from another goroutine may have removed the session after
	// SetRoom; its Disconnect found nothing to leave yet.
	if _, err := o.Registry.Get(sid); err != nil {
		log.Warn().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(roomID)).Msg("session gone during join")
		o.leave(sid, roomID)
		o.applyPolicy(roomID, res)
		return domain.NewOpError("join", domain.ErrNotFound, string(sid))
	}

	if o.Metrics != nil {
		o.Metrics.IncJoin()
	}
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(roomID)).Str("user", sess.Meta().User.Username).Msg("joined room")
	o.applyPolicy(roomID, res)
	return nil
}

// Leave takes sid out of its room and tells the remaining members.
// Leaving without a room is a no-op.
func (o *Orchestrator) Leave(sid core.SessionID) {
	room, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return
	}
	o.leave(sid, room)
}

func (o *Orchestrator) leave(sid core.SessionID, roomID domain.RoomID) {
	o.Registry.ClearRoom(sid)
	leftFrame, err := protocol.Encode(protocol.TypeUserLeft, string(sid))
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Msg("encode user-left")
		return
	}
	var res core.PublishResult
	left := o.Rooms.Leave(roomID, sid, func(remaining []core.MemberSession) {
		res = sendTo(remaining, leftFrame)
	})
	if !left {
		return
	}
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(roomID)).Int("notified", res.SendTo).Msg("left room")
	o.applyPolicy(roomID, res)
}

// Disconnect runs when a connection goes away. It is idempotent.
func (o *Orchestrator) Disconnect(sid core.SessionID) {
	o.Leave(sid)
	o.Registry.Cancel(sid)
	if !o.Registry.Remove(sid) {
		return
	}
	if o.ChatLimit != nil {
		o.ChatLimit.Forget(string(sid))
	}
	if o.Metrics != nil {
		o.Metrics.DecConn()
	}
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Msg("disconnected")
}

// KickBySID disconnects sid and closes its transport.
func (o *Orchestrator) KickBySID(sid core.SessionID) {
	sess, err := o.Registry.Get(sid)
	if err != nil {
		return
	}
	o.Disconnect(sid)
	sess.Signal().Close()
	if o.Metrics != nil {
		o.Metrics.IncKicked()
	}
	log.Warn().Str("module", "app.orch").Str("sid", string(sid)).Msg("kicked")
}
