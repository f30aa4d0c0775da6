package orch

import (
	"strings"

	"github.com/gibridargos/live-suhbat/internal/core"
	"github.com/gibridargos/live-suhbat/internal/domain"
	"github.com/gibridargos/live-suhbat/internal/protocol"
	"github.com/rs/zerolog/log"
)

const MaxChatLen = 2000

// Chat accepts a message from sid for its current room. The record is
// stamped here, appended to the chat log, then published to every member,
// the sender included.
func (o *Orchestrator) Chat(sid core.SessionID, text string) error {
	if strings.TrimSpace(text) == "" {
		return domain.Malformed("chat", "empty message")
	}
	if len(text) > MaxChatLen {
		return domain.Malformed("chat", "message too long")
	}
	roomID, sess, ok := o.Registry.RoomOf(sid)
	if !ok {
		return domain.NewOpError("chat", domain.ErrNotAMember, string(sid))
	}
	if !o.ChatLimit.Allow(string(sid)) {
		return domain.NewOpError("chat", domain.ErrRateLimited, string(sid))
	}

	msg := domain.ChatMessage{
		Room: roomID,
		User: sess.Meta().User.Username,
		Text: text,
		Time: o.now().UTC(),
	}
	if o.Metrics != nil {
		o.Metrics.IncChat()
	}
	if o.ChatLog == nil {
		o.publishChat(msg)
		return nil
	}
	return o.ChatLog.Submit(msg, o.publishChat)
}

func (o *Orchestrator) publishChat(msg domain.ChatMessage) {
	room, ok := o.Rooms.Get(msg.Room)
	if !ok {
		return
	}
	b := msg.Broadcast()
	frame, err := protocol.Encode(protocol.TypeChat, protocol.ChatPayload{User: b.User, Msg: b.Msg})
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Msg("encode chat")
		return
	}
	res := room.Publish(frame)
	log.Debug().Str("module", "app.orch").Str("room", string(msg.Room)).Int("sent_to", res.SendTo).Msg("chat published")
	o.applyPolicy(msg.Room, res)
}
