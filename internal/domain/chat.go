package domain

import "time"

// ChatMessage is the persisted form of a chat line. Time is assigned by the
// server when the message is accepted.
type ChatMessage struct {
	Room RoomID    `json:"room"`
	User string    `json:"user"`
	Text string    `json:"text"`
	Time time.Time `json:"time"`
}

// ChatBroadcast is what room members receive.
type ChatBroadcast struct {
	User string `json:"user"`
	Msg  string `json:"msg"`
}

func (m ChatMessage) Broadcast() ChatBroadcast {
	return ChatBroadcast{User: m.User, Msg: m.Text}
}
