// Package protocol defines the frames exchanged over the signaling WebSocket.
// Every frame is {"type": <event>, "payload": <json>}.
package protocol

import (
	"encoding/json"
	"fmt"
)

const (
	TypeJoinRoom   = "join-room"
	TypeLeaveRoom  = "leave-room"
	TypeAllUsers   = "all-users"
	TypeUserJoined = "user-joined"
	TypeUserLeft   = "user-left"
	TypeSignal     = "signal"
	TypeChat       = "chat-message"
	TypeSession    = "session"
	TypeWhoAmI     = "whoami"
	TypePing       = "ping"
	TypePong       = "pong"
	TypeError      = "error"
)

type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type JoinRoomPayload struct {
	Room string `json:"room"`
	User string `json:"user"`
	Mic  *bool  `json:"mic,omitempty"`
	Cam  *bool  `json:"cam,omitempty"`
}

type UserJoinedPayload struct {
	ID   string `json:"id"`
	User string `json:"user"`
}

// SignalRequest is what a client sends; the relay answers the peer with
// SignalDelivery. Data is never decoded on the server.
type SignalRequest struct {
	To   string          `json:"to"`
	Data json.RawMessage `json:"data"`
}

type SignalDelivery struct {
	From string          `json:"from"`
	Data json.RawMessage `json:"data"`
}

type ChatPayload struct {
	User string `json:"user"`
	Msg  string `json:"msg"`
}

type SessionPayload struct {
	ID string `json:"id"`
}

type WhoAmIPayload struct {
	ID   string `json:"id"`
	User string `json:"user"`
	Room string `json:"room,omitempty"`
}

type ErrorPayload struct {
	Op   string `json:"op"`
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// Encode wraps payload into a typed frame. A nil payload is omitted.
func Encode(t string, payload any) ([]byte, error) {
	msg := Message{Type: t}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", t, err)
		}
		msg.Payload = b
	}
	return json.Marshal(msg)
}

func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode frame: %w", err)
	}
	if msg.Type == "" {
		return Message{}, fmt.Errorf("decode frame: missing type")
	}
	return msg, nil
}

// DecodePayload unmarshals the payload into v.
func (m Message) DecodePayload(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("%s: %w", m.Type, err)
	}
	return nil
}
