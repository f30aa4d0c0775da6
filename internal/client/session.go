package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gibridargos/live-suhbat/internal/peer"
	"github.com/gibridargos/live-suhbat/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Events are user-facing notifications. Any of them may be nil.
type Events struct {
	OnSession    func(id string)
	OnRoster     func(ids []string)
	OnJoined     func(id, user string)
	OnLeft       func(id string)
	OnChat       func(msg protocol.ChatPayload)
	OnWhoAmI     func(who protocol.WhoAmIPayload)
	OnError      func(e protocol.ErrorPayload)
	OnPeerState  func(id string, s peer.State)
	OnStream     func(id string, s peer.Stream)
	OnPeerClosed func(id string, reason error)
}

// Session binds a signaling Client to a peer.Manager for one room visit.
type Session struct {
	client  *Client
	factory peer.TransportFactory
	timeout time.Duration
	events  Events

	mu      sync.Mutex
	self    string
	manager *peer.Manager
	names   map[string]string
}

func NewSession(c *Client, factory peer.TransportFactory, timeout time.Duration, events Events) *Session {
	return &Session{
		client:  c,
		factory: factory,
		timeout: timeout,
		events:  events,
		names:   make(map[string]string),
	}
}

func (s *Session) Self() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.self
}

// Name returns the display name announced for id, if any.
func (s *Session) Name(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.names[id]
}

// Manager returns the peer manager once the session id is known.
func (s *Session) Manager() *peer.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manager
}

// Leave leaves the room and tears down every peer; the connection stays up.
func (s *Session) Leave(ctx context.Context) error {
	err := s.client.LeaveRoom()
	s.mu.Lock()
	old := s.manager
	if s.self != "" {
		s.manager = s.newManager(ctx, s.self)
	}
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return err
}

func (s *Session) newManager(ctx context.Context, self string) *peer.Manager {
	return peer.NewManager(ctx, self, s.factory, s.client, peer.Options{
		NegotiationTimeout: s.timeout,
		OnStream:           s.events.OnStream,
		OnClosed:           s.events.OnPeerClosed,
		OnState:            s.events.OnPeerState,
	})
}

// Run dispatches server events until ctx ends or the connection drops.
// Frames are handled one at a time, so each peer sees them in arrival order.
func (s *Session) Run(ctx context.Context) error {
	defer func() {
		if m := s.Manager(); m != nil {
			m.Close()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			s.client.Close()
			return ctx.Err()
		case msg, ok := <-s.client.Incoming():
			if !ok {
				return ErrClosed
			}
			s.dispatch(ctx, msg)
		}
	}
}

func (s *Session) dispatch(ctx context.Context, msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeSession:
		var p protocol.SessionPayload
		if !decode(msg, &p) {
			return
		}
		s.mu.Lock()
		s.self = p.ID
		s.manager = s.newManager(ctx, p.ID)
		s.mu.Unlock()
		if s.events.OnSession != nil {
			s.events.OnSession(p.ID)
		}

	case protocol.TypeAllUsers:
		var ids []string
		if !decode(msg, &ids) {
			return
		}
		if m := s.Manager(); m != nil {
			m.HandleRoster(ids)
		}
		if s.events.OnRoster != nil {
			s.events.OnRoster(ids)
		}

	case protocol.TypeUserJoined:
		var p protocol.UserJoinedPayload
		if !decode(msg, &p) {
			return
		}
		s.mu.Lock()
		s.names[p.ID] = p.User
		s.mu.Unlock()
		if m := s.Manager(); m != nil {
			m.HandlePeerJoined(p.ID)
		}
		if s.events.OnJoined != nil {
			s.events.OnJoined(p.ID, p.User)
		}

	case protocol.TypeUserLeft:
		var id string
		if !decode(msg, &id) {
			return
		}
		if m := s.Manager(); m != nil {
			m.HandlePeerLeft(id)
		}
		s.mu.Lock()
		delete(s.names, id)
		s.mu.Unlock()
		if s.events.OnLeft != nil {
			s.events.OnLeft(id)
		}

	case protocol.TypeSignal:
		var p protocol.SignalDelivery
		if !decode(msg, &p) {
			return
		}
		m := s.Manager()
		if m == nil {
			return
		}
		if err := m.HandleSignal(p.From, p.Data); err != nil {
			log.Warn().Err(err).Str("module", "client").Str("peer", p.From).Msg("signal dropped")
		}

	case protocol.TypeChat:
		var p protocol.ChatPayload
		if decode(msg, &p) && s.events.OnChat != nil {
			s.events.OnChat(p)
		}

	case protocol.TypeWhoAmI:
		var p protocol.WhoAmIPayload
		if decode(msg, &p) && s.events.OnWhoAmI != nil {
			s.events.OnWhoAmI(p)
		}

	case protocol.TypeError:
		var p protocol.ErrorPayload
		if decode(msg, &p) {
			log.Warn().Str("module", "client").Str("op", p.Op).Str("code", p.Code).Msg(p.Msg)
			if s.events.OnError != nil {
				s.events.OnError(p)
			}
		}

	case protocol.TypePong:
	default:
		log.Debug().Str("module", "client").Str("type", msg.Type).Msg("unhandled frame")
	}
}

func decode(msg protocol.Message, v any) bool {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		log.Warn().Err(err).Str("module", "client").Str("type", msg.Type).Msg("bad payload")
		return false
	}
	return true
}
