package core

import (
	"errors"

	"github.com/gibridargos/live-suhbat/internal/domain"
)

// ErrRoomClosed is returned by a room that lost its last member and was
// discarded. Callers fetch a fresh room and retry.
var ErrRoomClosed = errors.New("room closed")

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

func (p *PublishResult) Merge(other PublishResult) {
	p.SendTo += other.SendTo
	p.Dropped = append(p.Dropped, other.Dropped...)
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID       domain.UserID `json:"id"`
	Username string        `json:"username"`
}

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
// Join and Leave run their callbacks under the room lock, so roster
// snapshots and the notifications built from them never interleave with
// another mutation of the same room.
type RoomService interface {
	ID() domain.RoomID
	MemberCount() int
	MembersSnapshot() []MemberDTO
	Members() []MemberSession
	Has(sid SessionID) bool

	Join(ms MemberSession, onJoin func(others []MemberSession)) (joined bool, err error)
	Leave(sid SessionID, onLeave func(remaining []MemberSession)) (left, empty bool)
	Broadcast(from SessionID, data Frame) PublishResult
	Publish(data Frame) PublishResult
}

type RoomInfo struct {
	Room        domain.RoomID `json:"room"`
	MemberCount int           `json:"client_count"`
}

// RoomDirectory maps room ids to live rooms. A room with no members has no
// entry.
type RoomDirectory interface {
	Join(room domain.RoomID, ms MemberSession, onJoin func(others []MemberSession)) bool
	Leave(room domain.RoomID, sid SessionID, onLeave func(remaining []MemberSession)) bool
	Members(room domain.RoomID) []MemberSession
	Get(room domain.RoomID) (RoomService, bool)
	List() []RoomInfo
}
