package core

import (
	"sync"

	"github.com/gibridargos/live-suhbat/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	id     domain.RoomID
	mu     sync.RWMutex
	bySID  map[SessionID]MemberSession
	order  []SessionID
	closed bool
}

func NewRoomService(id domain.RoomID) RoomService {
	return &roomImpl{
		id:    id,
		bySID: make(map[SessionID]MemberSession),
	}
}

func (r *roomImpl) ID() domain.RoomID { return r.id }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

func (r *roomImpl) Has(sid SessionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bySID[sid]
	return ok
}

func (r *roomImpl) Join(ms MemberSession, onJoin func(others []MemberSession)) (bool, error) {
	sid := ms.ID()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false, ErrRoomClosed
	}
	if _, ok := r.bySID[sid]; ok {
		return false, nil
	}
	others := r.membersLocked()
	r.bySID[sid] = ms
	r.order = append(r.order, sid)
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("sid", string(sid)).Int("members", len(r.order)).Msg("member added")
	if onJoin != nil {
		onJoin(others)
	}
	return true, nil
}

// Leave removes sid. The room closes for good when its last member leaves.
func (r *roomImpl) Leave(sid SessionID, onLeave func(remaining []MemberSession)) (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySID[sid]; !ok {
		return false, len(r.bySID) == 0
	}
	delete(r.bySID, sid)
	for i, id := range r.order {
		if id == sid {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if len(r.bySID) == 0 {
		r.closed = true
	}
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("sid", string(sid)).Int("members", len(r.order)).Msg("member removed")
	if onLeave != nil {
		onLeave(r.membersLocked())
	}
	return true, r.closed
}

func (r *roomImpl) Broadcast(from SessionID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for _, sid := range r.order {
		if sid == from {
			continue
		}
		m := r.bySID[sid]
		if err := m.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, m)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("from", string(from)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

// Publish sends to every member, including whoever triggered it.
func (r *roomImpl) Publish(data Frame) PublishResult {
	return r.Broadcast("", data)
}

func (r *roomImpl) Members() []MemberSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.membersLocked()
}

func (r *roomImpl) membersLocked() []MemberSession {
	out := make([]MemberSession, 0, len(r.order))
	for _, sid := range r.order {
		out = append(out, r.bySID[sid])
	}
	return out
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberDTO, 0, len(r.order))
	for _, sid := range r.order {
		u := r.bySID[sid].Meta().User
		out = append(out, MemberDTO{ID: u.ID, Username: u.Username})
	}
	return out
}
