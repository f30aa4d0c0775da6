package app

import (
	"errors"
	"sort"
	"sync"

	"github.com/gibridargos/live-suhbat/internal/core"
	"github.com/gibridargos/live-suhbat/internal/domain"
	"github.com/rs/zerolog/log"
)

// RoomManagerImpl is the Room Directory. The manager lock only guards the
// map; every membership change takes the lock of its own room.
type RoomManagerImpl struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]core.RoomService
}

func NewRoomManager() *RoomManagerImpl {
	return &RoomManagerImpl{rooms: make(map[domain.RoomID]core.RoomService)}
}

func (f *RoomManagerImpl) getOrCreate(id domain.RoomID) core.RoomService {
	f.mu.RLock()
	room, ok := f.rooms[id]
	f.mu.RUnlock()
	if ok {
		return room
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok = f.rooms[id]; ok {
		return room
	}
	room = core.NewRoomService(id)
	f.rooms[id] = room
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room created")
	return room
}

// Join adds ms to room, creating it on first use. It reports false when ms
// was already a member.
func (f *RoomManagerImpl) Join(id domain.RoomID, ms core.MemberSession, onJoin func(others []core.MemberSession)) bool {
	for {
		room := f.getOrCreate(id)
		joined, err := room.Join(ms, onJoin)
		if errors.Is(err, core.ErrRoomClosed) {
			// lost a race with the last leave; the room is being dropped
			f.drop(id, room)
			continue
		}
		return joined
	}
}

// Leave removes sid from room and discards the room once it is empty.
func (f *RoomManagerImpl) Leave(id domain.RoomID, sid core.SessionID, onLeave func(remaining []core.MemberSession)) bool {
	room, ok := f.Get(id)
	if !ok {
		return false
	}
	left, empty := room.Leave(sid, onLeave)
	if empty {
		f.drop(id, room)
	}
	return left
}

func (f *RoomManagerImpl) drop(id domain.RoomID, room core.RoomService) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.rooms[id]; ok && cur == room {
		delete(f.rooms, id)
		log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room discarded")
	}
}

func (f *RoomManagerImpl) Get(id domain.RoomID) (core.RoomService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[id]
	return room, ok
}

func (f *RoomManagerImpl) Members(id domain.RoomID) []core.MemberSession {
	room, ok := f.Get(id)
	if !ok {
		return []core.MemberSession{}
	}
	return room.Members()
}

func (f *RoomManagerImpl) List() []core.RoomInfo {
	f.mu.RLock()
	rooms := make([]core.RoomService, 0, len(f.rooms))
	for _, r := range f.rooms {
		rooms = append(rooms, r)
	}
	f.mu.RUnlock()

	out := make([]core.RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		if n := r.MemberCount(); n > 0 {
			out = append(out, core.RoomInfo{Room: r.ID(), MemberCount: n})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Room < out[j].Room })
	return out
}
