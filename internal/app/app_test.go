package app

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/gibridargos/live-suhbat/internal/core"
	"github.com/gibridargos/live-suhbat/internal/domain"
)

type nopConn struct{}

func (nopConn) TrySend(core.Frame) error { return nil }
func (nopConn) Close()                   {}

func newSession(sid string) core.MemberSession {
	user := &domain.User{ID: domain.UserID(sid), Username: "guest"}
	return core.NewMemberSession(core.SessionID(sid), domain.NewMember(user), nopConn{})
}

func TestRegistryLifecycle(t *testing.T) {
	reg := NewRegistry()
	canceled := false
	reg.Register(newSession("s1"), func() { canceled = true })

	sess, err := reg.Get("s1")
	if err != nil || sess.ID() != "s1" {
		t.Fatalf("Get: %v %v", sess, err)
	}
	if _, _, ok := reg.RoomOf("s1"); ok {
		t.Fatalf("fresh session must have no room")
	}
	if !reg.SetRoom("s1", "r1") {
		t.Fatalf("SetRoom failed")
	}
	if room, _, ok := reg.RoomOf("s1"); !ok || room != "r1" {
		t.Fatalf("RoomOf = %q %v", room, ok)
	}
	if err := reg.SetUsername("s1", "alice"); err != nil || sess.Meta().User.Username != "alice" {
		t.Fatalf("SetUsername: %v", err)
	}
	if err := reg.SetUsername("s1", ""); !errors.Is(err, domain.ErrUsernameEmpty) {
		t.Fatalf("expected ErrUsernameEmpty, got %v", err)
	}
	if !reg.Cancel("s1") || !canceled {
		t.Fatalf("Cancel must invoke the bound cancel func")
	}
	if !reg.Remove("s1") {
		t.Fatalf("first Remove must report true")
	}
	if reg.Remove("s1") {
		t.Fatalf("second Remove must be a no-op")
	}
	if _, err := reg.Get("s1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func memberIDs(ms []core.MemberSession) map[core.SessionID]bool {
	out := make(map[core.SessionID]bool, len(ms))
	for _, m := range ms {
		out[m.ID()] = true
	}
	return out
}

func TestRoomManagerMatchesSetModel(t *testing.T) {
	rooms := NewRoomManager()
	model := map[domain.RoomID]map[core.SessionID]bool{}
	rnd := rand.New(rand.NewSource(7))
	sessions := make([]core.MemberSession, 6)
	for i := range sessions {
		sessions[i] = newSession(fmt.Sprintf("s%d", i))
	}
	roomIDs := []domain.RoomID{"r1", "r2", "r3"}

	for step := 0; step < 500; step++ {
		room := roomIDs[rnd.Intn(len(roomIDs))]
		sess := sessions[rnd.Intn(len(sessions))]
		if model[room] == nil {
			model[room] = map[core.SessionID]bool{}
		}
		if rnd.Intn(2) == 0 {
			rooms.Join(room, sess, nil)
			model[room][sess.ID()] = true
		} else {
			rooms.Leave(room, sess.ID(), nil)
			delete(model[room], sess.ID())
		}

		for _, id := range roomIDs {
			got := memberIDs(rooms.Members(id))
			if len(got) != len(model[id]) {
				t.Fatalf("step %d room %s: got %v want %v", step, id, got, model[id])
			}
			for sid := range model[id] {
				if !got[sid] {
					t.Fatalf("step %d room %s: missing %s", step, id, sid)
				}
			}
			if _, exists := rooms.Get(id); exists != (len(model[id]) > 0) {
				t.Fatalf("step %d room %s: entry exists=%v with %d members", step, id, exists, len(model[id]))
			}
		}
	}
}

func TestRoomManagerJoinReturnsRosterWithoutJoiner(t *testing.T) {
	rooms := NewRoomManager()
	rooms.Join("r1", newSession("a"), nil)
	var roster map[core.SessionID]bool
	if !rooms.Join("r1", newSession("b"), func(others []core.MemberSession) { roster = memberIDs(others) }) {
		t.Fatalf("join b must succeed")
	}
	if len(roster) != 1 || !roster["a"] {
		t.Fatalf("roster = %v", roster)
	}
	if !memberIDs(rooms.Members("r1"))["b"] {
		t.Fatalf("members must include joiner")
	}
	if rooms.Join("r1", newSession("b"), nil) {
		t.Fatalf("double join must report false")
	}
	if got := rooms.List(); len(got) != 1 || got[0].MemberCount != 2 {
		t.Fatalf("List = %+v", got)
	}
}

func TestRoomManagerConcurrentChurn(t *testing.T) {
	rooms := NewRoomManager()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			sess := newSession(fmt.Sprintf("w%d", w))
			for i := 0; i < 200; i++ {
				rooms.Join("hot", sess, nil)
				rooms.Leave("hot", sess.ID(), nil)
			}
		}(w)
	}
	wg.Wait()
	if _, ok := rooms.Get("hot"); ok {
		t.Fatalf("room must be discarded after everyone left")
	}
	if n := len(rooms.Members("hot")); n != 0 {
		t.Fatalf("members after churn = %d", n)
	}
}

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Second)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	if !rl.Allow("k") || !rl.Allow("k") {
		t.Fatalf("first two attempts must pass")
	}
	if rl.Allow("k") {
		t.Fatalf("third attempt inside window must be blocked")
	}
	if !rl.Allow("other") {
		t.Fatalf("keys are independent")
	}
	now = now.Add(1100 * time.Millisecond)
	if !rl.Allow("k") {
		t.Fatalf("attempt after window must pass")
	}
	rl.Forget("k")
	if !rl.Allow("k") || !rl.Allow("k") {
		t.Fatalf("Forget must reset history")
	}
}
