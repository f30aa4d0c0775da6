package orch

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gibridargos/live-suhbat/internal/app"
	"github.com/gibridargos/live-suhbat/internal/app/chatlog"
	"github.com/gibridargos/live-suhbat/internal/core"
	"github.com/gibridargos/live-suhbat/internal/domain"
	"github.com/gibridargos/live-suhbat/internal/protocol"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []protocol.Message
	full   bool
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full || c.closed {
		return errors.New("backpressure")
	}
	msg, err := protocol.Decode(f)
	if err != nil {
		return err
	}
	c.frames = append(c.frames, msg)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) byType(t string) []protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []protocol.Message
	for _, m := range c.frames {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func newTestOrchestrator() *Orchestrator {
	return &Orchestrator{
		Registry:  app.NewRegistry(),
		Rooms:     app.NewRoomManager(),
		Policy:    app.SimplePolicy{},
		ChatLimit: app.NewRateLimiter(100, time.Second),
		Metrics:   app.NewMetrics(),
	}
}

func connect(o *Orchestrator, sid string) *fakeConn {
	conn := &fakeConn{}
	user := &domain.User{ID: domain.UserID(sid), Username: "guest"}
	o.Connect(core.NewMemberSession(core.SessionID(sid), domain.NewMember(user), conn), func() {})
	return conn
}

func mustJoin(t *testing.T, o *Orchestrator, sid, room, user string) {
	t.Helper()
	if err := o.Join(core.SessionID(sid), room, user); err != nil {
		t.Fatalf("join %s: %v", sid, err)
	}
}

func roster(t *testing.T, c *fakeConn) [][]string {
	t.Helper()
	var out [][]string
	for _, m := range c.byType(protocol.TypeAllUsers) {
		var ids []string
		if err := json.Unmarshal(m.Payload, &ids); err != nil {
			t.Fatalf("roster payload: %v", err)
		}
		out = append(out, ids)
	}
	return out
}

func memberSet(o *Orchestrator, room domain.RoomID) map[core.SessionID]bool {
	out := map[core.SessionID]bool{}
	for _, m := range o.Rooms.Members(room) {
		out[m.ID()] = true
	}
	return out
}

func TestConnectSendsSessionID(t *testing.T) {
	o := newTestOrchestrator()
	a := connect(o, "a")
	frames := a.byType(protocol.TypeSession)
	if len(frames) != 1 {
		t.Fatalf("expected one session frame, got %d", len(frames))
	}
	var p protocol.SessionPayload
	if err := frames[0].DecodePayload(&p); err != nil || p.ID != "a" {
		t.Fatalf("session payload %+v %v", p, err)
	}
}

func TestJoinDeliversRosterAndArrivals(t *testing.T) {
	o := newTestOrchestrator()
	a, b, c := connect(o, "a"), connect(o, "b"), connect(o, "c")

	mustJoin(t, o, "a", "r1", "alice")
	mustJoin(t, o, "b", "r1", "bob")
	mustJoin(t, o, "c", "r1", "carol")

	if got := roster(t, a); len(got) != 1 || len(got[0]) != 0 {
		t.Fatalf("a roster = %v", got)
	}
	if got := roster(t, b); len(got) != 1 || len(got[0]) != 1 || got[0][0] != "a" {
		t.Fatalf("b roster = %v", got)
	}
	if got := roster(t, c); len(got) != 1 || len(got[0]) != 2 || got[0][0] != "a" || got[0][1] != "b" {
		t.Fatalf("c roster = %v", got)
	}

	if n := len(a.byType(protocol.TypeUserJoined)); n != 2 {
		t.Fatalf("a must see b and c arrive, got %d", n)
	}
	joined := b.byType(protocol.TypeUserJoined)
	if len(joined) != 1 {
		t.Fatalf("b must see exactly one arrival, got %d", len(joined))
	}
	var p protocol.UserJoinedPayload
	if err := joined[0].DecodePayload(&p); err != nil || p.ID != "c" || p.User != "carol" {
		t.Fatalf("user-joined payload %+v %v", p, err)
	}
	if n := len(c.byType(protocol.TypeUserJoined)); n != 0 {
		t.Fatalf("joiner must not be notified of itself, got %d", n)
	}
	if m := memberSet(o, "r1"); len(m) != 3 {
		t.Fatalf("members = %v", m)
	}
}

func TestJoinRequiresRoomAndUser(t *testing.T) {
	o := newTestOrchestrator()
	a := connect(o, "a")
	for _, tc := range []struct{ room, user string }{{"", "alice"}, {"r1", ""}, {"  ", " "}} {
		err := o.Join("a", tc.room, tc.user)
		if !errors.Is(err, domain.ErrMalformedRequest) {
			t.Fatalf("join(%q,%q): expected malformed, got %v", tc.room, tc.user, err)
		}
	}
	if _, _, ok := o.Registry.RoomOf("a"); ok {
		t.Fatalf("rejected join must not assign a room")
	}
	if n := len(a.byType(protocol.TypeAllUsers)); n != 0 {
		t.Fatalf("rejected join must not deliver a roster")
	}
}

func TestDoubleJoinIsNoop(t *testing.T) {
	o := newTestOrchestrator()
	a, b := connect(o, "a"), connect(o, "b")
	mustJoin(t, o, "a", "r1", "alice")
	mustJoin(t, o, "b", "r1", "bob")
	mustJoin(t, o, "b", "r1", "bob")

	if n := len(roster(t, b)); n != 1 {
		t.Fatalf("b got %d rosters", n)
	}
	if n := len(a.byType(protocol.TypeUserJoined)); n != 1 {
		t.Fatalf("a got %d arrivals", n)
	}
}

func TestJoinOtherRoomLeavesPrevious(t *testing.T) {
	o := newTestOrchestrator()
	a := connect(o, "a")
	connect(o, "b")
	mustJoin(t, o, "a", "r1", "alice")
	mustJoin(t, o, "b", "r1", "bob")
	mustJoin(t, o, "b", "r2", "bob")

	left := a.byType(protocol.TypeUserLeft)
	if len(left) != 1 {
		t.Fatalf("a must see b leave once, got %d", len(left))
	}
	if memberSet(o, "r1")["b"] || !memberSet(o, "r2")["b"] {
		t.Fatalf("b must belong to r2 only")
	}
}

func TestDisconnectNotifiesEachRemainingMemberOnce(t *testing.T) {
	o := newTestOrchestrator()
	a, b, c := connect(o, "a"), connect(o, "b"), connect(o, "c")
	mustJoin(t, o, "a", "r1", "alice")
	mustJoin(t, o, "b", "r1", "bob")
	mustJoin(t, o, "c", "r1", "carol")

	o.Disconnect("b")
	o.Disconnect("b")
	o.Leave("b")

	for name, conn := range map[string]*fakeConn{"a": a, "c": c} {
		left := conn.byType(protocol.TypeUserLeft)
		if len(left) != 1 {
			t.Fatalf("%s got %d user-left frames", name, len(left))
		}
		var id string
		if err := left[0].DecodePayload(&id); err != nil || id != "b" {
			t.Fatalf("%s user-left payload %q %v", name, id, err)
		}
	}
	if n := len(b.byType(protocol.TypeUserLeft)); n != 0 {
		t.Fatalf("departed session must not be notified")
	}
	if memberSet(o, "r1")["b"] {
		t.Fatalf("b still listed in r1")
	}
	if _, err := o.Registry.Get("b"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("b still registered: %v", err)
	}
}

func TestLastLeaveDiscardsRoom(t *testing.T) {
	o := newTestOrchestrator()
	connect(o, "a")
	mustJoin(t, o, "a", "r1", "alice")
	o.Leave("a")
	if _, ok := o.Rooms.Get("r1"); ok {
		t.Fatalf("empty room must have no entry")
	}
	if got := o.Rooms.List(); len(got) != 0 {
		t.Fatalf("List = %+v", got)
	}
}

func TestRelayRejections(t *testing.T) {
	o := newTestOrchestrator()
	a := connect(o, "a")
	data := json.RawMessage(`{"sdp":{"type":"offer","sdp":"v=0"}}`)

	if err := o.Relay("a", "a", data); !errors.Is(err, domain.ErrMalformedRequest) {
		t.Fatalf("self relay: %v", err)
	}
	if err := o.Relay("a", "", data); !errors.Is(err, domain.ErrMalformedRequest) {
		t.Fatalf("missing to: %v", err)
	}
	if err := o.Relay("a", "b", nil); !errors.Is(err, domain.ErrMalformedRequest) {
		t.Fatalf("missing data: %v", err)
	}
	if err := o.Relay("a", "b", json.RawMessage(" null ")); !errors.Is(err, domain.ErrMalformedRequest) {
		t.Fatalf("null data: %v", err)
	}
	if err := o.Relay("a", "ghost", data); !errors.Is(err, domain.ErrUnknownRecipient) {
		t.Fatalf("unknown recipient: %v", err)
	}
	if n := len(a.byType(protocol.TypeSignal)); n != 0 {
		t.Fatalf("sender must never receive its own envelope")
	}
}

func TestRelayOfferAnswerRoundTrip(t *testing.T) {
	o := newTestOrchestrator()
	a, b := connect(o, "a"), connect(o, "b")
	mustJoin(t, o, "a", "r1", "alice")
	mustJoin(t, o, "b", "r1", "bob")

	offer := json.RawMessage(`{"sdp":{"type":"offer","sdp":"o"}}`)
	if err := o.Relay("b", "a", offer); err != nil {
		t.Fatalf("relay offer: %v", err)
	}
	got := a.byType(protocol.TypeSignal)
	if len(got) != 1 {
		t.Fatalf("a got %d signals", len(got))
	}
	var in protocol.SignalDelivery
	if err := got[0].DecodePayload(&in); err != nil || in.From != "b" {
		t.Fatalf("offer delivery %+v %v", in, err)
	}

	answer := json.RawMessage(`{"sdp":{"type":"answer","sdp":"a"}}`)
	if err := o.Relay("a", in.From, answer); err != nil {
		t.Fatalf("relay answer: %v", err)
	}
	got = b.byType(protocol.TypeSignal)
	if len(got) != 1 {
		t.Fatalf("b got %d signals", len(got))
	}
	if err := got[0].DecodePayload(&in); err != nil || in.From != "a" || string(in.Data) != string(answer) {
		t.Fatalf("answer delivery %+v %v", in, err)
	}
}

func TestRelayAfterDisconnectIsUnknownRecipient(t *testing.T) {
	o := newTestOrchestrator()
	connect(o, "a")
	connect(o, "b")
	o.Disconnect("b")
	err := o.Relay("a", "b", json.RawMessage(`{"candidate":{"candidate":"x"}}`))
	if !errors.Is(err, domain.ErrUnknownRecipient) {
		t.Fatalf("expected unknown recipient, got %v", err)
	}
}

type memLog struct {
	mu      sync.Mutex
	records []domain.ChatMessage
}

func (m *memLog) Append(_ context.Context, msg domain.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, msg)
	return nil
}

func (m *memLog) snapshot() []domain.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ChatMessage(nil), m.records...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func TestChatLogsThenBroadcastsToWholeRoom(t *testing.T) {
	o := newTestOrchestrator()
	sink := &memLog{}
	o.ChatLog = chatlog.NewPipeline(sink, 2, 16)
	stamp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	o.Now = func() time.Time { return stamp }
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		o.ChatLog.Wait()
	}()
	o.ChatLog.Start(ctx)

	alice, bob := connect(o, "a"), connect(o, "b")
	mustJoin(t, o, "a", "r1", "alice")
	mustJoin(t, o, "b", "r1", "bob")

	if err := o.Chat("a", "hello"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	waitFor(t, func() bool {
		return len(bob.byType(protocol.TypeChat)) == 1 && len(alice.byType(protocol.TypeChat)) == 1
	})

	var p protocol.ChatPayload
	if err := bob.byType(protocol.TypeChat)[0].DecodePayload(&p); err != nil {
		t.Fatalf("chat payload: %v", err)
	}
	if p.User != "alice" || p.Msg != "hello" {
		t.Fatalf("bob got %+v", p)
	}
	records := sink.snapshot()
	if len(records) != 1 {
		t.Fatalf("log has %d records", len(records))
	}
	rec := records[0]
	if rec.Room != "r1" || rec.User != "alice" || rec.Text != "hello" || !rec.Time.Equal(stamp) {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestChatRejections(t *testing.T) {
	o := newTestOrchestrator()
	o.ChatLimit = app.NewRateLimiter(1, time.Minute)
	connect(o, "a")

	if err := o.Chat("a", "hi"); !errors.Is(err, domain.ErrNotAMember) {
		t.Fatalf("outside room: %v", err)
	}
	mustJoin(t, o, "a", "r1", "alice")
	if err := o.Chat("a", "   "); !errors.Is(err, domain.ErrMalformedRequest) {
		t.Fatalf("blank text: %v", err)
	}
	if err := o.Chat("a", strings.Repeat("x", MaxChatLen+1)); !errors.Is(err, domain.ErrMalformedRequest) {
		t.Fatalf("oversized text: %v", err)
	}
	if err := o.Chat("a", "one"); err != nil {
		t.Fatalf("first message: %v", err)
	}
	if err := o.Chat("a", "two"); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("second message: %v", err)
	}
}

func TestSlowMemberIsKicked(t *testing.T) {
	o := newTestOrchestrator()
	a, b := connect(o, "a"), connect(o, "b")
	mustJoin(t, o, "a", "r1", "alice")
	mustJoin(t, o, "b", "r1", "bob")

	b.mu.Lock()
	b.full = true
	b.mu.Unlock()
	connect(o, "c")
	mustJoin(t, o, "c", "r1", "carol")

	if !b.isClosed() {
		t.Fatalf("slow member must be closed")
	}
	if memberSet(o, "r1")["b"] {
		t.Fatalf("slow member must leave the room")
	}
	if n := len(a.byType(protocol.TypeUserLeft)); n != 1 {
		t.Fatalf("a must see the kick as a departure, got %d", n)
	}
}

func TestWhoAmI(t *testing.T) {
	o := newTestOrchestrator()
	connect(o, "a")
	mustJoin(t, o, "a", "r1", "alice")
	who, err := o.WhoAmI("a")
	if err != nil {
		t.Fatalf("WhoAmI: %v", err)
	}
	if who.ID != "a" || who.User != "alice" || who.Room != "r1" {
		t.Fatalf("WhoAmI = %+v", who)
	}
	if _, err := o.WhoAmI("zz"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown sid: %v", err)
	}
}

// kickingRooms disconnects a session right before its directory join, the
// way a backpressure kick from another goroutine can.
type kickingRooms struct {
	core.RoomDirectory
	o    *Orchestrator
	kick core.SessionID
}

func (k *kickingRooms) Join(room domain.RoomID, ms core.MemberSession, onJoin func(others []core.MemberSession)) bool {
	if ms.ID() == k.kick {
		k.o.KickBySID(ms.ID())
	}
	return k.RoomDirectory.Join(room, ms, onJoin)
}

func TestKickDuringJoinLeavesNoMember(t *testing.T) {
	o := newTestOrchestrator()
	o.Rooms = &kickingRooms{RoomDirectory: o.Rooms, o: o, kick: "a"}
	b := connect(o, "b")
	mustJoin(t, o, "b", "r1", "bob")
	a := connect(o, "a")

	if err := o.Join("a", "r1", "alice"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("join of a kicked session: %v", err)
	}
	if !a.isClosed() {
		t.Fatalf("kicked session must be closed")
	}
	if _, err := o.Registry.Get("a"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("kicked session must leave the registry, got %v", err)
	}
	if members := memberSet(o, "r1"); members["a"] || len(members) != 1 {
		t.Fatalf("r1 members = %v", members)
	}
	if n, m := len(b.byType(protocol.TypeUserJoined)), len(b.byType(protocol.TypeUserLeft)); n != m {
		t.Fatalf("b saw %d arrivals and %d departures", n, m)
	}

	c := connect(o, "c")
	mustJoin(t, o, "c", "r1", "carol")
	if r := roster(t, c); len(r) != 1 || len(r[0]) != 1 || r[0][0] != "b" {
		t.Fatalf("later roster = %v", r)
	}
}
