package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pong-server/internal/game"
)

type transportEvent struct {
	kind string // "send" or "close"
	msg  any
	code int
}

type fakeTransport struct {
	mu     sync.Mutex
	events []transportEvent
}

func (f *fakeTransport) Send(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, transportEvent{kind: "send", msg: v})
	return nil
}

func (f *fakeTransport) Close(code int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, transportEvent{kind: "close", code: code})
	return nil
}

func (f *fakeTransport) snapshot() []transportEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transportEvent(nil), f.events...)
}

func (f *fakeTransport) closed() bool {
	for _, ev := range f.snapshot() {
		if ev.kind == "close" {
			return true
		}
	}
	return false
}

func messageType(v any) string {
	switch m := v.(type) {
	case stateMessage:
		return m.Type
	case playerAssignmentMessage:
		return m.Type
	case reconnectedMessage:
		return m.Type
	case gameResumedMessage:
		return m.Type
	case countdownMessage:
		return m.Type
	case opponentDisconnectedMessage:
		return m.Type
	case opponentLeftMessage:
		return m.Type
	case gameOverMessage:
		return m.Type
	case gameEndMessage:
		return m.Type
	}
	return ""
}

func (f *fakeTransport) received(kind string) bool {
	for _, ev := range f.snapshot() {
		if ev.kind == "send" && messageType(ev.msg) == kind {
			return true
		}
	}
	return false
}

func (f *fakeTransport) countOf(kind string) int {
	n := 0
	for _, ev := range f.snapshot() {
		if ev.kind == "send" && messageType(ev.msg) == kind {
			n++
		}
	}
	return n
}

type fakeNotifier struct {
	mu       sync.Mutex
	leaves   []string
	finishes int
	statuses map[string]string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{statuses: map[string]string{}}
}

func (f *fakeNotifier) Leave(_ context.Context, roomID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves = append(f.leaves, roomID+"/"+userID)
	return nil
}

func (f *fakeNotifier) Finish(string, []PlayerRef, *game.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finishes++
}

func (f *fakeNotifier) Status(userID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[userID] = status
}

func (f *fakeNotifier) leftUser(roomID, userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.leaves {
		if l == roomID+"/"+userID {
			return true
		}
	}
	return false
}

func (f *fakeNotifier) statusOf(userID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[userID]
}

func (f *fakeNotifier) finishCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finishes
}

// idleConfig keeps every timer far in the future so tests drive all
// transitions explicitly.
func idleConfig() Config {
	return Config{
		CountdownInterval: time.Hour,
		AbandonTimeout:    time.Hour,
		ReconnectGrace:    time.Hour,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestCreateRoomRejectsDuplicate(t *testing.T) {
	m := NewManager(nil, idleConfig())
	if err := m.CreateRoom("r1", []string{"a", "b"}, 0); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if err := m.CreateRoom("r1", []string{"a", "b"}, 0); !errors.Is(err, ErrRoomExists) {
		t.Fatalf("expected ErrRoomExists, got %v", err)
	}
}

func TestAddPlayerUnknownRoom(t *testing.T) {
	m := NewManager(nil, idleConfig())
	if _, err := m.AddPlayer("nope", "a", &fakeTransport{}); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestUnauthorizedUserNeverSeats(t *testing.T) {
	m := NewManager(nil, idleConfig())
	if err := m.CreateRoom("r1", []string{"a", "b"}, 0); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	tr := &fakeTransport{}
	if _, err := m.AddPlayer("r1", "intruder", tr); !errors.Is(err, ErrUserNotAllowed) {
		t.Fatalf("expected ErrUserNotAllowed, got %v", err)
	}
	if len(tr.snapshot()) != 0 {
		t.Fatalf("rejected transport received %d events", len(tr.snapshot()))
	}
}

func TestSeatingAssignsSeatsAndStartsCountdown(t *testing.T) {
	n := newFakeNotifier()
	m := NewManager(n, idleConfig())
	if err := m.CreateRoom("r1", []string{"a", "b"}, 0); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	trA, trB := &fakeTransport{}, &fakeTransport{}
	seatA, err := m.AddPlayer("r1", "a", trA)
	if err != nil {
		t.Fatalf("seat a: %v", err)
	}
	if seatA != 1 {
		t.Fatalf("first player got seat %d", seatA)
	}
	if !trA.received("player_assignment") {
		t.Fatal("first player missing player_assignment")
	}
	if trA.received("countdown") {
		t.Fatal("countdown fired before the room was full")
	}

	seatB, err := m.AddPlayer("r1", "b", trB)
	if err != nil {
		t.Fatalf("seat b: %v", err)
	}
	if seatB != 2 {
		t.Fatalf("second player got seat %d", seatB)
	}
	if !trA.received("countdown") || !trB.received("countdown") {
		t.Fatal("countdown not broadcast when both seats filled")
	}
	if n.statusOf("a") != StatusInGame || n.statusOf("b") != StatusInGame {
		t.Fatalf("expected both IN_GAME, got a=%q b=%q", n.statusOf("a"), n.statusOf("b"))
	}
}

func TestSameIdentityReseatIsReconnection(t *testing.T) {
	m := NewManager(nil, idleConfig())
	if err := m.CreateRoom("r1", []string{"a", "b"}, 0); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	old := &fakeTransport{}
	if _, err := m.AddPlayer("r1", "a", old); err != nil {
		t.Fatalf("seat a: %v", err)
	}
	fresh := &fakeTransport{}
	seat, err := m.AddPlayer("r1", "a", fresh)
	if err != nil {
		t.Fatalf("reseat a: %v", err)
	}
	if seat != 1 {
		t.Fatalf("reconnection changed seat to %d", seat)
	}
	if !old.closed() {
		t.Fatal("stale transport left open after reconnection")
	}
	if !fresh.received("reconnected") {
		t.Fatal("fresh transport missing reconnected message")
	}
	// The identity still occupies exactly one seat, so a third party
	// cannot be squeezed out.
	trB := &fakeTransport{}
	if _, err := m.AddPlayer("r1", "b", trB); err != nil {
		t.Fatalf("seat b after reseat: %v", err)
	}
}

func TestDisconnectPausesAndReconnectResumes(t *testing.T) {
	m := NewManager(nil, idleConfig())
	if err := m.CreateRoom("r1", []string{"a", "b"}, 0); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	trA, trB := &fakeTransport{}, &fakeTransport{}
	if _, err := m.AddPlayer("r1", "a", trA); err != nil {
		t.Fatalf("seat a: %v", err)
	}
	if _, err := m.AddPlayer("r1", "b", trB); err != nil {
		t.Fatalf("seat b: %v", err)
	}

	m.HandleDisconnect("r1", trB)
	if !trA.received("opponent_disconnected") {
		t.Fatal("remaining player not told about the disconnect")
	}

	trB2 := &fakeTransport{}
	if _, err := m.AddPlayer("r1", "b", trB2); err != nil {
		t.Fatalf("reconnect b: %v", err)
	}
	if !trB2.received("reconnected") {
		t.Fatal("reconnecting player missing state sync")
	}
	if !trA.received("game_resumed") || !trB2.received("game_resumed") {
		t.Fatal("game_resumed not broadcast after full reconnection")
	}
	if trA.countOf("countdown") != 2 {
		t.Fatalf("expected a second countdown start, got %d", trA.countOf("countdown"))
	}
}

func TestGraceExpiryRemovesPlayerAndRoom(t *testing.T) {
	n := newFakeNotifier()
	cfg := idleConfig()
	cfg.ReconnectGrace = 10 * time.Millisecond
	m := NewManager(n, cfg)
	if err := m.CreateRoom("r1", []string{"a", "b"}, 0); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	trA, trB := &fakeTransport{}, &fakeTransport{}
	if _, err := m.AddPlayer("r1", "a", trA); err != nil {
		t.Fatalf("seat a: %v", err)
	}
	if _, err := m.AddPlayer("r1", "b", trB); err != nil {
		t.Fatalf("seat b: %v", err)
	}

	m.HandleDisconnect("r1", trB)
	waitFor(t, "grace expiry teardown", func() bool {
		_, err := m.State("r1")
		return errors.Is(err, ErrGameNotFound)
	})

	if !trA.received("opponent_left") {
		t.Fatal("remaining player not told the opponent left")
	}
	if trA.closed() {
		t.Fatal("remaining player's transport must stay open")
	}
	if !n.leftUser("r1", "a") || !n.leftUser("r1", "b") {
		t.Fatalf("missing leave notifications: %v", n.leaves)
	}
	if n.finishCount() != 0 {
		t.Fatal("a departure must never record a result")
	}
	if n.statusOf("a") != StatusOnline || n.statusOf("b") != StatusOnline {
		t.Fatalf("expected both ONLINE, got a=%q b=%q", n.statusOf("a"), n.statusOf("b"))
	}
}

func TestReconnectBeatsGraceTimer(t *testing.T) {
	cfg := idleConfig()
	cfg.ReconnectGrace = 30 * time.Millisecond
	m := NewManager(nil, cfg)
	if err := m.CreateRoom("r1", []string{"a", "b"}, 0); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	trA, trB := &fakeTransport{}, &fakeTransport{}
	if _, err := m.AddPlayer("r1", "a", trA); err != nil {
		t.Fatalf("seat a: %v", err)
	}
	if _, err := m.AddPlayer("r1", "b", trB); err != nil {
		t.Fatalf("seat b: %v", err)
	}

	m.HandleDisconnect("r1", trB)
	trB2 := &fakeTransport{}
	if _, err := m.AddPlayer("r1", "b", trB2); err != nil {
		t.Fatalf("reconnect b: %v", err)
	}

	// Even well past the original grace window the room survives.
	time.Sleep(80 * time.Millisecond)
	if _, err := m.State("r1"); err != nil {
		t.Fatalf("room torn down despite reconnection: %v", err)
	}
}

func TestExplicitLeaveTearsDownWithoutResult(t *testing.T) {
	n := newFakeNotifier()
	m := NewManager(n, idleConfig())
	if err := m.CreateRoom("r1", []string{"a", "b"}, 0); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	trA, trB := &fakeTransport{}, &fakeTransport{}
	if _, err := m.AddPlayer("r1", "a", trA); err != nil {
		t.Fatalf("seat a: %v", err)
	}
	if _, err := m.AddPlayer("r1", "b", trB); err != nil {
		t.Fatalf("seat b: %v", err)
	}

	if !m.RemovePlayer("r1", trB, false) {
		t.Fatal("RemovePlayer returned false for a seated player")
	}
	if !trA.received("opponent_left") {
		t.Fatal("remaining player not told the opponent left")
	}
	if trA.received("you_win") || trA.received("you_lose") {
		t.Fatal("a voluntary leave must not produce an outcome message")
	}
	if n.finishCount() != 0 {
		t.Fatal("a voluntary leave must never record a result")
	}
	if _, err := m.State("r1"); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("room should be gone, got %v", err)
	}
}

func TestLeaveBeforeOpponentConnectsReleasesInvitee(t *testing.T) {
	n := newFakeNotifier()
	m := NewManager(n, idleConfig())
	if err := m.CreateRoom("r1", []string{"a", "b"}, 0); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	trA := &fakeTransport{}
	if _, err := m.AddPlayer("r1", "a", trA); err != nil {
		t.Fatalf("seat a: %v", err)
	}
	if !m.RemovePlayer("r1", trA, false) {
		t.Fatal("RemovePlayer returned false")
	}
	if !n.leftUser("r1", "a") {
		t.Fatal("leaver not reported")
	}
	if !n.leftUser("r1", "b") {
		t.Fatal("never-connected invitee not released")
	}
}

func TestEndGameSendsGameEndBeforeClose(t *testing.T) {
	n := newFakeNotifier()
	m := NewManager(n, idleConfig())
	if err := m.CreateRoom("r1", []string{"a", "b"}, 0); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	trA, trB := &fakeTransport{}, &fakeTransport{}
	if _, err := m.AddPlayer("r1", "a", trA); err != nil {
		t.Fatalf("seat a: %v", err)
	}
	if _, err := m.AddPlayer("r1", "b", trB); err != nil {
		t.Fatalf("seat b: %v", err)
	}

	if err := m.ForceEndGame("r1"); err != nil {
		t.Fatalf("ForceEndGame: %v", err)
	}
	for name, tr := range map[string]*fakeTransport{"a": trA, "b": trB} {
		events := tr.snapshot()
		sawEnd := false
		for _, ev := range events {
			if ev.kind == "send" && messageType(ev.msg) == "game_end" {
				sawEnd = true
			}
			if ev.kind == "close" {
				if !sawEnd {
					t.Fatalf("player %s: transport closed before game_end", name)
				}
				if ev.code != CloseNormal {
					t.Fatalf("player %s: close code %d", name, ev.code)
				}
			}
		}
		if !sawEnd || !tr.closed() {
			t.Fatalf("player %s: missing game_end or close", name)
		}
	}
	if n.finishCount() != 1 {
		t.Fatalf("expected one finish notification, got %d", n.finishCount())
	}
	if err := m.ForceEndGame("r1"); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("second force end should miss, got %v", err)
	}
}

func TestAbandonedRoomIsReaped(t *testing.T) {
	n := newFakeNotifier()
	cfg := idleConfig()
	cfg.AbandonTimeout = 10 * time.Millisecond
	m := NewManager(n, cfg)
	if err := m.CreateRoom("r1", []string{"a", "b"}, 0); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	waitFor(t, "abandonment reap", func() bool {
		_, err := m.State("r1")
		return errors.Is(err, ErrGameNotFound)
	})
	waitFor(t, "invitee release", func() bool {
		return n.leftUser("r1", "a") && n.leftUser("r1", "b")
	})
}

func TestAbandonTimerCancelledByConnection(t *testing.T) {
	cfg := idleConfig()
	cfg.AbandonTimeout = 20 * time.Millisecond
	m := NewManager(nil, cfg)
	if err := m.CreateRoom("r1", []string{"a", "b"}, 0); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if _, err := m.AddPlayer("r1", "a", &fakeTransport{}); err != nil {
		t.Fatalf("seat a: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	if _, err := m.State("r1"); err != nil {
		t.Fatalf("occupied room was reaped: %v", err)
	}
}

func TestCountdownCompletionStartsMatch(t *testing.T) {
	cfg := idleConfig()
	cfg.CountdownInterval = 5 * time.Millisecond
	cfg.CountdownSeconds = 2
	cfg.TickInterval = 5 * time.Millisecond
	m := NewManager(nil, cfg)
	if err := m.CreateRoom("r1", []string{"a", "b"}, 0); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	trA, trB := &fakeTransport{}, &fakeTransport{}
	if _, err := m.AddPlayer("r1", "a", trA); err != nil {
		t.Fatalf("seat a: %v", err)
	}
	if _, err := m.AddPlayer("r1", "b", trB); err != nil {
		t.Fatalf("seat b: %v", err)
	}

	waitFor(t, "state broadcasts", func() bool {
		return trA.received("state") && trB.received("state")
	})
	if trA.countOf("countdown") < 2 {
		t.Fatalf("expected full countdown sequence, got %d messages", trA.countOf("countdown"))
	}
	m.ForceCleanup()
}

func TestForceCleanupClosesEverything(t *testing.T) {
	m := NewManager(nil, idleConfig())
	for _, id := range []string{"r1", "r2"} {
		if err := m.CreateRoom(id, []string{"a", "b"}, 0); err != nil {
			t.Fatalf("CreateRoom %s: %v", id, err)
		}
	}
	tr := &fakeTransport{}
	if _, err := m.AddPlayer("r1", "a", tr); err != nil {
		t.Fatalf("seat a: %v", err)
	}

	m.ForceCleanup()
	if got := m.ListRooms(); len(got) != 0 {
		t.Fatalf("rooms survived cleanup: %v", got)
	}
	events := tr.snapshot()
	sawGoingAway := false
	for _, ev := range events {
		if ev.kind == "close" && ev.code == CloseGoingAway {
			sawGoingAway = true
		}
	}
	if !sawGoingAway {
		t.Fatal("transport not closed with going-away code")
	}
}

func TestListRoomsSorted(t *testing.T) {
	m := NewManager(nil, idleConfig())
	for _, id := range []string{"zeta", "alpha", "mid"} {
		if err := m.CreateRoom(id, []string{"a", "b"}, 0); err != nil {
			t.Fatalf("CreateRoom %s: %v", id, err)
		}
	}
	got := m.ListRooms()
	want := []string{"alpha", "mid", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
