package session

import (
	"sync"
	"time"

	"pong-server/internal/game"
)

// Player is one occupied seat: an authorized identity bound to a transport.
type Player struct {
	UserID    string
	Seat      int // 1 or 2
	Transport Transport
	Connected bool

	// reconnect fires removePlayer in timeout mode when the grace period
	// lapses. Stopped on reconnection before the new transport becomes
	// authoritative.
	reconnect *time.Timer
}

// Room is one match session. Every mutation happens under mu; seat events,
// timer callbacks and the engine's own tick are all concurrent triggers, so
// the lock is the single-writer discipline for this room.
type Room struct {
	id     string
	engine *game.Engine

	mu        sync.Mutex
	seats     []*Player
	allowed   map[string]struct{}
	userIDs   []string // authorized identities in invite order
	everSat   map[string]struct{}
	abandon   *time.Timer
	countdown chan struct{} // non-nil while a countdown runs
	closed    bool
}

func (r *Room) seatByTransport(t Transport) *Player {
	for _, p := range r.seats {
		if p.Transport == t {
			return p
		}
	}
	return nil
}

func (r *Room) seatByUser(userID string) *Player {
	for _, p := range r.seats {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// nextSeat hands out seat 1 first, then seat 2.
func (r *Room) nextSeat() int {
	for _, p := range r.seats {
		if p.Seat == 1 {
			return 2
		}
	}
	return 1
}

func (r *Room) allConnected() bool {
	for _, p := range r.seats {
		if !p.Connected {
			return false
		}
	}
	return len(r.seats) == 2
}

func (r *Room) broadcastLocked(msg any) {
	for _, p := range r.seats {
		if p.Transport != nil {
			_ = p.Transport.Send(msg)
		}
	}
}

// cancelCountdownLocked invalidates any running countdown. The countdown
// goroutine re-checks its channel identity under the room lock, so a close
// here can never race a concurrent restart.
func (r *Room) cancelCountdownLocked() {
	if r.countdown != nil {
		close(r.countdown)
		r.countdown = nil
	}
}

func (r *Room) cancelTimersLocked() {
	r.cancelCountdownLocked()
	if r.abandon != nil {
		r.abandon.Stop()
		r.abandon = nil
	}
	for _, p := range r.seats {
		if p.reconnect != nil {
			p.reconnect.Stop()
			p.reconnect = nil
		}
	}
}

func (r *Room) rosterLocked() []PlayerRef {
	refs := make([]PlayerRef, 0, len(r.seats))
	for _, p := range r.seats {
		refs = append(refs, PlayerRef{UserID: p.UserID, Seat: p.Seat})
	}
	return refs
}
