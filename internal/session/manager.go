package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"pong-server/internal/game"
)

type Config struct {
	WinScore          int
	TickInterval      time.Duration
	CountdownSeconds  int
	CountdownInterval time.Duration
	AbandonTimeout    time.Duration
	ReconnectGrace    time.Duration
}

func (c Config) withDefaults() Config {
	if c.WinScore <= 0 {
		c.WinScore = game.DefaultWinScore
	}
	if c.TickInterval <= 0 {
		c.TickInterval = game.DefaultTickInterval
	}
	if c.CountdownSeconds <= 0 {
		c.CountdownSeconds = 3
	}
	if c.CountdownInterval <= 0 {
		c.CountdownInterval = time.Second
	}
	if c.AbandonTimeout <= 0 {
		c.AbandonTimeout = 15 * time.Second
	}
	if c.ReconnectGrace <= 0 {
		c.ReconnectGrace = 30 * time.Second
	}
	return c
}

// Manager owns the table of active rooms. It is the only component allowed
// to mutate a Room; transports and HTTP handlers go through its operations.
type Manager struct {
	cfg      Config
	notifier Notifier

	mu    sync.Mutex
	rooms map[string]*Room
}

func NewManager(notifier Notifier, cfg Config) *Manager {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Manager{
		cfg:      cfg.withDefaults(),
		notifier: notifier,
		rooms:    map[string]*Room{},
	}
}

// engineObserver routes simulation output back into the manager. It is the
// only bridge between the engine and the session layer.
type engineObserver struct {
	m      *Manager
	roomID string
}

func (o engineObserver) OnTick(s game.State)      { o.m.broadcastState(o.roomID, s) }
func (o engineObserver) OnTerminal(r game.Result) { o.m.settleWin(o.roomID, r) }

func (m *Manager) room(roomID string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rooms[roomID]
}

func (m *Manager) deleteRoom(roomID string) {
	m.mu.Lock()
	delete(m.rooms, roomID)
	m.mu.Unlock()
}

// CreateRoom registers a new match session for the given authorized
// identities and arms the abandonment timer: a room nobody connects to is
// reaped and its invitees released.
func (m *Manager) CreateRoom(roomID string, userIDs []string, winScore int) error {
	if winScore <= 0 {
		winScore = m.cfg.WinScore
	}
	r := &Room{
		id:      roomID,
		allowed: make(map[string]struct{}, len(userIDs)),
		userIDs: append([]string(nil), userIDs...),
		everSat: map[string]struct{}{},
	}
	for _, uid := range userIDs {
		r.allowed[uid] = struct{}{}
	}
	r.engine = game.New(engineObserver{m: m, roomID: roomID},
		game.WithWinScore(winScore),
		game.WithTickInterval(m.cfg.TickInterval),
	)

	m.mu.Lock()
	if _, exists := m.rooms[roomID]; exists {
		m.mu.Unlock()
		return ErrRoomExists
	}
	m.rooms[roomID] = r
	m.mu.Unlock()

	r.mu.Lock()
	r.abandon = time.AfterFunc(m.cfg.AbandonTimeout, func() { m.reapAbandoned(roomID) })
	r.mu.Unlock()

	log.Info().Str("room_id", roomID).Strs("user_ids", userIDs).Int("win_score", winScore).Msg("room_created")
	return nil
}

func (m *Manager) reapAbandoned(roomID string) {
	r := m.room(roomID)
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.closed || len(r.seats) > 0 {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.cancelTimersLocked()
	users := append([]string(nil), r.userIDs...)
	r.mu.Unlock()

	m.deleteRoom(roomID)
	log.Info().Str("room_id", roomID).Msg("room_abandoned")

	// Release every invited identity. Best effort; room deletion never
	// waits on collaborators.
	go func() {
		for _, uid := range users {
			if err := m.notifier.Leave(context.Background(), roomID, uid); err != nil {
				log.Warn().Err(err).Str("room_id", roomID).Str("user_id", uid).Msg("leave notify failed")
			}
			m.notifier.Status(uid, StatusOnline)
		}
	}()
}

// AddPlayer seats an authorized identity, or rebinds its existing seat when
// the identity is already present (reconnection). Returns the seat number.
func (m *Manager) AddPlayer(roomID, userID string, t Transport) (int, error) {
	r := m.room(roomID)
	if r == nil {
		return 0, ErrRoomNotFound
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return 0, ErrRoomNotFound
	}
	if _, ok := r.allowed[userID]; !ok {
		r.mu.Unlock()
		return 0, ErrUserNotAllowed
	}

	if p := r.seatByUser(userID); p != nil {
		seat := m.reseatLocked(r, p, t)
		r.mu.Unlock()
		log.Info().Str("room_id", roomID).Str("user_id", userID).Int("seat", seat).Msg("player_reconnected")
		return seat, nil
	}

	if len(r.seats) >= 2 {
		r.mu.Unlock()
		return 0, ErrRoomFull
	}

	p := &Player{UserID: userID, Seat: r.nextSeat(), Transport: t, Connected: true}
	r.seats = append(r.seats, p)
	r.everSat[userID] = struct{}{}
	_ = t.Send(playerAssignmentMessage{
		Type:         "player_assignment",
		PlayerNumber: p.Seat,
		Players:      append([]string(nil), r.userIDs...),
	})

	var inGame []string
	if len(r.seats) == 2 {
		if !r.engine.Running() {
			m.startCountdownLocked(r)
		}
		for _, sp := range r.seats {
			inGame = append(inGame, sp.UserID)
		}
	}
	seat := p.Seat
	r.mu.Unlock()

	for _, uid := range inGame {
		m.notifier.Status(uid, StatusInGame)
	}
	log.Info().Str("room_id", roomID).Str("user_id", userID).Int("seat", seat).Msg("player_seated")
	return seat, nil
}

// reseatLocked rebinds an existing seat to a fresh transport. The grace
// timer is stopped under the room lock before the new transport becomes
// authoritative, so a late expiry can never evict a reconnected player.
func (m *Manager) reseatLocked(r *Room, p *Player, t Transport) int {
	if p.reconnect != nil {
		p.reconnect.Stop()
		p.reconnect = nil
	}
	if p.Transport != nil && p.Transport != t {
		_ = p.Transport.Close(CloseNormal, "reconnected from other location")
	}
	p.Transport = t
	p.Connected = true

	_ = t.Send(reconnectedMessage{
		Type:         "reconnected",
		State:        r.engine.Snapshot(),
		PlayerNumber: p.Seat,
		Players:      append([]string(nil), r.userIDs...),
	})

	if r.allConnected() && !r.engine.Running() {
		r.broadcastLocked(gameResumedMessage{Type: "game_resumed"})
		m.startCountdownLocked(r)
	}
	return p.Seat
}

// startCountdownLocked (re)starts the pre-match countdown. Any previous
// countdown is cancelled first, so a restart is always clean.
func (m *Manager) startCountdownLocked(r *Room) {
	r.cancelCountdownLocked()
	stop := make(chan struct{})
	r.countdown = stop
	count := m.cfg.CountdownSeconds
	r.broadcastLocked(countdownMessage{Type: "countdown", Count: count})
	go m.runCountdown(r, stop, count)
}

func (m *Manager) runCountdown(r *Room, stop chan struct{}, count int) {
	ticker := time.NewTicker(m.cfg.CountdownInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			count--
			r.mu.Lock()
			if r.countdown != stop {
				// Superseded by a cancel or restart.
				r.mu.Unlock()
				return
			}
			if count > 0 {
				r.broadcastLocked(countdownMessage{Type: "countdown", Count: count})
				r.mu.Unlock()
				continue
			}
			r.countdown = nil
			ready := r.allConnected()
			engine := r.engine
			r.mu.Unlock()
			if ready {
				engine.Start()
			}
			// A lapsed countdown leaves the match paused; the next
			// reconnection retriggers it.
			return
		}
	}
}

// HandleDisconnect marks the transport's seat disconnected, pauses the
// match and arms the reconnect grace timer.
func (m *Manager) HandleDisconnect(roomID string, t Transport) {
	r := m.room(roomID)
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	p := r.seatByTransport(t)
	if p == nil || !p.Connected {
		r.mu.Unlock()
		return
	}
	p.Connected = false
	r.cancelCountdownLocked()
	r.engine.Stop()
	r.broadcastLocked(opponentDisconnectedMessage{Type: "opponent_disconnected", UserID: p.UserID})
	p.reconnect = time.AfterFunc(m.cfg.ReconnectGrace, func() {
		m.RemovePlayer(roomID, t, true)
	})
	userID := p.UserID
	r.mu.Unlock()

	log.Info().Str("room_id", roomID).Str("user_id", userID).Dur("grace", m.cfg.ReconnectGrace).Msg("player_disconnected")
}

// RemovePlayer evicts the seat bound to the transport, either because the
// player left or because their reconnect grace expired. A departure never
// produces a match result: if an opponent remains they get opponent_left
// and the room is torn down without closing their socket.
func (m *Manager) RemovePlayer(roomID string, t Transport, isTimeout bool) bool {
	r := m.room(roomID)
	if r == nil {
		return false
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	p := r.seatByTransport(t)
	if p == nil {
		r.mu.Unlock()
		return false
	}
	if isTimeout && p.Connected {
		// The grace timer lost the race against a reconnection.
		r.mu.Unlock()
		return false
	}
	if p.reconnect != nil {
		if !isTimeout {
			p.reconnect.Stop()
		}
		p.reconnect = nil
	}
	for i, sp := range r.seats {
		if sp == p {
			r.seats = append(r.seats[:i], r.seats[i+1:]...)
			break
		}
	}

	r.closed = true
	r.cancelTimersLocked()
	r.engine.Stop()

	var remaining *Player
	if len(r.seats) == 1 {
		remaining = r.seats[0]
		if remaining.Transport != nil {
			_ = remaining.Transport.Send(opponentLeftMessage{Type: "opponent_left", UserID: p.UserID})
		}
	}
	var neverConnected []string
	for _, uid := range r.userIDs {
		if _, ok := r.everSat[uid]; !ok {
			neverConnected = append(neverConnected, uid)
		}
	}
	r.mu.Unlock()

	_ = t.Close(CloseNormal, "")

	// Awaited: downstream room cleanup must observe this leave before a
	// new invite can be issued for the same participants.
	ctx := context.Background()
	if err := m.notifier.Leave(ctx, roomID, p.UserID); err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Str("user_id", p.UserID).Msg("leave notify failed")
	}
	m.notifier.Status(p.UserID, StatusOnline)

	if remaining != nil {
		if err := m.notifier.Leave(ctx, roomID, remaining.UserID); err != nil {
			log.Warn().Err(err).Str("room_id", roomID).Str("user_id", remaining.UserID).Msg("leave notify failed")
		}
		m.notifier.Status(remaining.UserID, StatusOnline)
	} else {
		for _, uid := range neverConnected {
			if err := m.notifier.Leave(ctx, roomID, uid); err != nil {
				log.Warn().Err(err).Str("room_id", roomID).Str("user_id", uid).Msg("leave notify failed")
			}
		}
	}

	m.deleteRoom(roomID)
	log.Info().Str("room_id", roomID).Str("user_id", p.UserID).Bool("timeout", isTimeout).Msg("player_removed")
	return true
}

// settleWin delivers personalized outcome messages, then ends the room.
// The roster is captured before teardown so EndGame notifies the right
// players even after the seat set changes.
func (m *Manager) settleWin(roomID string, result game.Result) {
	r := m.room(roomID)
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	payload := newResultPayload(result)
	roster := r.rosterLocked()
	for _, p := range r.seats {
		if p.Transport == nil {
			continue
		}
		kind := "you_lose"
		if p.Seat == result.Winner {
			kind = "you_win"
		}
		_ = p.Transport.Send(gameOverMessage{Type: kind, Result: payload})
	}
	r.mu.Unlock()

	log.Info().Str("room_id", roomID).Int("winner", result.Winner).
		Int("score_p1", result.FinalScore.Player1).Int("score_p2", result.FinalScore.Player2).
		Dur("duration", result.Duration).Msg("match_finished")
	m.EndGame(roomID, &result, roster)
}

// EndGame tears a room down: timers cancelled, engine stopped, every seated
// player told game_end before their transport closes, then the finish is
// reported. explicit lets the win path supply the roster to notify.
func (m *Manager) EndGame(roomID string, result *game.Result, explicit []PlayerRef) bool {
	r := m.room(roomID)
	if r == nil {
		return false
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	r.closed = true
	r.cancelTimersLocked()
	r.engine.Stop()
	roster := explicit
	if roster == nil {
		roster = r.rosterLocked()
	}
	for _, p := range r.seats {
		if p.Transport == nil {
			continue
		}
		_ = p.Transport.Send(gameEndMessage{Type: "game_end"})
		_ = p.Transport.Close(CloseNormal, "")
	}
	r.mu.Unlock()

	m.deleteRoom(roomID)

	m.notifier.Finish(roomID, roster, result)
	for _, ref := range roster {
		m.notifier.Status(ref.UserID, StatusOnline)
	}
	log.Info().Str("room_id", roomID).Bool("with_result", result != nil).Msg("game_ended")
	return true
}

// ForceEndGame is the administrative variant keyed like the query side.
func (m *Manager) ForceEndGame(roomID string) error {
	if !m.EndGame(roomID, nil, nil) {
		return ErrGameNotFound
	}
	return nil
}

// HandleInput routes a validated paddle input to the transport's seat.
func (m *Manager) HandleInput(roomID string, t Transport, direction int) {
	r := m.room(roomID)
	if r == nil {
		return
	}
	r.mu.Lock()
	var seat int
	if p := r.seatByTransport(t); p != nil {
		seat = p.Seat
	}
	engine := r.engine
	r.mu.Unlock()
	if seat != 0 {
		engine.HandleInput(seat, direction)
	}
}

// State returns a snapshot of a room's simulation.
func (m *Manager) State(roomID string) (game.State, error) {
	r := m.room(roomID)
	if r == nil {
		return game.State{}, ErrGameNotFound
	}
	return r.engine.Snapshot(), nil
}

func (m *Manager) ListRooms() []string {
	m.mu.Lock()
	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// ForceCleanup is the shutdown path: every engine stopped, every timer
// cancelled, every transport closed with a going-away code, table cleared.
func (m *Manager) ForceCleanup() {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.rooms = map[string]*Room{}
	m.mu.Unlock()

	for _, r := range rooms {
		r.mu.Lock()
		r.closed = true
		r.cancelTimersLocked()
		r.engine.Stop()
		for _, p := range r.seats {
			if p.Transport != nil {
				_ = p.Transport.Close(CloseGoingAway, "server shutting down")
			}
		}
		r.mu.Unlock()
	}
	log.Info().Int("rooms", len(rooms)).Msg("session_table_cleared")
}

func (m *Manager) broadcastState(roomID string, s game.State) {
	r := m.room(roomID)
	if r == nil {
		return
	}
	r.mu.Lock()
	if !r.closed {
		r.broadcastLocked(stateMessage{Type: "state", State: s})
	}
	r.mu.Unlock()
}
