package session

import (
	"context"

	"pong-server/internal/game"
)

// WebSocket close codes the manager uses. Kept as plain ints so this
// package stays free of any websocket dependency.
const (
	CloseNormal    = 1000
	CloseGoingAway = 1001
)

// Transport is one player's outbound channel. Send marshals the payload to
// JSON and pushes it to the peer; Close on an already-closed transport is a
// no-op, never an error.
type Transport interface {
	Send(v any) error
	Close(code int, reason string) error
}

// PlayerRef identifies a seat for outbound notifications.
type PlayerRef struct {
	UserID string
	Seat   int
}

const (
	StatusOnline = "ONLINE"
	StatusInGame = "IN_GAME"
)

// Notifier reports room membership and presence changes to external
// services. Leave is the only call whose completion the manager waits for:
// downstream room cleanup must observe the leave before a new invite can be
// issued. Finish and Status are fire-and-forget; implementations log
// failures and never surface them.
type Notifier interface {
	Leave(ctx context.Context, roomID, userID string) error
	Finish(roomID string, players []PlayerRef, result *game.Result)
	Status(userID, status string)
}

// NopNotifier backs tests and standalone deployments with no collaborator
// services configured.
type NopNotifier struct{}

func (NopNotifier) Leave(context.Context, string, string) error { return nil }
func (NopNotifier) Finish(string, []PlayerRef, *game.Result)    {}
func (NopNotifier) Status(string, string)                       {}
