package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"pong-server/internal/config"
	"pong-server/internal/game"
	"pong-server/internal/session"
)

// Client reports room membership and player presence to the room and user
// services. Leave is synchronous; Finish and Status run in the background
// and only log failures. Empty collaborator URLs disable the respective
// calls so the server can run standalone.
type Client struct {
	http    *httpClient
	roomURL string
	userURL string
	token   string
	timeout time.Duration
}

var _ session.Notifier = (*Client)(nil)

func New(cfg config.ServerConfig) *Client {
	timeout := cfg.NotifyTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		http:    newHTTPClient(timeout),
		roomURL: cfg.RoomServiceURL,
		userURL: cfg.UserServiceURL,
		token:   cfg.ServiceToken,
		timeout: timeout,
	}
}

func (c *Client) headers() map[string]string {
	if c.token == "" {
		return nil
	}
	return map[string]string{"x-service-token": c.token}
}

type leaveBody struct {
	UserID string `json:"userId"`
}

type finishPlayer struct {
	UserID       string `json:"userId"`
	PlayerNumber int    `json:"playerNumber"` // 0-based
}

type finishBody struct {
	Players      []finishPlayer `json:"players"`
	Winner       *int           `json:"winner,omitempty"` // 0-based
	Score        *game.Score    `json:"finalScore,omitempty"`
	GameDuration int64          `json:"gameDuration,omitempty"` // milliseconds
	StartTime    *time.Time     `json:"startTime,omitempty"`
	EndTime      *time.Time     `json:"endTime,omitempty"`
}

type statusBody struct {
	Status string `json:"status"`
}

// Leave tells the room service the user is out of the room. The caller
// waits on this: the room service must see the leave before it can hand
// out a fresh invite for the same participants.
func (c *Client) Leave(ctx context.Context, roomID, userID string) error {
	if c.roomURL == "" {
		return nil
	}
	endpoint := fmt.Sprintf("%s/internal/%s/leave", c.roomURL, roomID)
	return c.http.postJSON(ctx, endpoint, c.headers(), leaveBody{UserID: userID})
}

// Finish reports a completed match. result is nil on an administrative
// termination; the room service then records the game as void.
func (c *Client) Finish(roomID string, players []session.PlayerRef, result *game.Result) {
	if c.roomURL == "" {
		return
	}
	body := finishBody{Players: make([]finishPlayer, 0, len(players))}
	for _, p := range players {
		body.Players = append(body.Players, finishPlayer{UserID: p.UserID, PlayerNumber: p.Seat - 1})
	}
	if result != nil {
		winner := result.Winner - 1
		score := result.FinalScore
		start := result.StartedAt
		end := result.EndedAt
		body.Winner = &winner
		body.Score = &score
		body.GameDuration = result.Duration.Milliseconds()
		body.StartTime = &start
		body.EndTime = &end
	}
	endpoint := fmt.Sprintf("%s/internal/%s/finish", c.roomURL, roomID)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		if err := c.http.postJSON(ctx, endpoint, c.headers(), body); err != nil {
			log.Warn().Err(err).Str("room_id", roomID).Msg("finish notify failed")
		}
	}()
}

// Status updates a player's presence on the user service.
func (c *Client) Status(userID, status string) {
	if c.userURL == "" {
		return
	}
	endpoint := fmt.Sprintf("%s/internal/%s/status", c.userURL, userID)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		if err := c.http.patchJSON(ctx, endpoint, c.headers(), statusBody{Status: status}); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Str("status", status).Msg("status notify failed")
		}
	}()
}
