package session

import (
	"time"

	"pong-server/internal/game"
)

// Server-to-client wire messages. Field names match what the web client
// already renders.

type stateMessage struct {
	Type  string     `json:"type"`
	State game.State `json:"state"`
}

type playerAssignmentMessage struct {
	Type         string   `json:"type"`
	PlayerNumber int      `json:"playerNumber"`
	Players      []string `json:"players"`
}

type reconnectedMessage struct {
	Type         string     `json:"type"`
	State        game.State `json:"state"`
	PlayerNumber int        `json:"playerNumber"`
	Players      []string   `json:"players"`
}

type gameResumedMessage struct {
	Type string `json:"type"`
}

type countdownMessage struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type opponentDisconnectedMessage struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type opponentLeftMessage struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type gameOverMessage struct {
	Type   string        `json:"type"` // "you_win" or "you_lose"
	Result resultPayload `json:"result"`
}

type gameEndMessage struct {
	Type string `json:"type"`
}

type resultPayload struct {
	Winner       int        `json:"winner"`
	FinalScore   game.Score `json:"finalScore"`
	GameDuration int64      `json:"gameDuration"` // milliseconds
	StartTime    time.Time  `json:"startTime"`
	EndTime      time.Time  `json:"endTime"`
}

func newResultPayload(r game.Result) resultPayload {
	return resultPayload{
		Winner:       r.Winner,
		FinalScore:   r.FinalScore,
		GameDuration: r.Duration.Milliseconds(),
		StartTime:    r.StartedAt,
		EndTime:      r.EndedAt,
	}
}
