package game

import "time"

type Ball struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`
}

// Paddle moves along the y axis only. Moving is -1 (up), 0 or 1 (down) and
// persists until the owning player sends a new input.
type Paddle struct {
	Y      float64 `json:"y"`
	Moving int     `json:"moving"`
}

type Score struct {
	Player1 int `json:"player1"`
	Player2 int `json:"player2"`
}

// State is the full simulation state. It is a value type: every snapshot
// handed to an Observer is an independent copy.
type State struct {
	Ball    Ball   `json:"ball"`
	Paddle1 Paddle `json:"paddle1"`
	Paddle2 Paddle `json:"paddle2"`
	Score   Score  `json:"score"`
}

// Result is produced exactly once, on the tick the winning point lands.
// The wire representation lives with the session payloads; this is the
// internal record.
type Result struct {
	Winner     int // 1 or 2
	FinalScore Score
	Duration   time.Duration
	StartedAt  time.Time
	EndedAt    time.Time
}
