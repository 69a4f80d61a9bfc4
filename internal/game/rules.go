package game

import "time"

// Field geometry and motion constants. Clients render against the same
// coordinate space, so these are fixed rather than configurable.
const (
	FieldWidth   = 800.0
	FieldHeight  = 600.0
	PaddleWidth  = 10.0
	PaddleHeight = 100.0
	BallSize     = 10.0
	BallSpeed    = 5.0
	PaddleSpeed  = 6.0

	DefaultWinScore     = 11
	DefaultTickInterval = 16 * time.Millisecond
)

// MaxPaddleY is the lowest legal paddle position.
const MaxPaddleY = FieldHeight - PaddleHeight
