package ws

// Client-to-server messages. Everything else on the wire flows the other
// way and is produced by the session layer.

type InputMessage struct {
	Type      string `json:"type"`
	Direction int    `json:"direction"` // -1 up, 0 stop, 1 down
}

type LeaveMessage struct {
	Type string `json:"type"`
}
