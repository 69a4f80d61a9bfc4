package ws

import "time"

// rateWindow caps inbound messages per rolling one-second window. A limit
// of zero or less disables the cap. Not safe for concurrent use; each
// connection's read loop owns its own window.
type rateWindow struct {
	limit int
	start time.Time
	seen  int
}

func newRateWindow(limit int) *rateWindow {
	return &rateWindow{limit: limit}
}

func (r *rateWindow) allow(now time.Time) bool {
	if r.limit <= 0 {
		return true
	}
	if now.Sub(r.start) >= time.Second {
		r.start = now
		r.seen = 0
	}
	r.seen++
	return r.seen <= r.limit
}
