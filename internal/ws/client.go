package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Client is one player connection. It satisfies the session transport:
// Send queues a JSON frame for the write loop, Close drains the queue,
// emits a close frame and tears the socket down. Both are safe to call
// from any goroutine and after the connection died.
type Client struct {
	id     string
	userID string
	conn   *websocket.Conn

	mu          sync.Mutex
	send        chan []byte
	closed      bool
	closeCode   int
	closeReason string
}

func newClient(conn *websocket.Conn, userID string, bufferFrames int) *Client {
	if bufferFrames <= 0 {
		bufferFrames = 32
	}
	return &Client{
		id:     newConnID(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, bufferFrames),
	}
}

func (c *Client) Send(v any) error {
	msg, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	select {
	case c.send <- msg:
	default:
		// Slow consumer. State frames arrive every tick, dropping one is
		// cheaper than stalling the whole room.
		log.Debug().Str("conn_id", c.id).Str("user_id", c.userID).Msg("send buffer full, frame dropped")
	}
	return nil
}

func (c *Client) Close(code int, reason string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.closeCode = code
	c.closeReason = reason
	close(c.send)
	c.mu.Unlock()
	return nil
}

// writeLoop is the only goroutine that touches the connection's write
// side. After the queue closes it flushes a close frame so the peer sees
// the final in-order message before the socket drops.
func (c *Client) writeLoop() {
	for msg := range c.send {
		_ = c.conn.WriteMessage(websocket.TextMessage, msg)
	}
	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(c.closeCode, c.closeReason), deadline)
	_ = c.conn.Close()
}
