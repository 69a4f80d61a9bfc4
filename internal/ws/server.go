package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"pong-server/internal/config"
	"pong-server/internal/session"
)

type Server struct {
	manager  *session.Manager
	cfg      config.GameConfig
	upgrader websocket.Upgrader
}

func NewServer(manager *session.Manager, cfg config.GameConfig) *Server {
	return &Server{
		manager:  manager,
		cfg:      cfg,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// HandleWS upgrades GET /ws/{room_id}?user_id= and runs the connection
// until the peer leaves, disconnects or the room ends.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room_id")
	userID := r.URL.Query().Get("user_id")
	if roomID == "" || userID == "" {
		http.Error(w, "room_id and user_id are required", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := newClient(conn, userID, s.cfg.WSSendBufferFrames)
	go client.writeLoop()

	seat, err := s.manager.AddPlayer(roomID, userID, client)
	if err != nil {
		log.Warn().Err(err).Str("conn_id", client.id).Str("room_id", roomID).Str("user_id", userID).Msg("seating rejected")
		_ = client.Close(closeCodeFor(err), err.Error())
		return
	}
	log.Info().Str("conn_id", client.id).Str("room_id", roomID).Str("user_id", userID).Int("seat", seat).Msg("connection established")

	s.readLoop(client, roomID)
}

func closeCodeFor(err error) int {
	switch {
	case errors.Is(err, session.ErrRoomNotFound):
		return websocket.CloseNormalClosure
	case errors.Is(err, session.ErrUserNotAllowed), errors.Is(err, session.ErrRoomFull):
		return websocket.ClosePolicyViolation
	}
	return websocket.CloseInternalServerErr
}

func (s *Server) readLoop(c *Client, roomID string) {
	defer func() {
		// Covers abrupt drops. If the room already settled this is a no-op.
		s.manager.HandleDisconnect(roomID, c)
		_ = c.Close(session.CloseNormal, "")
	}()

	c.conn.SetReadLimit(s.cfg.WSMaxMessageBytes)
	window := newRateWindow(s.cfg.WSMessagesPerSec)

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if !window.allow(time.Now()) {
			continue
		}

		var base struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}
		switch base.Type {
		case "input":
			var in InputMessage
			if err := json.Unmarshal(msg, &in); err != nil {
				continue
			}
			s.manager.HandleInput(roomID, c, in.Direction)
		case "leave":
			log.Info().Str("conn_id", c.id).Str("room_id", roomID).Msg("player requested leave")
			s.manager.RemovePlayer(roomID, c, false)
			return
		}
	}
}
