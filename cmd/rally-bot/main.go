// rally-bot connects to a room and plays by chasing the ball with its
// paddle. Handy for exercising a server without a second human.
package main

import (
	"encoding/json"
	"log"

	"github.com/gorilla/websocket"

	"pong-server/internal/config"
	"pong-server/internal/game"
)

type stateFrame struct {
	Type  string     `json:"type"`
	State game.State `json:"state"`
}

type assignmentFrame struct {
	Type         string `json:"type"`
	PlayerNumber int    `json:"playerNumber"`
}

type inputFrame struct {
	Type      string `json:"type"`
	Direction int    `json:"direction"`
}

func main() {
	cfg, err := config.LoadBot()
	if err != nil {
		log.Fatal(err)
	}

	wsURL := cfg.ServerURL + "/ws/" + cfg.RoomID + "?user_id=" + cfg.UserID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()
	log.Printf("connected to %s as %s", cfg.RoomID, cfg.UserID)

	seat := 0
	lastDir := 0
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Printf("connection closed: %v", err)
			return
		}
		var base struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &base); err != nil {
			continue
		}
		switch base.Type {
		case "player_assignment", "reconnected":
			var assign assignmentFrame
			if err := json.Unmarshal(data, &assign); err == nil {
				seat = assign.PlayerNumber
				log.Printf("playing seat %d", seat)
			}
		case "state":
			if seat == 0 {
				continue
			}
			var frame stateFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				continue
			}
			dir := steer(frame.State, seat)
			if dir == lastDir {
				continue
			}
			lastDir = dir
			payload, _ := json.Marshal(inputFrame{Type: "input", Direction: dir})
			_ = conn.WriteMessage(websocket.TextMessage, payload)
		case "game_end", "opponent_left":
			log.Printf("match over (%s)", base.Type)
			return
		}
	}
}

// steer moves the paddle center toward the ball, with a small dead zone
// so the bot does not jitter around the target.
func steer(s game.State, seat int) int {
	paddle := s.Paddle1
	if seat == 2 {
		paddle = s.Paddle2
	}
	center := paddle.Y + game.PaddleHeight/2
	target := s.Ball.Y + game.BallSize/2

	const deadZone = game.PaddleSpeed
	switch {
	case target < center-deadZone:
		return -1
	case target > center+deadZone:
		return 1
	}
	return 0
}
