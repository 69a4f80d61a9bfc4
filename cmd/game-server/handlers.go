package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pong-server/internal/session"
)

func roomIDParam(r *http.Request) string {
	return chi.URLParam(r, "room_id")
}

func healthHandler(m *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "activeGames": len(m.ListRooms())})
	}
}

func createGameHandler(m *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			RoomID   string   `json:"roomId"`
			UserIDs  []string `json:"userIds"`
			WinScore int      `json:"winScore"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeHTTPError(w, http.StatusBadRequest, "INVALID_JSON")
			return
		}
		if body.RoomID == "" || len(body.UserIDs) != 2 ||
			body.UserIDs[0] == "" || body.UserIDs[1] == "" ||
			body.UserIDs[0] == body.UserIDs[1] {
			writeHTTPError(w, http.StatusBadRequest, "INVALID_REQUEST")
			return
		}
		if err := m.CreateRoom(body.RoomID, body.UserIDs, body.WinScore); err != nil {
			if errors.Is(err, session.ErrRoomExists) {
				writeHTTPError(w, http.StatusConflict, "GAME_ALREADY_EXISTS")
				return
			}
			writeHTTPError(w, http.StatusInternalServerError, "INTERNAL_ERROR")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"roomId": body.RoomID})
	}
}

func listGamesHandler(m *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms := m.ListRooms()
		writeJSON(w, http.StatusOK, map[string]any{"items": rooms, "count": len(rooms)})
	}
}

func gameStateHandler(m *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := roomIDParam(r)
		state, err := m.State(roomID)
		if err != nil {
			writeHTTPError(w, http.StatusNotFound, "GAME_NOT_FOUND")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"roomId": roomID, "state": state})
	}
}

func forceEndGameHandler(m *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := roomIDParam(r)
		if err := m.ForceEndGame(roomID); err != nil {
			writeHTTPError(w, http.StatusNotFound, "GAME_NOT_FOUND")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "roomId": roomID})
	}
}
