package session

import "errors"

var (
	ErrRoomExists     = errors.New("room_already_exists")
	ErrRoomNotFound   = errors.New("room_not_found")
	ErrUserNotAllowed = errors.New("user_not_allowed")
	ErrRoomFull       = errors.New("room_full")
	ErrGameNotFound   = errors.New("game_not_found")
)
