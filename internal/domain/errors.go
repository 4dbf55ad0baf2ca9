package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidOrder = errors.New("invalid order parameters")
	ErrWSDisconnect = errors.New("websocket disconnected")
)
