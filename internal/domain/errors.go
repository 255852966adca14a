package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrOutOfRange      = errors.New("price out of range")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidPair     = errors.New("invalid pair config")
	ErrInvalidTriangle = errors.New("invalid triangle")
	ErrInvalidUpdate   = errors.New("invalid update")
	ErrWSDisconnect    = errors.New("websocket disconnected")
	ErrFeedStale       = errors.New("feed stale")
)
