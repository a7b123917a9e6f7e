package domain

import "errors"

var (
	ErrNoPrice       = errors.New("no price available")
	ErrNoFilters     = errors.New("symbol filters unavailable")
	ErrWSDisconnect  = errors.New("websocket disconnected")
	ErrOrderRejected = errors.New("order rejected by exchange")
)
