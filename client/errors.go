package client

import "errors"

var (
	// ErrUnsupportedScheme indicates that the target URL scheme is none of ws, wss, http, https and tcp.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")

	// ErrAlreadyStarted indicates that Start was called on a client that is already running.
	ErrAlreadyStarted = errors.New("client already started")
)
