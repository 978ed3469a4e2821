package server

import "errors"

var (
	// ErrAlreadyStarted indicates that Start was called on a server that is already running.
	ErrAlreadyStarted = errors.New("server already started")

	// ErrStopped indicates that the server was stopped and can't be started again.
	ErrStopped = errors.New("server stopped")
)
