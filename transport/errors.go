package transport

import "errors"

var (
	// ErrInvalidTransition is returned when an attempt is made to transition the connection
	// state to an invalid state.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrConnClosed indicates that the connection is closed.
	ErrConnClosed = errors.New("connection closed")

	// ErrListenerClosed indicates that the listener is closed.
	ErrListenerClosed = errors.New("listener closed")
)
