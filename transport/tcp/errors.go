package tcp

import "errors"

var (
	// ErrUnsupportedScheme indicates that the URL scheme is not tcp.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")

	// ErrFrameTooLarge indicates that a frame exceeds the maximum frame size.
	ErrFrameTooLarge = errors.New("frame too large")
)
