package ws

import "errors"

// ErrUnsupportedScheme indicates that the URL scheme is not ws, wss, http or https.
var ErrUnsupportedScheme = errors.New("unsupported URL scheme")
