// Package transport defines the duplex text connection that the protocol engines drive, together with the
// connection state machine shared by every implementation.
//
// Implementations live in the sub-packages:
//   - transport/ws: WebSocket text frames.
//   - transport/tcp: length-prefixed protobuf frames over plain TCP.
//   - transport/mem: an in-process pair, used by tests.
package transport

import (
	"context"
	"net"
)

// ConnState represents the lifecycle stage of a connection.
type ConnState uint32

// Connection states. A connection only ever moves forward through them.
const (
	// Connecting indicates that the connection is being established.
	Connecting ConnState = iota
	// Open indicates that the connection is established and text can be exchanged.
	Open
	// Closing indicates that the close handshake has started.
	Closing
	// Closed indicates that the connection is gone.
	Closed
)

// IsConnecting returns if the state is Connecting.
func (cs ConnState) IsConnecting() bool { return cs == Connecting }

// IsOpen returns if the state is Open.
func (cs ConnState) IsOpen() bool { return cs == Open }

// IsClosed returns if the state is Closed.
func (cs ConnState) IsClosed() bool { return cs == Closed }

// String returns string representation of the state.
func (cs ConnState) String() string {
	switch cs {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Adapter is a duplex connection carrying text messages.
//
// An Adapter is safe for one reader of Receive, one caller of Send and any number of concurrent Close calls.
type Adapter interface {
	// ID returns the unique connection id.
	ID() string
	// State returns the current connection state.
	State() ConnState
	// Opened returns a channel that's closed once the connection leaves the Connecting state,
	// either because it became Open or because it failed.
	Opened() <-chan struct{}
	// Done returns a channel that's closed once the connection reaches the Closed state.
	Done() <-chan struct{}
	// Receive returns the inbound messages in arrival order.
	// The channel is closed after the connection is closed.
	Receive() <-chan string
	// Send transmits text to the peer. It is a no-op returning nil when the connection is not Open.
	Send(text string) error
	// Close closes the connection. It is idempotent, only the first call performs the close handshake
	// and returns its error.
	Close() error
}

// Stateful is implemented by the adapters that expose their StateMgr, which every adapter built on
// BaseConn does.
type Stateful interface {
	StateMgr() *StateMgr
}

// WaitOpen blocks until conn is Open. It returns ErrConnClosed when the connection failed or was closed
// first, or the context error when ctx is done first.
func WaitOpen(ctx context.Context, conn Adapter) error {
	if sc, ok := conn.(Stateful); ok {
		return sc.StateMgr().WaitState(ctx, Open)
	}

	select {
	case <-conn.Opened():
	case <-ctx.Done():
		return ctx.Err()
	}
	if !conn.State().IsOpen() {
		return ErrConnClosed
	}

	return nil
}

// Listener accepts inbound connections.
type Listener interface {
	// Accept blocks until a connection is accepted, ctx is done or the listener is closed.
	Accept(ctx context.Context) (Adapter, error)
	// Addr returns the listener's network address.
	Addr() net.Addr
	// Close stops accepting connections. Connections already accepted stay open.
	Close() error
}
