// Package mem provides an in-process transport.Adapter pair, used to drive the protocol engines without
// sockets.
package mem

import (
	"sync"

	"github.com/arloliu/go-msgseq/logger"
	"github.com/arloliu/go-msgseq/transport"
)

// Option configures a Pipe.
type Option func(*config)

type config struct {
	pending bool
	bufSize int
	logger  logger.Logger
}

// WithPending creates both ends in the Connecting state. Call Establish on either end to open them.
func WithPending() Option {
	return func(cfg *config) { cfg.pending = true }
}

// WithBufferSize sets the capacity of each end's inbound queue.
func WithBufferSize(size int) Option {
	return func(cfg *config) { cfg.bufSize = size }
}

// WithLogger sets the logger of both ends.
func WithLogger(l logger.Logger) Option {
	return func(cfg *config) { cfg.logger = l }
}

// Conn is one end of an in-process connection.
//
// Text sent on one end is delivered to the other end's Receive channel. Closing either end closes both.
type Conn struct {
	*transport.BaseConn

	peer *Conn
	mu   sync.RWMutex // guards finishing against concurrent deliveries from the peer
}

var _ transport.Adapter = (*Conn)(nil)

// Pipe creates a connected pair of Conns. Both ends are Open unless WithPending is used.
func Pipe(opts ...Option) (*Conn, *Conn) {
	cfg := &config{logger: logger.GetLogger()}
	for _, opt := range opts {
		opt(cfg)
	}

	a := &Conn{BaseConn: transport.NewBaseConn(cfg.logger.With("end", "a"), cfg.bufSize)}
	b := &Conn{BaseConn: transport.NewBaseConn(cfg.logger.With("end", "b"), cfg.bufSize)}
	a.peer, b.peer = b, a

	if !cfg.pending {
		_ = a.Establish()
	}

	return a, b
}

// Establish opens both ends of a pending pair.
func (c *Conn) Establish() error {
	if err := c.StateMgr().ToOpen(); err != nil {
		return err
	}

	return c.peer.StateMgr().ToOpen()
}

// Send delivers text to the peer. It is a no-op when the connection is not Open.
func (c *Conn) Send(text string) error {
	if !c.State().IsOpen() {
		return nil
	}

	c.peer.deliver(text)

	return nil
}

// Close closes both ends.
func (c *Conn) Close() error {
	c.shutdown()
	c.peer.shutdown()

	return nil
}

func (c *Conn) deliver(text string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.State().IsOpen() {
		return
	}
	c.Deliver(text)
}

func (c *Conn) shutdown() {
	if !c.BeginClose() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.Finish()
	c.Logger().Debug("in-process connection closed")
}
