// Package tcp implements transport.Adapter over plain TCP.
//
// Every message travels in its own frame: a 4-byte big-endian payload length followed by a serialized
// google.protobuf.StringValue carrying the text. A connection is closed by half-closing the write side and
// waiting for the peer to do the same.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/arloliu/go-msgseq/clock"
	"github.com/arloliu/go-msgseq/transport"
)

// Conn is a framed TCP connection.
//
// A Conn created by Dial starts in the Connecting state and connects in the background.
// A Conn returned by Listener.Accept is already Open.
type Conn struct {
	*transport.BaseConn

	cfg   *config
	clock clock.Clock

	mu         sync.Mutex // protects conn
	conn       net.Conn
	writeMu    sync.Mutex
	cancelDial context.CancelFunc
}

var _ transport.Adapter = (*Conn)(nil)

func newConn(cfg *config) *Conn {
	return &Conn{
		BaseConn: transport.NewBaseConn(cfg.logger, cfg.recvBufferSize),
		cfg:      cfg,
		clock:    clock.New(),
	}
}

// Dial starts connecting to rawURL, in the form tcp://host:port, and returns immediately.
//
// The connect attempt is bounded by the connect timeout and by ctx. When it fails, the connection moves
// straight to Closed.
func Dial(ctx context.Context, rawURL string, opts ...Option) (*Conn, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	address, err := parseAddress(rawURL)
	if err != nil {
		return nil, err
	}

	c := newConn(cfg)
	dialCtx, cancel := context.WithTimeout(ctx, cfg.connectTimeout)
	c.cancelDial = cancel

	go c.connect(dialCtx, address)

	return c, nil
}

func parseAddress(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if u.Scheme != "tcp" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Hostname() == "" || u.Port() == "" {
		return "", fmt.Errorf("url %q should be in the form tcp://host:port", rawURL)
	}

	return u.Host, nil
}

func (c *Conn) connect(ctx context.Context, address string) {
	defer c.cancelDial()

	dialer := &net.Dialer{KeepAlive: 30 * time.Second}
	netConn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		if c.State().IsConnecting() {
			c.Logger().Warn("failed to connect to the remote", "address", address, "error", err)
		} else {
			c.Logger().Debug("connect canceled by close", "address", address, "error", err)
		}
		c.Finish()

		return
	}

	c.mu.Lock()
	if !c.State().IsConnecting() { // closed while connecting
		c.mu.Unlock()
		_ = netConn.Close()
		c.Finish()

		return
	}
	c.conn = netConn
	_ = c.StateMgr().ToOpen()
	c.mu.Unlock()

	c.Logger().Debug("connected to the remote",
		"address", address,
		"local_addr", netConn.LocalAddr().String(),
		"remote_addr", netConn.RemoteAddr().String(),
	)

	c.readLoop(netConn)
}

// accepted wraps a connection accepted by the Listener and opens it.
func (c *Conn) accepted(netConn net.Conn) {
	c.mu.Lock()
	c.conn = netConn
	_ = c.StateMgr().ToOpen()
	c.mu.Unlock()

	go c.readLoop(netConn)
}

// readLoop delivers inbound frames until the socket fails or is closed, then finishes the connection.
func (c *Conn) readLoop(netConn net.Conn) {
	defer func() {
		_ = netConn.Close()
		c.Finish()
	}()

	reader := &frameReader{
		frameTimeout: c.cfg.frameTimeout,
		maxFrameSize: c.cfg.maxFrameSize,
	}

	for {
		text, err := reader.ReadText(netConn)
		if err != nil {
			closing := !c.BeginClose()
			if closing || isClosedError(err) {
				c.Logger().Debug("connection closed", "error", err)
			} else {
				c.Logger().Warn("failed to read frame", "error", err)
			}

			return
		}

		if !c.Deliver(text) {
			return
		}
	}
}

func isClosedError(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}

func (c *Conn) socket() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn
}

// RemoteAddr returns the remote network address, or nil when the connection isn't established.
func (c *Conn) RemoteAddr() net.Addr {
	netConn := c.socket()
	if netConn == nil {
		return nil
	}

	return netConn.RemoteAddr()
}

// Send writes text as a single frame. It is a no-op when the connection is not Open.
func (c *Conn) Send(text string) error {
	if !c.State().IsOpen() {
		return nil
	}

	netConn := c.socket()
	if netConn == nil {
		return nil
	}

	frame, err := encodeFrame(text, c.cfg.maxFrameSize)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := netConn.SetWriteDeadline(c.clock.Now().Add(c.cfg.writeTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if _, err := netConn.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	return nil
}

// Close half-closes the write side and waits, bounded by the close timeout, for the peer to close its side.
// It is idempotent.
func (c *Conn) Close() error {
	if !c.BeginClose() {
		return nil
	}

	if c.cancelDial != nil {
		c.cancelDial()
	}

	netConn := c.socket()
	if netConn == nil {
		// the pending connect observes the Closing state and finishes the connection
		<-c.Done()
		return nil
	}

	var closeErr error
	if tcpConn, ok := netConn.(*net.TCPConn); ok {
		// wait for pending writes before sending FIN
		c.writeMu.Lock()
		err := tcpConn.CloseWrite()
		c.writeMu.Unlock()
		if err != nil && !errors.Is(err, net.ErrClosed) {
			closeErr = fmt.Errorf("close write side: %w", err)
		}
	} else {
		_ = netConn.Close()
	}

	timer := c.clock.NewTimer(c.cfg.closeTimeout)
	defer timer.Stop()

	select {
	case <-c.Done():
	case <-timer.C():
		c.Logger().Debug("peer didn't close in time, close the socket", "timeout", c.cfg.closeTimeout)
		if err := netConn.Close(); err != nil && closeErr == nil && !errors.Is(err, net.ErrClosed) {
			closeErr = fmt.Errorf("close socket: %w", err)
		}
		<-c.Done()
	}

	return closeErr
}
