// Package ws implements transport.Adapter over WebSocket text frames.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/arloliu/go-msgseq/clock"
	"github.com/arloliu/go-msgseq/transport"
)

// Conn is a WebSocket connection.
//
// A Conn created by Dial starts in the Connecting state and performs the opening handshake in the
// background. A Conn returned by Listener.Accept is already Open.
type Conn struct {
	*transport.BaseConn

	cfg   *config
	clock clock.Clock

	mu         sync.Mutex // protects ws
	ws         *websocket.Conn
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

// Dial starts connecting to the WebSocket server at rawURL and returns immediately.
//
// The URL scheme must be ws, wss, http or https. The handshake is bounded by the handshake timeout and by
// ctx. When it fails, the connection moves straight to Closed.
func Dial(ctx context.Context, rawURL string, opts ...Option) (*Conn, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	target, err := normalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	c := newConn(cfg)
	dialCtx, cancel := context.WithTimeout(ctx, cfg.handshakeTimeout)
	c.cancelDial = cancel

	go c.connect(dialCtx, target)

	return c, nil
}

// normalizeURL maps http(s) to ws(s) and rejects every other scheme.
func normalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}

	return u.String(), nil
}

func (c *Conn) connect(ctx context.Context, target string) {
	defer c.cancelDial()

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.cfg.handshakeTimeout,
	}

	wsConn, resp, err := dialer.DialContext(ctx, target, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if c.State().IsConnecting() {
			c.Logger().Warn("failed to connect to the remote", "url", target, "error", err)
		} else {
			c.Logger().Debug("connect canceled by close", "url", target, "error", err)
		}
		c.Finish()

		return
	}

	c.mu.Lock()
	if !c.State().IsConnecting() { // closed during the handshake
		c.mu.Unlock()
		_ = wsConn.Close()
		c.Finish()

		return
	}
	c.ws = wsConn
	_ = c.StateMgr().ToOpen()
	c.mu.Unlock()

	c.Logger().Debug("connected to the remote",
		"url", target,
		"local_addr", wsConn.LocalAddr().String(),
		"remote_addr", wsConn.RemoteAddr().String(),
	)

	c.readLoop(wsConn)
}

// accepted wraps a connection upgraded by the Listener and opens it.
func (c *Conn) accepted(wsConn *websocket.Conn) {
	c.mu.Lock()
	c.ws = wsConn
	_ = c.StateMgr().ToOpen()
	c.mu.Unlock()

	go c.readLoop(wsConn)
}

// readLoop delivers inbound text frames until the socket fails or is closed, then finishes the connection.
func (c *Conn) readLoop(wsConn *websocket.Conn) {
	defer func() {
		_ = wsConn.Close()
		c.Finish()
	}()

	wsConn.SetReadLimit(c.cfg.readLimit)

	for {
		msgType, data, err := wsConn.ReadMessage()
		if err != nil {
			closing := !c.BeginClose()
			if closing || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.Logger().Debug("connection closed", "error", err)
			} else {
				c.Logger().Warn("failed to read message", "error", err)
			}

			return
		}

		if msgType != websocket.TextMessage {
			c.Logger().Debug("ignore non-text frame", "type", msgType, "size", len(data))
			continue
		}

		if !c.Deliver(string(data)) {
			return
		}
	}
}

func (c *Conn) socket() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ws
}

// RemoteAddr returns the remote network address, or nil when the connection isn't established.
func (c *Conn) RemoteAddr() net.Addr {
	wsConn := c.socket()
	if wsConn == nil {
		return nil
	}

	return wsConn.RemoteAddr()
}

// Send writes text as a single text frame. It is a no-op when the connection is not Open.
func (c *Conn) Send(text string) error {
	if !c.State().IsOpen() {
		return nil
	}

	wsConn := c.socket()
	if wsConn == nil {
		return nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := wsConn.SetWriteDeadline(c.clock.Now().Add(c.cfg.writeTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := wsConn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return fmt.Errorf("write text frame: %w", err)
	}

	return nil
}

// Close performs the closing handshake: it sends a normal-closure frame and waits, bounded by the close
// timeout, for the peer to close its side. It is idempotent.
func (c *Conn) Close() error {
	if !c.BeginClose() {
		return nil
	}

	if c.cancelDial != nil {
		c.cancelDial()
	}

	wsConn := c.socket()
	if wsConn == nil {
		// the pending handshake observes the Closing state and finishes the connection
		<-c.Done()
		return nil
	}

	var closeErr error
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	err := wsConn.WriteControl(websocket.CloseMessage, msg, c.clock.Now().Add(c.cfg.closeTimeout))
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) && !errors.Is(err, net.ErrClosed) {
		closeErr = fmt.Errorf("write close frame: %w", err)
	}

	timer := c.clock.NewTimer(c.cfg.closeTimeout)
	defer timer.Stop()

	select {
	case <-c.Done():
	case <-timer.C():
		c.Logger().Debug("close handshake timeout, close the socket", "timeout", c.cfg.closeTimeout)
		if err := wsConn.Close(); err != nil && closeErr == nil && !errors.Is(err, net.ErrClosed) {
			closeErr = fmt.Errorf("close socket: %w", err)
		}
		<-c.Done()
	}

	return closeErr
}

// DialAndWait is like Dial but blocks until the connection is Open or has failed.
//
// The error wraps transport.ErrConnClosed when the handshake failed, or the context error when ctx is done
// first; the connection is closed in both cases.
func DialAndWait(ctx context.Context, rawURL string, opts ...Option) (*Conn, error) {
	c, err := Dial(ctx, rawURL, opts...)
	if err != nil {
		return nil, err
	}

	if err := transport.WaitOpen(ctx, c); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("connect to %s: %w", rawURL, err)
	}

	return c, nil
}
