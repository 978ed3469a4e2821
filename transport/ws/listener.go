package ws

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/arloliu/go-msgseq/logger"
	"github.com/arloliu/go-msgseq/transport"
)

// Listener accepts WebSocket connections. Every HTTP request, whatever its path, is upgraded.
type Listener struct {
	cfg      *config
	logger   logger.Logger
	ln       net.Listener
	srv      *http.Server
	upgrader websocket.Upgrader

	accepted  chan *Conn
	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

var _ transport.Listener = (*Listener)(nil)

// NewListener listens on the TCP address addr and starts serving WebSocket upgrades.
func NewListener(addr string, opts ...Option) (*Listener, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, err
	}

	l := &Listener{
		cfg:    cfg,
		logger: cfg.logger.With("listener", ln.Addr().String()),
		ln:     ln,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: cfg.handshakeTimeout,
			// the peers are test harnesses, not browsers
			CheckOrigin: func(*http.Request) bool { return true },
		},
		accepted: make(chan *Conn),
		closed:   make(chan struct{}),
	}
	l.srv = &http.Server{
		Handler:           l,
		ReadHeaderTimeout: cfg.handshakeTimeout,
	}

	go l.serve()

	return l, nil
}

func (l *Listener) serve() {
	l.logger.Debug("start serving websocket upgrades")

	if err := l.srv.Serve(l.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.logger.Error("websocket listener stopped", "error", err)
	}
}

// ServeHTTP upgrades the request and hands the connection to Accept.
func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-l.closed:
		http.Error(w, "listener closed", http.StatusServiceUnavailable)
		return
	default:
	}

	wsConn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already replied with an HTTP error
		l.logger.Debug("failed to upgrade connection", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	c := newConn(l.cfg)
	c.accepted(wsConn)
	c.Logger().Debug("connection accepted", "remote_addr", wsConn.RemoteAddr().String())

	select {
	case l.accepted <- c:
	case <-c.Done():
	case <-l.closed:
		_ = c.Close()
	}
}

// Accept waits for the next upgraded connection.
func (l *Listener) Accept(ctx context.Context) (transport.Adapter, error) {
	select {
	case c := <-l.accepted:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.closed:
		return nil, transport.ErrListenerClosed
	}
}

// Addr returns the listener's network address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// URL returns the ws:// URL of the listener.
func (l *Listener) URL() string {
	return "ws://" + l.ln.Addr().String()
}

// Close stops the HTTP server. Connections already accepted stay open.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		close(l.closed)
		l.closeErr = l.srv.Close()
	})

	return l.closeErr
}
