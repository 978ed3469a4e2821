package tcp

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/arloliu/go-msgseq/logger"
	"github.com/arloliu/go-msgseq/transport"
)

// Listener accepts framed TCP connections.
type Listener struct {
	cfg    *config
	logger logger.Logger
	ln     *net.TCPListener

	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

var _ transport.Listener = (*Listener)(nil)

// NewListener listens on the TCP address addr, in the form host:port.
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

	tcpListener, ok := ln.(*net.TCPListener)
	if !ok {
		_ = ln.Close()
		return nil, errors.New("listener is not a TCP listener")
	}

	return &Listener{
		cfg:    cfg,
		logger: cfg.logger.With("listener", ln.Addr().String()),
		ln:     tcpListener,
		closed: make(chan struct{}),
	}, nil
}

// Accept waits for the next connection. Each accept iteration is bounded by the accept timeout so that
// ctx and Close are observed promptly.
func (l *Listener) Accept(ctx context.Context) (transport.Adapter, error) {
	// wake up a pending Accept as soon as ctx is done
	stop := context.AfterFunc(ctx, func() {
		_ = l.ln.SetDeadline(time.Now())
	})
	defer stop()

	for {
		select {
		case <-l.closed:
			return nil, transport.ErrListenerClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := l.ln.SetDeadline(time.Now().Add(l.cfg.acceptTimeout)); err != nil {
			if l.isClosed() {
				return nil, transport.ErrListenerClosed
			}
			return nil, err
		}

		netConn, err := l.ln.Accept()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue // re-accept if not closed and ctx is not done
			}
			if l.isClosed() {
				return nil, transport.ErrListenerClosed
			}
			l.logger.Error("failed to accept connection", "error", err)

			return nil, err
		}

		c := newConn(l.cfg)
		c.accepted(netConn)
		c.Logger().Debug("connection accepted", "remote_addr", netConn.RemoteAddr().String())

		return c, nil
	}
}

func (l *Listener) isClosed() bool {
	select {
	case <-l.closed:
		return true
	default:
		return false
	}
}

// Addr returns the listener's network address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// URL returns the tcp:// URL of the listener.
func (l *Listener) URL() string {
	return "tcp://" + l.ln.Addr().String()
}

// Close stops accepting connections. Connections already accepted stay open.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		close(l.closed)
		l.closeErr = l.ln.Close()
	})

	return l.closeErr
}
