// Package server implements the sending host: it accepts connections on a transport.Listener and runs
// one protocol.Sender per accepted connection.
//
// After the sequence is sent, a connection is kept open until the peer closes it or the server stops.
// Inbound messages are read and discarded.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-msgseq/internal/task"
	"github.com/arloliu/go-msgseq/logger"
	"github.com/arloliu/go-msgseq/protocol"
	"github.com/arloliu/go-msgseq/sequence"
	"github.com/arloliu/go-msgseq/transport"
)

type session struct {
	conn        transport.Adapter
	connectedAt time.Time
}

// Server is the sending host.
type Server struct {
	cfg      *config
	ln       transport.Listener
	sender   *protocol.Sender
	logger   logger.Logger
	sessions *xsync.MapOf[string, *session]

	mu      sync.Mutex // guards taskMgr, started and stopped
	taskMgr *task.Manager
	started bool
	stopped bool
}

// New creates a Server that sends seq to every connection accepted by l.
// The Server owns l and closes it on Stop.
func New(l transport.Listener, seq *sequence.Sequence, opts ...Option) (*Server, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:      cfg,
		ln:       l,
		sender:   protocol.NewSender(seq, cfg.protoOpts...),
		logger:   cfg.logger,
		sessions: xsync.NewMapOf[string, *session](),
	}, nil
}

// Start starts accepting connections. It returns immediately; ctx bounds the lifetime of every session.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return ErrAlreadyStarted
	}

	s.taskMgr = task.NewManager(ctx, s.logger)
	if err := s.taskMgr.Start("acceptLoop", s.acceptOnce); err != nil {
		return err
	}

	if s.cfg.statsInterval > 0 {
		err := s.taskMgr.StartInterval("stats", func() bool {
			s.logger.Info("Server stats", append(s.Metrics().LogValues(), "sessions", s.Sessions())...)
			return true
		}, s.cfg.statsInterval)
		if err != nil {
			return err
		}
	}

	s.started = true
	s.logger.Info("Server started", "addr", s.ln.Addr().String())

	return nil
}

// Stop closes the listener and every live connection, then waits for the sessions to finish within ctx.
// It returns the joined close errors. Stop is idempotent.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}
	s.stopped = true

	var errs []error
	if err := s.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs = append(errs, fmt.Errorf("close listener: %w", err))
	}

	if !s.started {
		return errors.Join(errs...)
	}

	s.sessions.Range(func(id string, sess *session) bool {
		if err := sess.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection %s: %w", id, err))
		}

		return true
	})

	s.taskMgr.Stop()

	waitDone := make(chan struct{})
	go func() {
		s.taskMgr.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("wait for sessions: %w", ctx.Err()))
	}

	s.logger.Info("Server stopped", s.Metrics().LogValues()...)

	return errors.Join(errs...)
}

// Addr returns the listener's network address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Metrics returns the metrics of the senders.
func (s *Server) Metrics() *protocol.Metrics {
	return s.sender.Metrics()
}

// Sessions returns the number of live connections.
func (s *Server) Sessions() int {
	return s.sessions.Size()
}

func (s *Server) acceptOnce() bool {
	ctx := s.taskMgr.Context()

	conn, err := s.ln.Accept(ctx)
	if err != nil {
		if errors.Is(err, transport.ErrListenerClosed) || ctx.Err() != nil {
			return false
		}
		s.logger.Warn("failed to accept connection", "error", err)

		return true
	}

	s.sessions.Store(conn.ID(), &session{conn: conn, connectedAt: time.Now()})
	s.logger.Info("Client connected", "conn_id", conn.ID(), "remote", remoteAddr(conn))
	s.watchState(conn)

	if err := s.taskMgr.Go("session", func(ctx context.Context) { s.serve(ctx, conn) }); err != nil {
		s.sessions.Delete(conn.ID())
		_ = conn.Close()

		return false
	}

	return true
}

func (s *Server) serve(ctx context.Context, conn transport.Adapter) {
	defer s.sessions.Delete(conn.ID())

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for text := range conn.Receive() {
			s.logger.Debug("ignore inbound message", "conn_id", conn.ID(), "text", text)
		}
	}()

	report := s.sender.Execute(ctx, conn)
	s.logger.Info("Sequence finished", "conn_id", conn.ID(), "outcome", report.Outcome, "sent", report.Sent)

	select {
	case <-conn.Done():
	case <-ctx.Done():
		if err := conn.Close(); err != nil {
			s.logger.Warn("failed to close connection", "conn_id", conn.ID(), "error", err)
		}
	}
	<-drained

	if sess, ok := s.sessions.Load(conn.ID()); ok {
		s.logger.Info("Client disconnected", "conn_id", conn.ID(), "duration", time.Since(sess.connectedAt))
	}
}

// watchState logs the state transitions of conn until it is closed.
func (s *Server) watchState(conn transport.Adapter) {
	sc, ok := conn.(transport.Stateful)
	if !ok {
		return
	}

	connID := conn.ID()
	sc.StateMgr().AddHandler(func(prevState, newState transport.ConnState) {
		s.logger.Debug("connection state changed", "conn_id", connID, "prev", prevState, "state", newState)
	})
}

func remoteAddr(conn transport.Adapter) string {
	if ra, ok := conn.(interface{ RemoteAddr() net.Addr }); ok {
		if addr := ra.RemoteAddr(); addr != nil {
			return addr.String()
		}
	}

	return "unknown"
}
