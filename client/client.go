// Package client implements the receiving host: it dials a single connection and verifies the sequence
// arriving on it with a protocol.Receiver.
//
// The target URL selects the transport. ws, wss, http and https URLs use transport/ws, tcp URLs use
// transport/tcp. The dial is a single attempt.
package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/arloliu/go-msgseq/internal/task"
	"github.com/arloliu/go-msgseq/logger"
	"github.com/arloliu/go-msgseq/protocol"
	"github.com/arloliu/go-msgseq/sequence"
	"github.com/arloliu/go-msgseq/transport"
	"github.com/arloliu/go-msgseq/transport/tcp"
	"github.com/arloliu/go-msgseq/transport/ws"
)

// Client is the receiving host. A Client runs once.
type Client struct {
	url      string
	scheme   string
	cfg      *config
	receiver *protocol.Receiver
	logger   logger.Logger
	done     chan struct{}

	mu      sync.Mutex // guards the fields below
	taskMgr *task.Manager
	conn    transport.Adapter
	report  protocol.Report
	err     error
}

// New creates a Client that verifies seq on a connection to rawURL.
func New(rawURL string, seq *sequence.Sequence, opts ...Option) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", rawURL, err)
	}

	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "ws", "wss", "http", "https", "tcp":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	return &Client{
		url:      rawURL,
		scheme:   scheme,
		cfg:      cfg,
		receiver: protocol.NewReceiver(seq, cfg.protoOpts...),
		logger:   cfg.logger.With("url", rawURL),
		done:     make(chan struct{}),
	}, nil
}

// Start dials the target and starts verifying in the background. It returns once the dial has started.
// Cancelling ctx abandons the run.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.taskMgr != nil {
		return ErrAlreadyStarted
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	c.conn = conn
	c.taskMgr = task.NewManager(ctx, c.logger)

	c.logger.Info("Connecting", "conn_id", conn.ID())

	return c.taskMgr.Go("receiver", func(ctx context.Context) {
		report, err := c.verify(ctx, conn)

		c.mu.Lock()
		c.report, c.err = report, err
		c.mu.Unlock()

		close(c.done)
	})
}

// Run starts the client and blocks until the run is over. It returns the receiver report, and an error
// when the connection could not be established.
func (c *Client) Run(ctx context.Context) (protocol.Report, error) {
	if err := c.Start(ctx); err != nil {
		return protocol.Report{}, err
	}
	<-c.done

	return c.Result()
}

// Done returns a channel that's closed once the run is over.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Result returns the receiver report and the connect error. It is only meaningful once Done is closed.
func (c *Client) Result() (protocol.Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.report, c.err
}

// Metrics returns the metrics of the receiver.
func (c *Client) Metrics() *protocol.Metrics {
	return c.receiver.Metrics()
}

// Stop closes the connection, which abandons a run in progress, and waits for the run to finish within ctx.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	conn, taskMgr := c.conn, c.taskMgr
	c.mu.Unlock()

	if taskMgr == nil {
		return nil
	}

	closeErr := conn.Close()
	taskMgr.Stop()

	select {
	case <-c.done:
	case <-ctx.Done():
		return fmt.Errorf("wait for receiver: %w", ctx.Err())
	}

	if closeErr != nil {
		return fmt.Errorf("close connection: %w", closeErr)
	}

	return nil
}

func (c *Client) dial(ctx context.Context) (transport.Adapter, error) {
	switch c.scheme {
	case "tcp":
		conn, err := tcp.Dial(ctx, c.url, c.cfg.tcpOpts...)
		if err != nil {
			return nil, err
		}

		return conn, nil

	default:
		conn, err := ws.Dial(ctx, c.url, c.cfg.wsOpts...)
		if err != nil {
			return nil, err
		}

		return conn, nil
	}
}

func (c *Client) verify(ctx context.Context, conn transport.Adapter) (protocol.Report, error) {
	if err := transport.WaitOpen(ctx, conn); err != nil {
		_ = conn.Close()
		c.logger.Warn("Connection failed", "conn_id", conn.ID(), "state", conn.State(), "error", err)

		return protocol.Report{Outcome: protocol.OutcomeAbandoned}, fmt.Errorf("connect to %s: %w", c.url, err)
	}

	c.logger.Info("Connected", "conn_id", conn.ID())

	report := c.receiver.Wait(ctx, conn)
	c.logger.Info("Run finished", "outcome", report.Outcome, "verified", report.Verified())

	return report, nil
}
