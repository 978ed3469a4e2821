package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-msgseq/logger"
	"github.com/arloliu/go-msgseq/protocol"
	"github.com/arloliu/go-msgseq/transport/tcp"
	"github.com/arloliu/go-msgseq/transport/ws"
)

type config struct {
	// tolerance is the half-width of the arrival window. It should be between 0 and 10 seconds.
	// Defaults to protocol.DefaultTolerance.
	tolerance time.Duration

	protoOpts []protocol.Option
	wsOpts    []ws.Option
	tcpOpts   []tcp.Option
	metrics   *protocol.Metrics
	logger    logger.Logger
}

func newConfig(opts ...Option) (*config, error) {
	cfg := &config{
		tolerance: protocol.DefaultTolerance,
		metrics:   &protocol.Metrics{},
		logger:    logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	cfg.protoOpts = append(cfg.protoOpts,
		protocol.WithTolerance(cfg.tolerance),
		protocol.WithLogger(cfg.logger),
		protocol.WithMetrics(cfg.metrics),
	)
	cfg.wsOpts = append([]ws.Option{ws.WithLogger(cfg.logger)}, cfg.wsOpts...)
	cfg.tcpOpts = append([]tcp.Option{tcp.WithLogger(cfg.logger)}, cfg.tcpOpts...)

	return cfg, nil
}

// Option represents a functional option for configuring a Client.
type Option interface {
	apply(*config) error
}

type optFunc struct {
	name      string
	applyFunc func(*config) error
}

func (o *optFunc) apply(cfg *config) error {
	if err := o.applyFunc(cfg); err != nil {
		return fmt.Errorf("%s: %w", o.name, err)
	}

	return nil
}

func newOptFunc(name string, f func(*config) error) *optFunc {
	return &optFunc{name: name, applyFunc: f}
}

// WithLogger sets the logger of the client, its receiver and its connection.
func WithLogger(l logger.Logger) Option {
	return newOptFunc("WithLogger", func(cfg *config) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l

		return nil
	})
}

// WithTolerance sets the half-width of the arrival window.
// It should be between 0 and 10 seconds. Defaults to 300ms.
func WithTolerance(d time.Duration) Option {
	return newOptFunc("WithTolerance", func(cfg *config) error {
		if d < 0 || d > 10*time.Second {
			return fmt.Errorf("%v is out of range [0s, 10s]", d)
		}
		cfg.tolerance = d

		return nil
	})
}

// WithMetrics sets the metrics the receiver reports to.
func WithMetrics(m *protocol.Metrics) Option {
	return newOptFunc("WithMetrics", func(cfg *config) error {
		if m == nil {
			return errors.New("metrics is nil")
		}
		cfg.metrics = m

		return nil
	})
}

// WithProtocolOptions passes extra options to the receiver.
func WithProtocolOptions(opts ...protocol.Option) Option {
	return newOptFunc("WithProtocolOptions", func(cfg *config) error {
		cfg.protoOpts = append(cfg.protoOpts, opts...)

		return nil
	})
}

// WithWebSocketOptions passes options to the WebSocket connection, used for ws, wss, http and https URLs.
func WithWebSocketOptions(opts ...ws.Option) Option {
	return newOptFunc("WithWebSocketOptions", func(cfg *config) error {
		cfg.wsOpts = append(cfg.wsOpts, opts...)

		return nil
	})
}

// WithTCPOptions passes options to the TCP connection, used for tcp URLs.
func WithTCPOptions(opts ...tcp.Option) Option {
	return newOptFunc("WithTCPOptions", func(cfg *config) error {
		cfg.tcpOpts = append(cfg.tcpOpts, opts...)

		return nil
	})
}
