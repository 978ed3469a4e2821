package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-msgseq/logger"
	"github.com/arloliu/go-msgseq/protocol"
)

type config struct {
	// statsInterval is the period of the metrics log record. Zero disables it.
	statsInterval time.Duration

	protoOpts []protocol.Option
	metrics   *protocol.Metrics
	logger    logger.Logger
}

func newConfig(opts ...Option) (*config, error) {
	cfg := &config{
		metrics: &protocol.Metrics{},
		logger:  logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	cfg.protoOpts = append(cfg.protoOpts, protocol.WithLogger(cfg.logger), protocol.WithMetrics(cfg.metrics))

	return cfg, nil
}

// Option represents a functional option for configuring a Server.
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

// WithLogger sets the logger of the server and of its senders.
func WithLogger(l logger.Logger) Option {
	return newOptFunc("WithLogger", func(cfg *config) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l

		return nil
	})
}

// WithMetrics sets the metrics the senders report to.
func WithMetrics(m *protocol.Metrics) Option {
	return newOptFunc("WithMetrics", func(cfg *config) error {
		if m == nil {
			return errors.New("metrics is nil")
		}
		cfg.metrics = m

		return nil
	})
}

// WithStatsInterval enables a periodic info record carrying the sender metrics.
// It should be 0 (disabled) or between 10ms and 1 hour. Defaults to 0.
func WithStatsInterval(d time.Duration) Option {
	return newOptFunc("WithStatsInterval", func(cfg *config) error {
		if d != 0 && (d < 10*time.Millisecond || d > time.Hour) {
			return fmt.Errorf("%v is out of range [10ms, 1h]", d)
		}
		cfg.statsInterval = d

		return nil
	})
}

// WithProtocolOptions passes extra options to the sender of every connection, e.g. a mock clock in tests.
func WithProtocolOptions(opts ...protocol.Option) Option {
	return newOptFunc("WithProtocolOptions", func(cfg *config) error {
		cfg.protoOpts = append(cfg.protoOpts, opts...)

		return nil
	})
}
