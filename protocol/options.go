package protocol

import (
	"time"

	"github.com/arloliu/go-msgseq/clock"
	"github.com/arloliu/go-msgseq/logger"
)

// DefaultTolerance is the default half-width of the arrival window.
const DefaultTolerance = 300 * time.Millisecond

type config struct {
	tolerance time.Duration
	clock     clock.Clock
	logger    logger.Logger
	metrics   *Metrics
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		tolerance: DefaultTolerance,
		clock:     clock.New(),
		logger:    logger.GetLogger(),
		metrics:   &Metrics{},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// Option configures a Sender or a Receiver.
type Option func(*config)

// WithTolerance sets the half-width of the arrival window, and the extra time the Receiver waits past
// the delay before giving up. Negative values are ignored. Defaults to DefaultTolerance.
//
// The Sender ignores this option.
func WithTolerance(d time.Duration) Option {
	return func(cfg *config) {
		if d >= 0 {
			cfg.tolerance = d
		}
	}
}

// WithClock sets the time source. Defaults to the wall clock.
func WithClock(c clock.Clock) Option {
	return func(cfg *config) {
		if c != nil {
			cfg.clock = c
		}
	}
}

// WithLogger sets the logger. Defaults to the package-level logger.
func WithLogger(l logger.Logger) Option {
	return func(cfg *config) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithMetrics sets the metrics the engine reports to, so several engines can share one Metrics.
func WithMetrics(m *Metrics) Option {
	return func(cfg *config) {
		if m != nil {
			cfg.metrics = m
		}
	}
}
