package app

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/arloliu/go-msgseq/logger"
)

type config struct {
	// stopTimeout bounds App.Stop. It should be between 100ms and 1 minute. Defaults to 5 seconds.
	stopTimeout time.Duration

	// signals trigger the graceful stop. Defaults to SIGINT, SIGTERM and SIGUSR2.
	signals []os.Signal

	logger logger.Logger
}

func newConfig(opts ...Option) (*config, error) {
	cfg := &config{
		stopTimeout: 5 * time.Second,
		signals:     []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR2},
		logger:      logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Option represents a functional option for Run.
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

// WithLogger sets the logger of the runtime.
func WithLogger(l logger.Logger) Option {
	return newOptFunc("WithLogger", func(cfg *config) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l

		return nil
	})
}

// WithStopTimeout sets the time App.Stop is given to return.
// It should be between 100ms and 1 minute. Defaults to 5 seconds.
func WithStopTimeout(d time.Duration) Option {
	return newOptFunc("WithStopTimeout", func(cfg *config) error {
		if d < 100*time.Millisecond || d > time.Minute {
			return fmt.Errorf("%v is out of range [100ms, 1m0s]", d)
		}
		cfg.stopTimeout = d

		return nil
	})
}

// WithSignals replaces the signals that trigger the graceful stop.
func WithSignals(sigs ...os.Signal) Option {
	return newOptFunc("WithSignals", func(cfg *config) error {
		if len(sigs) == 0 {
			return errors.New("no signal given")
		}
		cfg.signals = sigs

		return nil
	})
}
