package ws

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-msgseq/logger"
	"github.com/arloliu/go-msgseq/transport"
)

// config represents the configuration of WebSocket connections and listeners.
type config struct {
	// handshakeTimeout bounds the opening handshake, on both the dialing and the accepting side.
	// It should be between 100ms and 30 seconds. Defaults to 3 seconds.
	handshakeTimeout time.Duration

	// writeTimeout bounds a single frame write. It should be between 100ms and 60 seconds.
	// Defaults to 5 seconds.
	writeTimeout time.Duration

	// closeTimeout bounds the wait for the peer's close frame after the close frame was sent.
	// It should be between 10ms and 30 seconds. Defaults to 3 seconds.
	closeTimeout time.Duration

	// readLimit is the maximum size in bytes of an inbound message. Defaults to 1 MiB.
	readLimit int64

	// recvBufferSize is the capacity of the inbound message queue. Defaults to transport.DefaultRecvBufferSize.
	recvBufferSize int

	logger logger.Logger
}

func newConfig(opts ...Option) (*config, error) {
	cfg := &config{
		handshakeTimeout: 3 * time.Second,
		writeTimeout:     5 * time.Second,
		closeTimeout:     3 * time.Second,
		readLimit:        1 << 20,
		recvBufferSize:   transport.DefaultRecvBufferSize,
		logger:           logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Option represents a functional option for configuring WebSocket connections and listeners.
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

func durationInRange(d, lower, upper time.Duration) error {
	if d < lower || d > upper {
		return fmt.Errorf("%v is out of range [%v, %v]", d, lower, upper)
	}

	return nil
}

// WithLogger sets the logger of the connections.
func WithLogger(l logger.Logger) Option {
	return newOptFunc("WithLogger", func(cfg *config) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l

		return nil
	})
}

// WithHandshakeTimeout sets the timeout of the opening handshake.
// It should be between 100ms and 30 seconds. Defaults to 3 seconds.
func WithHandshakeTimeout(d time.Duration) Option {
	return newOptFunc("WithHandshakeTimeout", func(cfg *config) error {
		if err := durationInRange(d, 100*time.Millisecond, 30*time.Second); err != nil {
			return err
		}
		cfg.handshakeTimeout = d

		return nil
	})
}

// WithWriteTimeout sets the timeout of a single frame write.
// It should be between 100ms and 60 seconds. Defaults to 5 seconds.
func WithWriteTimeout(d time.Duration) Option {
	return newOptFunc("WithWriteTimeout", func(cfg *config) error {
		if err := durationInRange(d, 100*time.Millisecond, 60*time.Second); err != nil {
			return err
		}
		cfg.writeTimeout = d

		return nil
	})
}

// WithCloseTimeout sets how long Close waits for the peer to acknowledge the close frame.
// It should be between 10ms and 30 seconds. Defaults to 3 seconds.
func WithCloseTimeout(d time.Duration) Option {
	return newOptFunc("WithCloseTimeout", func(cfg *config) error {
		if err := durationInRange(d, 10*time.Millisecond, 30*time.Second); err != nil {
			return err
		}
		cfg.closeTimeout = d

		return nil
	})
}

// WithReadLimit sets the maximum size in bytes of an inbound message. Defaults to 1 MiB.
func WithReadLimit(size int64) Option {
	return newOptFunc("WithReadLimit", func(cfg *config) error {
		if size <= 0 {
			return fmt.Errorf("read limit %d should be positive", size)
		}
		cfg.readLimit = size

		return nil
	})
}

// WithRecvBufferSize sets the capacity of the inbound message queue.
func WithRecvBufferSize(size int) Option {
	return newOptFunc("WithRecvBufferSize", func(cfg *config) error {
		if size <= 0 {
			return fmt.Errorf("buffer size %d should be positive", size)
		}
		cfg.recvBufferSize = size

		return nil
	})
}
