package tcp

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-msgseq/logger"
	"github.com/arloliu/go-msgseq/transport"
)

// DefaultMaxFrameSize is the default maximum payload size of a frame, 1 MiB.
const DefaultMaxFrameSize = 1 << 20

// config represents the configuration of TCP connections and listeners.
type config struct {
	// connectTimeout defines the timeout for establishing a connection. It should be between 100ms and 30 seconds.
	// Defaults to 3 seconds.
	connectTimeout time.Duration

	// frameTimeout defines the time allowed to receive a frame payload once its length has been read.
	// It should be between 100ms and 120 seconds. Defaults to 5 seconds.
	frameTimeout time.Duration

	// writeTimeout bounds a single frame write. It should be between 100ms and 60 seconds. Defaults to 5 seconds.
	writeTimeout time.Duration

	// closeTimeout bounds the wait for the peer to close its side. It should be between 10ms and 30 seconds.
	// Defaults to 3 seconds.
	closeTimeout time.Duration

	// acceptTimeout defines the timeout for each iteration of accepting a connection.
	// It should be between 10ms and 2 seconds. Defaults to 1 second.
	acceptTimeout time.Duration

	// maxFrameSize is the maximum payload size of a frame. Defaults to DefaultMaxFrameSize.
	maxFrameSize uint32

	// recvBufferSize is the capacity of the inbound message queue. Defaults to transport.DefaultRecvBufferSize.
	recvBufferSize int

	logger logger.Logger
}

func newConfig(opts ...Option) (*config, error) {
	cfg := &config{
		connectTimeout: 3 * time.Second,
		frameTimeout:   5 * time.Second,
		writeTimeout:   5 * time.Second,
		closeTimeout:   3 * time.Second,
		acceptTimeout:  1 * time.Second,
		maxFrameSize:   DefaultMaxFrameSize,
		recvBufferSize: transport.DefaultRecvBufferSize,
		logger:         logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Option represents a functional option for configuring TCP connections and listeners.
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

// WithConnectTimeout sets the timeout for establishing a connection.
// It should be between 100ms and 30 seconds. Defaults to 3 seconds.
func WithConnectTimeout(d time.Duration) Option {
	return newOptFunc("WithConnectTimeout", func(cfg *config) error {
		if err := durationInRange(d, 100*time.Millisecond, 30*time.Second); err != nil {
			return err
		}
		cfg.connectTimeout = d

		return nil
	})
}

// WithFrameTimeout sets the time allowed to receive a frame payload after its length.
// It should be between 100ms and 120 seconds. Defaults to 5 seconds.
func WithFrameTimeout(d time.Duration) Option {
	return newOptFunc("WithFrameTimeout", func(cfg *config) error {
		if err := durationInRange(d, 100*time.Millisecond, 120*time.Second); err != nil {
			return err
		}
		cfg.frameTimeout = d

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

// WithCloseTimeout sets how long Close waits for the peer to close its side.
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

// WithAcceptTimeout sets the timeout of each accept iteration of a Listener.
// It should be between 10ms and 2 seconds. Defaults to 1 second.
func WithAcceptTimeout(d time.Duration) Option {
	return newOptFunc("WithAcceptTimeout", func(cfg *config) error {
		if err := durationInRange(d, 10*time.Millisecond, 2*time.Second); err != nil {
			return err
		}
		cfg.acceptTimeout = d

		return nil
	})
}

// WithMaxFrameSize sets the maximum payload size of a frame. Defaults to 1 MiB.
func WithMaxFrameSize(size uint32) Option {
	return newOptFunc("WithMaxFrameSize", func(cfg *config) error {
		if size == 0 {
			return errors.New("max frame size should be positive")
		}
		cfg.maxFrameSize = size

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
