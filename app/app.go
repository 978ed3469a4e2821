// Package app runs a host until it finishes by itself or a stop signal arrives, then stops it gracefully.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

// App is a host driven by Run.
type App interface {
	// Start starts the app. It should return once the app is running.
	Start(ctx context.Context) error
	// Stop stops the app, releasing its resources before ctx is done.
	Stop(ctx context.Context) error
}

// Finisher is implemented by apps that can end by themselves, e.g. a client whose run is over.
type Finisher interface {
	Done() <-chan struct{}
}

// Run starts a and blocks until a stop signal arrives, ctx is done, or a finishes by itself. Then it calls
// a.Stop once, bounded by the stop timeout. Signals arriving while stopping are ignored.
//
// Run returns nil after a clean stop.
func Run(ctx context.Context, a App, opts ...Option) error {
	cfg, err := newConfig(opts...)
	if err != nil {
		return err
	}
	log := cfg.logger

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, cfg.signals...)
	defer signal.Stop(sigCh)

	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("start app: %w", err)
	}

	var finished <-chan struct{}
	if f, ok := a.(Finisher); ok {
		finished = f.Done()
	}

	select {
	case sig := <-sigCh:
		log.Info("Signal received, stopping", "signal", sig.String())
	case <-ctx.Done():
		log.Info("Context done, stopping", "cause", context.Cause(ctx))
	case <-finished:
		log.Debug("App finished, stopping")
	}

	stopping := make(chan struct{})
	defer close(stopping)

	go func() {
		for {
			select {
			case sig := <-sigCh:
				log.Warn("Signal ignored, already stopping", "signal", sig.String())
			case <-stopping:
				return
			}
		}
	}()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.stopTimeout)
	defer cancel()

	if err := a.Stop(stopCtx); err != nil {
		log.Error("Failed to stop gracefully", "error", err)
		return fmt.Errorf("stop app: %w", err)
	}
	log.Info("Stopped")

	return nil
}
