package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeApp struct {
	started   chan struct{}
	release   chan struct{} // closed to let Stop return
	done      chan struct{}
	startErr  error
	stopErr   error
	waitCtx   bool
	stopCalls atomic.Int32
}

func newFakeApp() *fakeApp {
	release := make(chan struct{})
	close(release)

	return &fakeApp{started: make(chan struct{}), release: release}
}

func (a *fakeApp) Start(context.Context) error {
	if a.startErr != nil {
		return a.startErr
	}
	close(a.started)

	return nil
}

func (a *fakeApp) Stop(ctx context.Context) error {
	a.stopCalls.Add(1)

	if a.waitCtx {
		<-ctx.Done()
		return ctx.Err()
	}
	<-a.release

	return a.stopErr
}

type finishingApp struct {
	*fakeApp
}

func (a finishingApp) Done() <-chan struct{} {
	return a.done
}

func runAsync(ctx context.Context, a App, opts ...Option) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- Run(ctx, a, opts...) }()

	return errCh
}

func awaitRun(t *testing.T, errCh <-chan error) error {
	t.Helper()

	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Run didn't return within 5s")
		return nil
	}
}

func TestRunStopsOnSignal(t *testing.T) {
	require := require.New(t)

	// keeps SIGUSR2 from terminating the test binary once Run stopped listening
	guard := make(chan os.Signal, 4)
	signal.Notify(guard, syscall.SIGUSR2)
	defer signal.Stop(guard)

	a := newFakeApp()
	a.release = make(chan struct{})

	errCh := runAsync(context.Background(), a, WithSignals(syscall.SIGUSR2))
	<-a.started

	require.NoError(syscall.Kill(os.Getpid(), syscall.SIGUSR2))
	<-guard
	require.Eventually(func() bool { return a.stopCalls.Load() == 1 }, 3*time.Second, 5*time.Millisecond)

	// a second signal while stopping doesn't stop again
	require.NoError(syscall.Kill(os.Getpid(), syscall.SIGUSR2))
	<-guard
	close(a.release)

	require.NoError(awaitRun(t, errCh))
	require.Equal(int32(1), a.stopCalls.Load())
}

func TestRunStopsOnContext(t *testing.T) {
	require := require.New(t)

	a := newFakeApp()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := runAsync(ctx, a)
	<-a.started
	cancel()

	require.NoError(awaitRun(t, errCh))
	require.Equal(int32(1), a.stopCalls.Load())
}

func TestRunStopsWhenFinished(t *testing.T) {
	require := require.New(t)

	a := finishingApp{newFakeApp()}
	a.done = make(chan struct{})

	errCh := runAsync(context.Background(), a)
	<-a.started
	close(a.done)

	require.NoError(awaitRun(t, errCh))
	require.Equal(int32(1), a.stopCalls.Load())
}

func TestRunErrors(t *testing.T) {
	t.Run("Start fails", func(t *testing.T) {
		require := require.New(t)

		a := newFakeApp()
		a.startErr = errors.New("address in use")

		err := Run(context.Background(), a)
		require.ErrorIs(err, a.startErr)
		require.ErrorContains(err, "start app")
		require.Zero(a.stopCalls.Load())
	})

	t.Run("Stop fails", func(t *testing.T) {
		require := require.New(t)

		a := finishingApp{newFakeApp()}
		a.done = make(chan struct{})
		close(a.done)
		a.stopErr = errors.New("close failed")

		err := Run(context.Background(), a)
		require.ErrorIs(err, a.stopErr)
		require.ErrorContains(err, "stop app")
	})

	t.Run("Stop timeout", func(t *testing.T) {
		require := require.New(t)

		a := finishingApp{newFakeApp()}
		a.done = make(chan struct{})
		close(a.done)
		a.waitCtx = true

		begin := time.Now()
		err := Run(context.Background(), a, WithStopTimeout(100*time.Millisecond))
		require.ErrorIs(err, context.DeadlineExceeded)
		require.Less(time.Since(begin), 2*time.Second)
	})
}

func TestOptions(t *testing.T) {
	require := require.New(t)

	a := newFakeApp()

	require.ErrorContains(Run(context.Background(), a, WithLogger(nil)), "WithLogger")
	require.ErrorContains(Run(context.Background(), a, WithStopTimeout(time.Millisecond)), "WithStopTimeout")
	require.ErrorContains(Run(context.Background(), a, WithStopTimeout(2*time.Minute)), "WithStopTimeout")
	require.ErrorContains(Run(context.Background(), a, WithSignals()), "WithSignals")
	require.Zero(a.stopCalls.Load())
}
