package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConnStateString(t *testing.T) {
	require := require.New(t)

	require.Equal("connecting", Connecting.String())
	require.Equal("open", Open.String())
	require.Equal("closing", Closing.String())
	require.Equal("closed", Closed.String())
	require.Equal("unknown", ConnState(42).String())

	require.True(Connecting.IsConnecting())
	require.True(Open.IsOpen())
	require.True(Closed.IsClosed())
	require.False(Closing.IsClosed())
}

func TestStateTransitions(t *testing.T) {
	t.Run("Initial State", func(t *testing.T) {
		require := require.New(t)

		sm := NewStateMgr(nil)
		require.Equal(Connecting, sm.State())
		requireOpen(t, sm.Opened(), false)
		requireOpen(t, sm.Done(), false)
	})

	t.Run("ToOpen", func(t *testing.T) {
		require := require.New(t)

		stateChangeCount := 0
		sm := NewStateMgr(nil, func(prevState ConnState, newState ConnState) { stateChangeCount++ })

		require.NoError(sm.ToOpen())
		require.Equal(Open, sm.State())
		require.Equal(1, stateChangeCount)
		requireOpen(t, sm.Opened(), true)

		// No-op transition when already in Open
		require.NoError(sm.ToOpen())
		require.Equal(1, stateChangeCount)

		require.True(sm.ToClosing())
		// Invalid transition from Closing to Open
		require.ErrorIs(sm.ToOpen(), ErrInvalidTransition)
		require.Equal(2, stateChangeCount)
	})

	t.Run("ToClosing", func(t *testing.T) {
		require := require.New(t)

		transitions := [][2]ConnState{}
		sm := NewStateMgr(nil)
		sm.AddHandler(func(prevState ConnState, newState ConnState) {
			transitions = append(transitions, [2]ConnState{prevState, newState})
		})

		require.NoError(sm.ToOpen())
		require.True(sm.ToClosing())
		require.False(sm.ToClosing(), "only the first caller performs the transition")
		require.Equal(Closing, sm.State())
		requireOpen(t, sm.Done(), false)

		sm.ToClosed()
		require.Equal([][2]ConnState{{Connecting, Open}, {Open, Closing}, {Closing, Closed}}, transitions)
		require.False(sm.ToClosing())
	})

	t.Run("Connecting straight to Closed", func(t *testing.T) {
		require := require.New(t)

		stateChangeCount := 0
		sm := NewStateMgr(nil, func(prevState ConnState, newState ConnState) { stateChangeCount++ })

		sm.ToClosed()
		require.Equal(Closed, sm.State())
		require.Equal(1, stateChangeCount)
		requireOpen(t, sm.Opened(), true)
		requireOpen(t, sm.Done(), true)

		// No-op transition when already in Closed
		sm.ToClosed()
		require.Equal(1, stateChangeCount)
		require.ErrorIs(sm.ToOpen(), ErrInvalidTransition)
	})
}

func TestWaitState(t *testing.T) {
	require := require.New(t)

	sm := NewStateMgr(nil)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = sm.ToOpen()
	}()

	begin := time.Now()
	ctx, cancel := context.WithTimeout(context.TODO(), 100*time.Millisecond)
	defer cancel()

	require.NoError(sm.WaitState(ctx, Open))
	// wait Open again
	require.NoError(sm.WaitState(ctx, Open))

	err := sm.WaitState(ctx, Closing)
	require.ErrorIs(err, context.DeadlineExceeded)
	require.WithinDuration(begin.Add(100*time.Millisecond), time.Now(), 50*time.Millisecond)

	// a closed connection never reaches Open again
	sm2 := NewStateMgr(nil)
	go func() {
		time.Sleep(10 * time.Millisecond)
		sm2.ToClosed()
	}()
	require.ErrorIs(sm2.WaitState(context.Background(), Open), ErrConnClosed)
	require.NoError(sm2.WaitState(context.Background(), Closed))
}

func requireOpen(t *testing.T, ch <-chan struct{}, closed bool) {
	t.Helper()

	select {
	case <-ch:
		if !closed {
			t.Fatal("channel should not be closed")
		}
	default:
		if closed {
			t.Fatal("channel should be closed")
		}
	}
}
