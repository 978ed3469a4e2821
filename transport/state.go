package transport

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-msgseq/logger"
)

// StateChangeHandler is a function type that represents a handler for connection state changes.
//
// Note: the handler is invoked in a blocking mode while the state lock is held. It must not change
// the state itself.
type StateChangeHandler func(prevState ConnState, newState ConnState)

// StateMgr manages the connection state of an Adapter.
//
// The state only moves forward: Connecting -> Open -> Closing -> Closed. Closing and Closed may also be
// entered directly from Connecting. The transitions are safe for concurrent use.
type StateMgr struct {
	mu       sync.Mutex
	cond     *sync.Cond
	state    atomic.Uint32
	logger   logger.Logger
	handlers []StateChangeHandler
	opened   chan struct{}
	done     chan struct{}
}

// NewStateMgr creates a new StateMgr in the Connecting state.
//
// A nil logger falls back to the package-level default logger.
func NewStateMgr(l logger.Logger, handlers ...StateChangeHandler) *StateMgr {
	if l == nil {
		l = logger.GetLogger()
	}

	mgr := &StateMgr{
		logger:   l,
		handlers: make([]StateChangeHandler, 0, len(handlers)),
		opened:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	mgr.cond = sync.NewCond(&mgr.mu)
	mgr.state.Store(uint32(Connecting))
	mgr.AddHandler(handlers...)

	return mgr
}

// State returns the current connection state.
func (sm *StateMgr) State() ConnState {
	return ConnState(sm.state.Load())
}

// Opened returns a channel that's closed when the state leaves Connecting.
func (sm *StateMgr) Opened() <-chan struct{} {
	return sm.opened
}

// Done returns a channel that's closed when the state reaches Closed.
func (sm *StateMgr) Done() <-chan struct{} {
	return sm.done
}

// AddHandler adds one or more StateChangeHandler functions to be invoked on state changes.
func (sm *StateMgr) AddHandler(handlers ...StateChangeHandler) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for _, h := range handlers {
		if h != nil {
			sm.handlers = append(sm.handlers, h)
		}
	}
}

// WaitState waits for the connection state to reach the specified state or until the context is done.
//
// It returns nil if the desired state is reached, the context error if ctx is done first, or
// ErrConnClosed when the connection is closed before reaching the state.
func (sm *StateMgr) WaitState(ctx context.Context, state ConnState) error {
	stopFunc := context.AfterFunc(ctx, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		sm.cond.Broadcast()
	})
	defer stopFunc()

	sm.mu.Lock()
	defer sm.mu.Unlock()

	for {
		cur := sm.State()
		if cur == state {
			return nil
		}
		if cur.IsClosed() {
			return ErrConnClosed
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		sm.cond.Wait()
	}
}

// ToOpen transitions the state from Connecting to Open.
//
// It is a no-op if the state is already Open, and returns ErrInvalidTransition from any other state.
func (sm *StateMgr) ToOpen() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	curState := sm.State()
	switch curState {
	case Open:
		return nil
	case Connecting:
		sm.setState(curState, Open)
		return nil
	default:
		return ErrInvalidTransition
	}
}

// ToClosing transitions the state from Connecting or Open to Closing.
//
// It returns true only for the call that performed the transition, so exactly one caller runs the close
// handshake.
func (sm *StateMgr) ToClosing() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	curState := sm.State()
	if curState != Connecting && curState != Open {
		return false
	}
	sm.setState(curState, Closing)

	return true
}

// ToClosed transitions the state to Closed. This transition is allowed from any state.
func (sm *StateMgr) ToClosed() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	curState := sm.State()
	if curState.IsClosed() {
		return
	}
	sm.setState(curState, Closed)
}

// setState stores the new state, releases the matching channels, broadcasts to waiters and invokes
// the handlers. The caller must hold sm.mu.
func (sm *StateMgr) setState(prevState ConnState, newState ConnState) {
	sm.state.Store(uint32(newState))

	if prevState.IsConnecting() {
		close(sm.opened)
	}
	if newState.IsClosed() {
		close(sm.done)
	}
	sm.cond.Broadcast()

	sm.logger.Debug("connection state changes", "prevState", prevState, "curState", newState)
	for _, handler := range sm.handlers {
		handler(prevState, newState)
	}
}
