package transport

import (
	"sync"

	"github.com/google/uuid"

	"github.com/arloliu/go-msgseq/logger"
)

// DefaultRecvBufferSize is the default capacity of the inbound message queue.
const DefaultRecvBufferSize = 16

// BaseConn implements the bookkeeping shared by the Adapter implementations: the connection id, the state
// manager and the inbound message queue.
//
// Implementations embed BaseConn, feed inbound text through Deliver from their reader goroutine, call
// BeginClose when closing starts and Finish once the underlying connection is gone.
type BaseConn struct {
	id       string
	logger   logger.Logger
	stateMgr *StateMgr

	recv        chan string
	closing     chan struct{}
	closingOnce sync.Once
	finishOnce  sync.Once
}

// NewBaseConn creates a BaseConn in the Connecting state with a fresh random id.
//
// The logger is decorated with the connection id. A non-positive bufSize uses DefaultRecvBufferSize.
func NewBaseConn(l logger.Logger, bufSize int) *BaseConn {
	if l == nil {
		l = logger.GetLogger()
	}
	if bufSize <= 0 {
		bufSize = DefaultRecvBufferSize
	}

	id := uuid.NewString()
	l = l.With("conn_id", id)

	return &BaseConn{
		id:       id,
		logger:   l,
		stateMgr: NewStateMgr(l),
		recv:     make(chan string, bufSize),
		closing:  make(chan struct{}),
	}
}

// ID returns the unique connection id.
func (b *BaseConn) ID() string { return b.id }

// State returns the current connection state.
func (b *BaseConn) State() ConnState { return b.stateMgr.State() }

// Opened returns a channel that's closed when the connection leaves the Connecting state.
func (b *BaseConn) Opened() <-chan struct{} { return b.stateMgr.Opened() }

// Done returns a channel that's closed when the connection reaches the Closed state.
func (b *BaseConn) Done() <-chan struct{} { return b.stateMgr.Done() }

// Receive returns the inbound message queue.
func (b *BaseConn) Receive() <-chan string { return b.recv }

// Logger returns the connection logger.
func (b *BaseConn) Logger() logger.Logger { return b.logger }

// StateMgr returns the connection state manager.
func (b *BaseConn) StateMgr() *StateMgr { return b.stateMgr }

// Closing returns a channel that's closed once BeginClose has been called.
func (b *BaseConn) Closing() <-chan struct{} { return b.closing }

// Deliver queues an inbound message. It blocks while the queue is full and gives up, returning false,
// once the connection starts closing.
//
// Deliver must not be called concurrently with Finish.
func (b *BaseConn) Deliver(text string) bool {
	select {
	case <-b.closing:
		return false
	default:
	}

	select {
	case b.recv <- text:
		return true
	case <-b.closing:
		return false
	}
}

// BeginClose moves the connection to Closing and unblocks pending Deliver calls.
// It returns true only for the call that performed the transition.
func (b *BaseConn) BeginClose() bool {
	ok := b.stateMgr.ToClosing()
	b.closingOnce.Do(func() { close(b.closing) })

	return ok
}

// Finish closes the inbound queue and moves the connection to Closed. It is idempotent.
func (b *BaseConn) Finish() {
	b.BeginClose()
	b.finishOnce.Do(func() {
		close(b.recv)
		b.stateMgr.ToClosed()
	})
}
