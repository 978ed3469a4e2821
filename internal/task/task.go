// Package task manages the lifecycle of the goroutines started by the hosts.
package task

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-msgseq/logger"
)

// LoopFunc represents a function that performs one iteration of a task. It should return true to run again,
// or false to stop the goroutine.
type LoopFunc func() bool

// RunFunc represents a function that runs once in a goroutine managed by the Manager.
// It should return promptly when ctx is done.
type RunFunc func(ctx context.Context)

// Manager manages the lifecycle of goroutines (tasks).
// It provides a structured way to start, stop, and wait for goroutines, ensuring proper
// cancellation and panic recovery.
//
// The Manager derives a context from its parent. Stop cancels it, which signals every running task;
// Wait blocks until they all returned and then re-arms the Manager with a fresh context.
//
// Example Usage:
//
//	taskMgr := task.NewManager(ctx, logger)
//
//	_ = taskMgr.Start("acceptLoop", func() bool {
//	    // ... accept one connection ...
//	    return true // Return true to continue running, false to stop
//	})
//
//	_ = taskMgr.Go("session", func(ctx context.Context) {
//	    // ... run until ctx is done ...
//	})
//
//	taskMgr.Stop()
//	taskMgr.Wait()
type Manager struct {
	pctx   context.Context
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32
	mu     sync.RWMutex // protect ctx and cancel
	taskMu sync.RWMutex // protect task creation during Wait()
}

// NewManager creates a new Manager with the given context as the parent context and logger.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	if l == nil {
		l = logger.GetLogger()
	}

	mgr := &Manager{pctx: ctx, logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Context returns the context shared by the running tasks.
func (mgr *Manager) Context() context.Context {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	return mgr.ctx
}

// Start starts a new goroutine that calls loopFunc until it returns false or the Manager is stopped.
func (mgr *Manager) Start(name string, loopFunc LoopFunc) error {
	mgr.logger.Debug("start task", "name", name)

	return mgr.startTask(name, func(ctx context.Context) {
		mgr.runLoop(ctx, name, loopFunc)
	})
}

// Go starts a new goroutine that calls runFunc once with the task context.
func (mgr *Manager) Go(name string, runFunc RunFunc) error {
	mgr.logger.Debug("start task", "name", name)

	return mgr.startTask(name, func(ctx context.Context) {
		mgr.callWithRecover(name, func() { runFunc(ctx) })
	})
}

// StartInterval starts a new goroutine that calls loopFunc at the specified interval until it returns false
// or the Manager is stopped.
func (mgr *Manager) StartInterval(name string, loopFunc LoopFunc, interval time.Duration) error {
	mgr.logger.Debug("start interval task", "name", name, "interval", interval)

	if interval <= 0 {
		return fmt.Errorf("invalid interval: %v", interval)
	}

	return mgr.startTask(name, func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !mgr.callWithRecoverBool(name, loopFunc) {
					return
				}
			}
		}
	})
}

// Stop signals all running goroutines.
func (mgr *Manager) Stop() {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if mgr.cancel != nil {
		mgr.cancel()
	}
}

// Wait waits for all goroutines to terminate, then re-arms the Manager so new tasks can be started.
//
// Wait follows Stop, or is called once nothing starts new tasks anymore. Running tasks may still call
// Start or Go while Wait blocks; those calls fail once the Manager is stopped.
func (mgr *Manager) Wait() {
	// tasks being registered right now are counted before wg.Wait
	mgr.taskMu.Lock()
	mgr.taskMu.Unlock() //nolint:staticcheck

	mgr.wg.Wait()

	mgr.mu.Lock()
	mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	mgr.mu.Unlock()
}

// TaskCount returns the number of currently running goroutines.
func (mgr *Manager) TaskCount() int {
	return int(mgr.count.Load())
}

// startTask runs the common startup sequence for all tasks. The stopped check and the registration
// happen under taskMu so Wait never sees a task registered after Stop.
func (mgr *Manager) startTask(name string, body func(ctx context.Context)) error {
	mgr.taskMu.RLock()
	defer mgr.taskMu.RUnlock()

	ctx := mgr.Context()
	if ctx.Err() != nil {
		return fmt.Errorf("start %s: task manager already stopped", name)
	}

	mgr.wg.Add(1)
	mgr.count.Add(1)

	go func() {
		defer func() {
			mgr.count.Add(-1)
			mgr.logger.Debug(fmt.Sprintf("%s task terminated", name), "task_count", mgr.TaskCount())
			mgr.wg.Done()
		}()

		body(ctx)
	}()

	return nil
}

// runLoop runs a loop function with context cancellation and panic protection.
func (mgr *Manager) runLoop(ctx context.Context, name string, loopFunc LoopFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			if !mgr.callWithRecoverBool(name, loopFunc) {
				return
			}
		}
	}
}

// callWithRecover calls a function with panic protection.
func (mgr *Manager) callWithRecover(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "name", name, "panic", r)
		}
	}()

	fn()
}

// callWithRecoverBool calls a function that returns bool with panic protection. A panic stops the task.
func (mgr *Manager) callWithRecoverBool(name string, fn func() bool) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "name", name, "panic", r)
			ok = false
		}
	}()

	return fn()
}
