package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/go-drift/tether/pkg/errors"
)

// Loop runs posted tasks one at a time on a single goroutine. The task
// queue is the only state shared between goroutines.
type Loop struct {
	mu    sync.Mutex
	tasks []func()
	wake  chan struct{}

	turnEnd func()
	running atomic.Bool
}

// errTaskPanicked is returned by Do when the task panicked. The panic
// itself goes to the global error handler.
var errTaskPanicked = &errors.TetherError{Op: "engine.Do", Kind: errors.KindPanic, Err: errors.New("task panicked")}

// NewLoop returns a loop calling turnEnd after every task. turnEnd may be
// nil.
func NewLoop(turnEnd func()) *Loop {
	return &Loop{wake: make(chan struct{}, 1), turnEnd: turnEnd}
}

// Post queues fn to run on the loop. Safe for concurrent use.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) drain() []func() {
	l.mu.Lock()
	tasks := l.tasks
	l.tasks = nil
	l.mu.Unlock()
	return tasks
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// RunPending runs queued tasks on the calling goroutine until the queue is
// empty, including tasks posted by those tasks, and returns how many ran.
// It is for drivers that own the goroutine themselves; do not mix it with
// a concurrent Run.
func (l *Loop) RunPending() int {
	n := 0
	for {
		tasks := l.drain()
		if len(tasks) == 0 {
			return n
		}
		for _, fn := range tasks {
			l.runTask(fn)
			n++
		}
	}
}

func (l *Loop) runTask(fn func()) {
	defer l.endTurn()
	defer errors.Recover("engine.Task")
	fn()
}

func (l *Loop) endTurn() {
	if l.turnEnd == nil {
		return
	}
	defer errors.Recover("engine.TurnEnd")
	l.turnEnd()
}

// Run processes tasks until ctx is done and returns ctx.Err().
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return &errors.TetherError{Op: "engine.Run", Kind: errors.KindMisuse, Err: errors.New("loop is already running")}
	}
	defer l.running.Store(false)
	for {
		l.RunPending()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Running reports whether Run is active.
func (l *Loop) Running() bool {
	return l.running.Load()
}

// Do runs fn on the loop and waits for its result. It must not be called
// from a task, which would wait for itself.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	l.Post(func() {
		err := error(errTaskPanicked)
		defer func() { done <- err }()
		err = fn()
	})
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
