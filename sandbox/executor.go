package sandbox

import (
	"context"
	"sync"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// defaultQueueSize bounds how many pending jobs an Executor buffers.
const defaultQueueSize = 64

// job is one unit of interpreter work with its completion channel.
type job struct {
	fn     func(L *lua.LState) error
	result chan error
}

// Executor funnels interpreter work from many goroutines onto one worker
// goroutine. Analysis engines run one worker per hosted state and submit
// candidate-function invocations from wherever their scheduling happens.
//
// Contract:
// - Concurrency: Submit is safe for concurrent use from any goroutine.
// - Context: Submit honors ctx while enqueueing and while waiting; a job
//   already enqueued still runs even if the submitter stopped waiting.
// - Errors: a closed executor fails fast with ErrExecutorClosed.
type Executor struct {
	st     *State
	queue  chan *job
	done   chan struct{}
	closed atomic.Bool

	closeOnce sync.Once
}

// NewExecutor creates an executor for the given state. queueSize <= 0 uses
// the default.
func NewExecutor(st *State, queueSize int) *Executor {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Executor{
		st:    st,
		queue: make(chan *job, queueSize),
		done:  make(chan struct{}),
	}
}

// Run processes jobs until ctx is cancelled or Close is called. It is the
// worker loop; callers start it once, usually in its own goroutine.
func (e *Executor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			e.Close()
			e.drain(ctx.Err())
			return
		case <-e.done:
			e.drain(ErrExecutorClosed)
			return
		case j := <-e.queue:
			e.complete(j, e.st.Do(j.fn))
		}
	}
}

// Submit enqueues interpreter work and waits for its result.
func (e *Executor) Submit(ctx context.Context, fn func(L *lua.LState) error) error {
	if e.closed.Load() {
		return ErrExecutorClosed
	}

	j := &job{fn: fn, result: make(chan error, 1)}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrExecutorClosed
	case e.queue <- j:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		// The worker may have exited before the job was enqueued, in which
		// case nobody is left to drain it. Every job reachable here has been
		// completed by the worker, by its exit drain, or by this one.
		e.drain(ErrExecutorClosed)
		if err, ok := <-j.result; ok {
			return err
		}
		return ErrExecutorClosed
	case err, ok := <-j.result:
		if !ok {
			return ErrExecutorClosed
		}
		return err
	}
}

// Close stops the executor. Jobs still queued complete with ErrExecutorClosed.
func (e *Executor) Close() {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		close(e.done)
	})
}

// complete delivers a job result without blocking the worker.
func (e *Executor) complete(j *job, err error) {
	select {
	case j.result <- err:
	default:
	}
	close(j.result)
}

// drain fails all queued jobs with err.
func (e *Executor) drain(err error) {
	for {
		select {
		case j := <-e.queue:
			e.complete(j, err)
		default:
			return
		}
	}
}
