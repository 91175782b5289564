package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrStopped is returned by Submit once the engine has been stopped.
var ErrStopped = errors.New("engine stopped")

// pending is a submitted command waiting for the Run loop.
type pending struct {
	cmd  Command
	done chan Result // buffered, size 1
}

// commandQueue is a thread-safe FIFO queue of submitted commands.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop (prevents goroutine hangs on context cancellation).
type commandQueue struct {
	mu     sync.Mutex
	items  []pending
	closed bool
	signal chan struct{} // Signals availability (buffered, size 1)
}

func newCommandQueue() *commandQueue {
	return &commandQueue{
		items:  make([]pending, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds p to the back of the queue.
// Returns false if the queue is closed.
func (q *commandQueue) Enqueue(p pending) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.items = append(q.items, p)

	// Non-blocking: a buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front item without blocking.
func (q *commandQueue) TryDequeue() (pending, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return pending{}, false
	}

	p := q.items[0]

	// Clear the slot so the request pointers can be collected.
	q.items[0] = pending{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}

	return p, true
}

// Wait returns a channel that signals when items may be available.
// The channel is closed when the queue is closed.
func (q *commandQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *commandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops further enqueues and wakes waiters.
func (q *commandQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

// Submit hands cmd to the Run loop and waits for its result.
// Thread-safe: may be called from any goroutine.
//
// If ctx is cancelled while waiting, Submit returns ctx.Err(); the command
// may still be applied by the loop.
func (e *Engine) Submit(ctx context.Context, cmd Command) (Receipt, error) {
	p := pending{cmd: cmd, done: make(chan Result, 1)}
	if !e.queue.Enqueue(p) {
		return Receipt{}, ErrStopped
	}

	select {
	case <-ctx.Done():
		return Receipt{}, ctx.Err()
	case res := <-p.done:
		return res.Receipt, res.Err
	}
}

// Run starts the single-writer command loop.
// Blocks until ctx is cancelled or Stop() is called.
//
// CRITICAL: Must be called from exactly ONE goroutine. Commands submitted
// through Submit are applied one at a time in arrival order, so a judge
// and a clawback racing for the same commitment cannot interleave.
//
// Commands already queued when Stop is called are still applied. On
// context cancellation, queued commands fail with the context error.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting")

	for {
		if p, ok := e.queue.TryDequeue(); ok {
			p.done <- e.Execute(ctx, p.cmd)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			e.queue.Close()
			e.drain(ctx.Err())
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes with the queue, so this fires
			// immediately once stopped.
			if e.queue.Len() == 0 && e.stopped() {
				slog.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop gracefully shuts down the engine.
// Closes the command queue, which will cause Run() to return once drained.
func (e *Engine) Stop() {
	e.queue.Close()
}

func (e *Engine) stopped() bool {
	e.queue.mu.Lock()
	defer e.queue.mu.Unlock()
	return e.queue.closed
}

// drain fails every queued command with err.
func (e *Engine) drain(err error) {
	for {
		p, ok := e.queue.TryDequeue()
		if !ok {
			return
		}
		p.done <- Result{Err: err}
	}
}
