// Package queue serializes scrape dispatches against a requests-per-minute
// ceiling. The ceiling is a lower bound on inter-dispatch spacing; execution
// is strictly one task at a time per queue instance.
package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RateLimited is a FIFO task queue drained by a single loop. The drain loop
// is the only mutator of lastDispatch and the pending list, so tasks never
// observe each other mid-flight.
type RateLimited struct {
	minDelay time.Duration

	mu           sync.Mutex
	pending      []*task
	draining     bool
	lastDispatch time.Time
	nextID       uint64
}

type task struct {
	id         uint64
	run        func()
	enqueuedAt time.Time
}

// New builds a queue enforcing at least 60000/requestsPerMinute ms between
// dispatches. Non-positive rates fall back to one request per second.
func New(requestsPerMinute int) *RateLimited {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &RateLimited{
		minDelay: time.Minute / time.Duration(requestsPerMinute),
	}
}

// MinDelay reports the enforced spacing between dispatches.
func (q *RateLimited) MinDelay() time.Duration {
	return q.minDelay
}

// Len reports the number of tasks waiting for dispatch.
func (q *RateLimited) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

type outcome[T any] struct {
	value T
	err   error
}

// Enqueue appends fn to the queue and blocks until it has run. A task error
// is returned to its own caller only; it never stops the drain loop.
func Enqueue[T any](ctx context.Context, q *RateLimited, fn func(ctx context.Context) (T, error)) (T, error) {
	done := make(chan outcome[T], 1)
	q.add(func() {
		value, err := fn(ctx)
		done <- outcome[T]{value: value, err: err}
	})

	result := <-done
	return result.value, result.err
}

func (q *RateLimited) add(run func()) {
	q.mu.Lock()
	q.nextID++
	q.pending = append(q.pending, &task{
		id:         q.nextID,
		run:        run,
		enqueuedAt: time.Now(),
	})
	startDrain := !q.draining
	if startDrain {
		q.draining = true
	}
	q.mu.Unlock()

	if startDrain {
		go q.drain()
	}
}

func (q *RateLimited) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		next := q.pending[0]
		q.pending = q.pending[1:]
		last := q.lastDispatch
		q.mu.Unlock()

		if !last.IsZero() {
			if wait := q.minDelay - time.Since(last); wait > 0 {
				slog.Debug("queue pacing",
					slog.Uint64("task", next.id),
					slog.Duration("wait", wait),
				)
				time.Sleep(wait)
			}
		}

		q.mu.Lock()
		q.lastDispatch = time.Now()
		q.mu.Unlock()

		next.run()
	}
}
