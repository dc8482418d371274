package buffer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrQueueDone is returned by Pop once a queue closed for writing is empty.
var ErrQueueDone = errors.New("buffer: queue done")

// Queue is an unbounded, thread-safe FIFO queue. Push never blocks; Pop
// blocks until an element is available, the queue is closed, or the context
// is done.
//
// Audio workers use it to hand chunks between the goroutine that receives
// them and the goroutine that plays or sends them, so that neither side
// stalls the other.
type Queue[T any] struct {
	notify chan struct{}

	mu         sync.Mutex
	closeWrite bool
	closeErr   error
	items      []T
}

// NewQueue creates an empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		notify: make(chan struct{}, 1),
	}
}

// Push appends v to the tail of the queue.
//
// Returns an error if the queue is closed for writing or has been closed with
// an error.
func (q *Queue[T]) Push(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closeErr != nil {
		return fmt.Errorf("buffer: push to closed queue: %w", q.closeErr)
	}
	if q.closeWrite {
		return fmt.Errorf("buffer: push to closed queue: %w", io.ErrClosedPipe)
	}
	q.items = append(q.items, v)
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Pop removes and returns the head of the queue.
//
// It blocks while the queue is empty. Returns ErrQueueDone when the queue is
// closed for writing and drained, the close error when it was closed with
// CloseWithError, or ctx.Err() when ctx is done first.
func (q *Queue[T]) Pop(ctx context.Context) (v T, err error) {
	for {
		q.mu.Lock()
		if q.closeErr != nil {
			err = fmt.Errorf("buffer: pop from closed queue: %w", q.closeErr)
			q.mu.Unlock()
			return
		}
		if len(q.items) > 0 {
			v = q.items[0]
			var zero T
			q.items[0] = zero
			q.items = q.items[1:]
			if len(q.items) > 0 && !q.closeWrite {
				// Pass the signal on for other waiters.
				select {
				case q.notify <- struct{}{}:
				default:
				}
			}
			q.mu.Unlock()
			return v, nil
		}
		if q.closeWrite {
			q.mu.Unlock()
			return v, ErrQueueDone
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return v, ctx.Err()
		case <-q.notify:
		}
	}
}

// Drain removes every queued element and returns them in order.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// Len returns the number of queued elements.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// CloseWrite stops further pushes. Queued elements can still be popped.
func (q *Queue[T]) CloseWrite() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closeWrite {
		return nil
	}
	q.closeWrite = true
	close(q.notify)
	return nil
}

// CloseWithError closes both ends and drops queued elements. Pending and
// future Pop calls return err. If err is nil, io.ErrClosedPipe is used.
func (q *Queue[T]) CloseWithError(err error) error {
	if err == nil {
		err = io.ErrClosedPipe
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closeErr != nil {
		return nil
	}
	q.closeErr = err
	q.items = nil
	if !q.closeWrite {
		q.closeWrite = true
		close(q.notify)
	}
	return nil
}

// Close is CloseWithError(io.ErrClosedPipe).
func (q *Queue[T]) Close() error {
	return q.CloseWithError(io.ErrClosedPipe)
}
