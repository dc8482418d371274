// Package buffer provides a thread-safe unbounded FIFO queue for handing data
// between producer and consumer goroutines.
//
// Queue never blocks writers. Readers block in Pop until an element arrives,
// the queue is closed, or their context is done. Graceful shutdown is
// available through CloseWrite() (allows pops to drain the queue) or
// CloseWithError() (immediate closure).
//
// Example usage:
//
//	q := buffer.NewQueue[[]int16]()
//
//	// Producer
//	q.Push(frame)
//	q.CloseWrite()
//
//	// Consumer
//	for {
//	    frame, err := q.Pop(ctx)
//	    if errors.Is(err, buffer.ErrQueueDone) {
//	        break
//	    }
//	    ...
//	}
package buffer
