package hackrf

import (
	"context"
	"time"
)

// Queue is the bounded handoff between the streaming worker and the
// application. While receiving the worker is its only producer; while
// transmitting it is its only consumer.
type Queue struct {
	ch        chan []byte
	blockSize int
}

func newQueue(queueBytes, blockSize int) *Queue {
	capacity := queueBytes / blockSize
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{ch: make(chan []byte, capacity), blockSize: blockSize}
}

// Blocks exposes the receive side as a channel for range/select loops.
func (q *Queue) Blocks() <-chan []byte { return q.ch }

// Receive waits for the next block or until ctx is done.
func (q *Queue) Receive(ctx context.Context) ([]byte, error) {
	select {
	case b := <-q.ch:
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Send waits until b is queued or ctx is done. Blocks whose length differs
// from BlockSize end a transmit session when the worker reaches them.
func (q *Queue) Send(ctx context.Context, b []byte) error {
	select {
	case q.ch <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend queues b without blocking and reports whether it was accepted.
func (q *Queue) TrySend(b []byte) bool {
	select {
	case q.ch <- b:
		return true
	default:
		return false
	}
}

// Len returns the number of queued blocks.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the queue capacity in blocks.
func (q *Queue) Cap() int { return cap(q.ch) }

// BlockSize returns the block size the worker expects.
func (q *Queue) BlockSize() int { return q.blockSize }

// receiveTimeout returns the next block, ErrQueueStarved after d, or
// errStopped once quit is closed.
func (q *Queue) receiveTimeout(d time.Duration, quit <-chan struct{}) ([]byte, error) {
	select {
	case b := <-q.ch:
		return b, nil
	default:
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case b := <-q.ch:
		return b, nil
	case <-quit:
		return nil, errStopped
	case <-timer.C:
		return nil, ErrQueueStarved
	}
}

// drain empties the queue, passing every block to release.
func (q *Queue) drain(release func([]byte)) int {
	n := 0
	for {
		select {
		case b := <-q.ch:
			release(b)
			n++
		default:
			return n
		}
	}
}
