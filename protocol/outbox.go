package protocol

import (
	"context"
	"sync"
)

// outbox is an unbounded frame queue. push never blocks, so feeds can send
// requests and announcements while holding their lock.
type outbox struct {
	mu     sync.Mutex
	queue  [][]byte
	notify chan struct{}
	closed bool
}

func newOutbox() *outbox {
	return &outbox{notify: make(chan struct{}, 1)}
}

// push queues a frame. It reports false once the outbox is closed.
func (o *outbox) push(frame []byte) bool {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	o.queue = append(o.queue, frame)
	o.mu.Unlock()

	select {
	case o.notify <- struct{}{}:
	default:
	}
	return true
}

// pop waits for the next frame. It returns false when the outbox is closed
// and drained, or when ctx ends.
func (o *outbox) pop(ctx context.Context) ([]byte, bool) {
	for {
		o.mu.Lock()
		if len(o.queue) > 0 {
			frame := o.queue[0]
			o.queue[0] = nil
			o.queue = o.queue[1:]
			o.mu.Unlock()
			return frame, true
		}
		closed := o.closed
		o.mu.Unlock()
		if closed {
			return nil, false
		}

		select {
		case <-o.notify:
		case <-ctx.Done():
			return nil, false
		}
	}
}

// close stops accepting frames. Frames already queued are still delivered.
func (o *outbox) close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	select {
	case o.notify <- struct{}{}:
	default:
	}
}
