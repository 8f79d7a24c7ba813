package session

import (
	"context"
	"sync"
)

// outbox runs a session's store writes and outward events one at a time,
// in the order they were queued, on its own goroutine. push never blocks,
// so a slow sink delays only later deliveries, never the caller.
type outbox struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

// newOutbox starts the delivery goroutine. Nothing is delivered until after
// is closed, which keeps one session's events behind the previous one's.
func newOutbox(after <-chan struct{}) *outbox {
	o := &outbox{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go o.run(after)
	return o
}

// push queues fn. It reports false once the outbox is closed.
func (o *outbox) push(fn func()) bool {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	o.queue = append(o.queue, fn)
	o.mu.Unlock()
	o.signal()
	return true
}

// close stops accepting work. The goroutine exits once the queue is empty.
func (o *outbox) close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.signal()
}

// pending returns the number of queued deliveries not yet started.
func (o *outbox) pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

// wait blocks until the outbox is closed and drained, or ctx is done.
func (o *outbox) wait(ctx context.Context) error {
	select {
	case <-o.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *outbox) signal() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *outbox) run(after <-chan struct{}) {
	defer close(o.done)
	if after != nil {
		<-after
	}
	for {
		o.mu.Lock()
		if len(o.queue) == 0 {
			closed := o.closed
			o.mu.Unlock()
			if closed {
				return
			}
			<-o.wake
			continue
		}
		fn := o.queue[0]
		o.queue[0] = nil
		o.queue = o.queue[1:]
		o.mu.Unlock()

		fn()
	}
}
