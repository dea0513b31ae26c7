package ws

import (
	"sync"

	"github.com/eapache/queue"
)

// outbox is an unbounded-until-max FIFO of encoded frames. Pushing never
// blocks, so broadcasts can be enqueued while a session lock is held.
type outbox struct {
	mu     sync.Mutex
	frames *queue.Queue
	max    int
	closed bool
	notify chan struct{}
}

func newOutbox(max int) *outbox {
	return &outbox{
		frames: queue.New(),
		max:    max,
		notify: make(chan struct{}, 1),
	}
}

// push enqueues a frame. It returns false if the outbox is closed or full.
func (o *outbox) push(frame []byte) bool {
	o.mu.Lock()
	if o.closed || o.frames.Length() >= o.max {
		o.mu.Unlock()
		return false
	}
	o.frames.Add(frame)
	o.mu.Unlock()

	select {
	case o.notify <- struct{}{}:
	default:
	}
	return true
}

// drain removes and returns every queued frame in order
func (o *outbox) drain() [][]byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := o.frames.Length()
	if n == 0 {
		return nil
	}
	out := make([][]byte, 0, n)
	for o.frames.Length() > 0 {
		out = append(out, o.frames.Remove().([]byte))
	}
	return out
}

func (o *outbox) close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
}

func (o *outbox) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.frames.Length()
}
