package call

import (
	"context"
	"sync"
)

// mailbox runs posted closures one at a time, in posting order, on the
// goroutine that calls run. Posting never blocks, so pion and websocket
// callbacks can post while the running closure is closing them.
type mailbox struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool
	wake    chan struct{}
	done    chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// post enqueues fn. It reports false once the mailbox is stopped.
func (m *mailbox) post(fn func()) bool {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, fn)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return true
}

// run executes closures until ctx is cancelled or stop is called. Closures
// still queued at that point are dropped.
func (m *mailbox) run(ctx context.Context) {
	for {
		m.mu.Lock()
		batch := m.queue
		m.queue = nil
		m.mu.Unlock()

		for _, fn := range batch {
			if m.isStopped() {
				return
			}
			fn()
		}

		select {
		case <-ctx.Done():
			m.stop()
			return
		case <-m.done:
			return
		case <-m.wake:
		}
	}
}

func (m *mailbox) stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.stopped {
		m.stopped = true
		close(m.done)
	}
}

func (m *mailbox) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}
