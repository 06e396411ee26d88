package federate

import (
	"sync"

	"github.com/fedsync/fedsync/internal/protocol"
)

// messageQueue is a thread-safe FIFO of inbound federation messages.
//
// The queue is unbounded so a burst of announces from a replay cannot
// block the connection reader. Thread-safety exists for the enqueue
// side (gateway pump, tests); the executive's cycle goroutine is the
// only dequeuer.
//
// A size-1 signal channel coalesces wakeups so blocking helpers can
// select on availability together with context cancellation.
type messageQueue struct {
	mu       sync.Mutex
	messages []protocol.Message
	closed   bool
	signal   chan struct{}
}

func newMessageQueue() *messageQueue {
	return &messageQueue{
		messages: make([]protocol.Message, 0, 64),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue appends a message. Safe from any goroutine. Returns false if
// the queue is closed.
func (q *messageQueue) Enqueue(m protocol.Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.messages = append(q.messages, m)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front message without blocking. Messages still
// queued when the queue closes remain dequeueable.
func (q *messageQueue) TryDequeue() (protocol.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.messages) == 0 {
		return protocol.Message{}, false
	}
	m := q.messages[0]

	// Zero the slot so the backing array does not retain the message's
	// pointers until reallocation.
	q.messages[0] = protocol.Message{}
	if len(q.messages) == 1 {
		q.messages = q.messages[:0]
	} else {
		q.messages = q.messages[1:]
	}
	return m, true
}

// Wait returns the availability signal. The channel is closed when the
// queue closes, so a waiter always wakes; callers must re-check state
// after waking.
func (q *messageQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued messages.
func (q *messageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// Close rejects further enqueues and wakes all waiters.
func (q *messageQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// Closed reports whether Close has been called.
func (q *messageQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
