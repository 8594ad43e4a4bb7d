package websocket

import (
	"sync"

	domainEvents "github.com/kolibrisuite/chatsync/domains/events"
)

// outQueue is the bounded per-connection outbound buffer. A slow
// reader fills its own queue and loses events without ever blocking
// the dispatcher or other connections. Overflow drops low-priority
// events first; only when none remain is the oldest event shed.
type outQueue struct {
	mu       sync.Mutex
	items    []domainEvents.Event
	capacity int
	dropped  int64
	notify   chan struct{}
}

func newOutQueue(capacity int) *outQueue {
	if capacity <= 0 {
		capacity = 64
	}
	return &outQueue{
		items:    make([]domainEvents.Event, 0, capacity),
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

// push enqueues one event, shedding if the queue is full. Returns
// false when something was dropped to make room.
func (q *outQueue) push(evt domainEvents.Event) bool {
	q.mu.Lock()
	shed := false
	if len(q.items) >= q.capacity {
		q.shedLocked()
		shed = true
	}
	q.items = append(q.items, evt)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return !shed
}

// shedLocked removes the first low-priority event, or the oldest
// event when the queue holds only message events.
func (q *outQueue) shedLocked() {
	q.dropped++
	for i, evt := range q.items {
		if evt.LowPriority() {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
	q.items = q.items[1:]
}

// drain returns every queued event and empties the queue.
func (q *outQueue) drain() []domainEvents.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = make([]domainEvents.Event, 0, q.capacity)
	return out
}

func (q *outQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *outQueue) droppedCount() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
