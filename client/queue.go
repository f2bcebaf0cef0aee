package client

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultQueueCapacity bounds the offline queue.
const DefaultQueueCapacity = 50

// QueuedRequest is an offline queue entry.
type QueuedRequest struct {
	ID       string
	Request  *Request
	QueuedAt time.Time
}

// OfflineQueue holds mutating requests made while offline. It is FIFO and
// bounded: enqueueing into a full queue drops the oldest entry.
type OfflineQueue struct {
	mu       sync.Mutex
	entries  []QueuedRequest
	capacity int
	dropped  int
	now      func() time.Time
}

// NewOfflineQueue creates a queue. capacity <= 0 uses DefaultQueueCapacity.
func NewOfflineQueue(capacity int) *OfflineQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &OfflineQueue{capacity: capacity, now: time.Now}
}

// Enqueue appends a copy of req and returns the entry ID.
func (q *OfflineQueue) Enqueue(req *Request) string {
	entry := QueuedRequest{
		ID:       uuid.NewString(),
		Request:  req.clone(),
		QueuedAt: q.now(),
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) >= q.capacity {
		q.entries = q.entries[1:]
		q.dropped++
	}
	q.entries = append(q.entries, entry)
	return entry.ID
}

// Peek returns the oldest entry without removing it.
func (q *OfflineQueue) Peek() (QueuedRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return QueuedRequest{}, false
	}
	return q.entries[0], true
}

// Remove deletes the entry with id. It reports whether it was present.
func (q *OfflineQueue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.ID == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of queued entries.
func (q *OfflineQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Dropped returns how many entries were evicted by overflow.
func (q *OfflineQueue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Snapshot returns the queued entries, oldest first.
func (q *OfflineQueue) Snapshot() []QueuedRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]QueuedRequest, len(q.entries))
	copy(out, q.entries)
	return out
}
