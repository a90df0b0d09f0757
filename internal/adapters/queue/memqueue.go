package queue

import (
	"sync"

	"github.com/ghalamif/sensorwatch/internal/domain"
	"github.com/ghalamif/sensorwatch/internal/ports"
)

// MemQueue is a bounded FIFO of heartbeats backed by a ring buffer.
type MemQueue struct {
	mu   sync.Mutex
	buf  []domain.Heartbeat
	head int
	n    int
}

func NewMemQueue(capacity int) *MemQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &MemQueue{buf: make([]domain.Heartbeat, capacity)}
}

// Enqueue reports false when the queue is full.
func (q *MemQueue) Enqueue(hb domain.Heartbeat) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.n == len(q.buf) {
		return false
	}
	q.buf[(q.head+q.n)%len(q.buf)] = hb
	q.n++
	return true
}

// DequeueBatch removes up to max heartbeats; max <= 0 means all.
func (q *MemQueue) DequeueBatch(max int) []domain.Heartbeat {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.n == 0 {
		return nil
	}
	if max <= 0 || max > q.n {
		max = q.n
	}
	out := make([]domain.Heartbeat, max)
	for i := range out {
		idx := (q.head + i) % len(q.buf)
		out[i] = q.buf[idx]
		q.buf[idx] = domain.Heartbeat{}
	}
	q.head = (q.head + max) % len(q.buf)
	q.n -= max
	return out
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

func (q *MemQueue) Cap() int { return len(q.buf) }

var _ ports.HeartbeatQueue = (*MemQueue)(nil)
