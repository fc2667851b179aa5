package realtime

import (
	"context"
	"sync"
	"time"
)

// AudioQueue is a bounded FIFO of audio chunks. When full, Push evicts the
// oldest chunk so the producer never blocks.
type AudioQueue struct {
	mu      sync.Mutex
	items   [][]byte
	cap     int
	dropped uint64
	notify  chan struct{}
}

func NewAudioQueue(capacity int) *AudioQueue {
	if capacity <= 0 {
		capacity = 32
	}
	return &AudioQueue{
		items:  make([][]byte, 0, capacity),
		cap:    capacity,
		notify: make(chan struct{}, 1),
	}
}

// Push appends chunk and returns how many chunks were evicted to make room.
func (q *AudioQueue) Push(chunk []byte) int {
	q.mu.Lock()
	evicted := 0
	for len(q.items) >= q.cap {
		q.items[0] = nil
		q.items = q.items[1:]
		evicted++
	}
	q.items = append(q.items, chunk)
	q.dropped += uint64(evicted)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return evicted
}

func (q *AudioQueue) TryPop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	chunk := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return chunk, true
}

// Pop waits up to wait for a chunk. It returns false on timeout or when ctx
// is done.
func (q *AudioQueue) Pop(ctx context.Context, wait time.Duration) ([]byte, bool) {
	if chunk, ok := q.TryPop(); ok {
		return chunk, true
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, false
		case <-timer.C:
			return q.TryPop()
		case <-q.notify:
			if chunk, ok := q.TryPop(); ok {
				return chunk, true
			}
		}
	}
}

func (q *AudioQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *AudioQueue) Cap() int {
	return q.cap
}

func (q *AudioQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

func (q *AudioQueue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.items {
		q.items[i] = nil
	}
	q.items = q.items[:0]
}
