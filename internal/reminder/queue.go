package reminder

import (
	"context"
	"sync"

	"birthdaybot/internal/domain"
)

// Queue is an unbounded FIFO of due events shared by the producer and the
// consumer. Push never blocks; Pop blocks while the queue is empty.
type Queue struct {
	mu    sync.Mutex
	items []domain.Event
	head  int

	// ready holds at most one wake-up token for a waiting Pop.
	ready chan struct{}
}

func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

func (q *Queue) Push(e domain.Event) {
	q.mu.Lock()
	q.items = append(q.items, e)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Pop removes the oldest event, waiting until one is available or ctx is done.
func (q *Queue) Pop(ctx context.Context) (domain.Event, error) {
	for {
		if e, ok := q.TryPop(); ok {
			return e, nil
		}
		select {
		case <-ctx.Done():
			return domain.Event{}, ctx.Err()
		case <-q.ready:
		}
	}
}

// TryPop removes the oldest event without waiting.
func (q *Queue) TryPop() (domain.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head >= len(q.items) {
		return domain.Event{}, false
	}
	e := q.items[q.head]
	q.items[q.head] = domain.Event{}
	q.head++
	// Reclaim the consumed prefix once it dominates the slice.
	if q.head > 64 && q.head*2 >= len(q.items) {
		q.items = append([]domain.Event(nil), q.items[q.head:]...)
		q.head = 0
	}
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return e, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}
