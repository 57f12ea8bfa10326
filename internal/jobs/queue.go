package jobs

import (
	"container/heap"
	"sync"
	"time"
)

// Queue is a bounded priority queue of admitted job ids. Higher priority is
// served first; among equal priority, earlier submission wins. Strict
// priority plus FIFO is the whole policy — priority aging would be an
// explicit extension, not built in.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	items    entryHeap
	capacity int
	seq      uint64
	closed   bool
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	q := &Queue{capacity: capacity}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Push admits a job id. It never blocks; a full queue is an error the
// caller surfaces at submission time.
func (q *Queue) Push(id string, priority int, submitted time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrStopped
	}
	if q.items.Len() >= q.capacity {
		return ErrQueueFull
	}
	q.seq++
	heap.Push(&q.items, &entry{
		id:        id,
		priority:  priority,
		submitted: submitted,
		seq:       q.seq,
	})
	q.notEmpty.Signal()
	return nil
}

// Pop blocks until an id is available or the queue is closed and drained.
// The second return value is false only when no more ids will ever arrive.
func (q *Queue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.items.Len() == 0 {
		if q.closed {
			return "", false
		}
		q.notEmpty.Wait()
	}
	e := heap.Pop(&q.items).(*entry)
	return e.id, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Close wakes all blocked Pop callers. Remaining items are still handed out
// before Pop starts reporting exhaustion.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.notEmpty.Broadcast()
}

type entry struct {
	id        string
	priority  int
	submitted time.Time
	seq       uint64
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	if !h[i].submitted.Equal(h[j].submitted) {
		return h[i].submitted.Before(h[j].submitted)
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(*entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}
