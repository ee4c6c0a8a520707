package converter

import "sync"

// compactThreshold is how many consumed slots accumulate before the backing
// slice is compacted.
const compactThreshold = 256

// OutputQueue is an unbounded FIFO of output lines. Any number of goroutines
// may Push; a single consumer pops. Push never blocks.
type OutputQueue struct {
	mu    sync.Mutex
	items []string
	head  int
	ready chan struct{}
}

// NewOutputQueue creates an empty queue.
func NewOutputQueue() *OutputQueue {
	return &OutputQueue{ready: make(chan struct{}, 1)}
}

// Push appends line and wakes the consumer.
func (q *OutputQueue) Push(line string) {
	q.mu.Lock()
	q.items = append(q.items, line)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// TryPop removes the oldest line without blocking.
func (q *OutputQueue) TryPop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head == len(q.items) {
		return "", false
	}
	line := q.items[q.head]
	q.items[q.head] = ""
	q.head++

	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head >= compactThreshold && q.head*2 >= len(q.items):
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}
	return line, true
}

// Ready receives a value after a Push that the consumer has not yet been
// woken for. A consumer that empties the queue with TryPop and then waits on
// Ready cannot miss a line.
func (q *OutputQueue) Ready() <-chan struct{} {
	return q.ready
}

// Len returns the number of queued lines.
func (q *OutputQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}
