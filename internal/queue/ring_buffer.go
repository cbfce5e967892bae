// Package queue provides a thread-safe ring buffer that decouples record
// collection from report generation.
package queue

import (
	"errors"
	"sync"
	"sync/atomic"

	"unifi-report/internal/schema"
)

var (
	// ErrQueueFull is returned when attempting to push to a full queue.
	ErrQueueFull = errors.New("queue is full")
	// ErrQueueEmpty is returned when attempting to pop from an empty queue.
	ErrQueueEmpty = errors.New("queue is empty")
	// ErrQueueClosed is returned when attempting to use a closed queue.
	ErrQueueClosed = errors.New("queue is closed")
)

// RingBuffer is a thread-safe circular buffer of normalized records. The
// collector pushes as records arrive; the report cycle drains a batch at a
// time. A full buffer drops the newest record rather than blocking the
// collector behind a slow consumer.
type RingBuffer struct {
	buffer []*schema.LogEntry
	size   int
	head   int
	tail   int
	count  int
	closed bool
	mu     sync.Mutex
	cond   *sync.Cond

	// Metrics (accessed atomically)
	totalPushed  uint64
	totalPopped  uint64
	totalDropped uint64
}

// NewRingBuffer creates a new RingBuffer with the specified capacity.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 10000 // Default size
	}

	rb := &RingBuffer{
		buffer: make([]*schema.LogEntry, size),
		size:   size,
	}
	rb.cond = sync.NewCond(&rb.mu)
	return rb
}

// Push adds a record to the queue.
// Returns ErrQueueFull if the queue is at capacity.
func (rb *RingBuffer) Push(entry *schema.LogEntry) error {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.closed {
		return ErrQueueClosed
	}

	if rb.count == rb.size {
		atomic.AddUint64(&rb.totalDropped, 1)
		return ErrQueueFull
	}

	rb.buffer[rb.tail] = entry
	rb.tail = (rb.tail + 1) % rb.size
	rb.count++
	atomic.AddUint64(&rb.totalPushed, 1)

	// Signal waiting consumers
	rb.cond.Signal()
	return nil
}

// Pop removes and returns a record from the queue.
// Returns ErrQueueEmpty if the queue is empty.
func (rb *RingBuffer) Pop() (*schema.LogEntry, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.count == 0 {
		return nil, ErrQueueEmpty
	}
	return rb.popLocked(), nil
}

// PopBlocking removes and returns a record from the queue.
// Blocks until a record is available or the queue is closed.
func (rb *RingBuffer) PopBlocking() (*schema.LogEntry, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	for rb.count == 0 && !rb.closed {
		rb.cond.Wait()
	}

	if rb.closed && rb.count == 0 {
		return nil, ErrQueueClosed
	}
	return rb.popLocked(), nil
}

// Drain removes up to max records in FIFO order. A max of 0 or less drains
// everything currently buffered. The report cycle uses this to take one
// batch without holding the lock across analysis.
func (rb *RingBuffer) Drain(max int) []*schema.LogEntry {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := rb.count
	if max > 0 && max < n {
		n = max
	}

	out := make([]*schema.LogEntry, 0, n)
	for len(out) < n {
		out = append(out, rb.popLocked())
	}
	return out
}

func (rb *RingBuffer) popLocked() *schema.LogEntry {
	entry := rb.buffer[rb.head]
	rb.buffer[rb.head] = nil // Allow GC
	rb.head = (rb.head + 1) % rb.size
	rb.count--
	atomic.AddUint64(&rb.totalPopped, 1)
	return entry
}

// Len returns the current number of records in the queue.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Cap returns the capacity of the queue.
func (rb *RingBuffer) Cap() int {
	return rb.size
}

// IsFull returns true if the queue is at capacity.
func (rb *RingBuffer) IsFull() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count == rb.size
}

// IsEmpty returns true if the queue is empty.
func (rb *RingBuffer) IsEmpty() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count == 0
}

// Close closes the queue and wakes up any waiting consumers.
func (rb *RingBuffer) Close() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.closed = true
	rb.cond.Broadcast()
}

// Metrics returns queue statistics.
func (rb *RingBuffer) Metrics() QueueMetrics {
	return QueueMetrics{
		Pushed:   atomic.LoadUint64(&rb.totalPushed),
		Popped:   atomic.LoadUint64(&rb.totalPopped),
		Dropped:  atomic.LoadUint64(&rb.totalDropped),
		Depth:    rb.Len(),
		Capacity: rb.size,
	}
}

// QueueMetrics holds statistics about queue operations.
type QueueMetrics struct {
	Pushed   uint64 `json:"pushed"`
	Popped   uint64 `json:"popped"`
	Dropped  uint64 `json:"dropped"`
	Depth    int    `json:"depth"`
	Capacity int    `json:"capacity"`
}
