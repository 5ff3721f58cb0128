package filetx

import (
	"fmt"
	"io"
)

// DefaultQueueSize is the number of pending writes kept before a flush.
const DefaultQueueSize = 4096

type pendingWrite struct {
	off int64
	b   []byte
}

// WriteQueue collects small positioned writes and issues them in insertion
// order when it fills up or on Flush.
type WriteQueue struct {
	w       io.WriterAt
	entries []pendingWrite
	size    int
	flushes int
}

func NewWriteQueue(w io.WriterAt, size int) *WriteQueue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &WriteQueue{w: w, entries: make([]pendingWrite, 0, size), size: size}
}

// Add queues a copy of b for offset off, flushing first when the queue is full.
func (q *WriteQueue) Add(off int64, b []byte) error {
	if len(q.entries) == q.size {
		if err := q.Flush(); err != nil {
			return err
		}
	}
	q.entries = append(q.entries, pendingWrite{off: off, b: append([]byte(nil), b...)})
	return nil
}

// Flush writes every pending entry.
func (q *WriteQueue) Flush() error {
	if len(q.entries) == 0 {
		return nil
	}
	for _, e := range q.entries {
		if _, err := q.w.WriteAt(e.b, e.off); err != nil {
			return fmt.Errorf("write at offset %d: %w", e.off, err)
		}
	}
	q.entries = q.entries[:0]
	q.flushes++
	return nil
}

// Len returns the number of pending writes.
func (q *WriteQueue) Len() int { return len(q.entries) }

// Flushes returns how many times the queue was written out.
func (q *WriteQueue) Flushes() int { return q.flushes }

// Discard drops pending writes.
func (q *WriteQueue) Discard() { q.entries = q.entries[:0] }
