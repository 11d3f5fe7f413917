package controller

import "time"

// queueEntry is one waiting request. The session record already exists in
// the registry (StateQueued) under the same id.
type queueEntry struct {
	id         string
	req        Request
	enqueuedAt time.Time
	deadline   time.Time
}

// waitQueue is the bounded FIFO of requests that could not be admitted
// immediately. Not self-locking; the Controller serializes access.
type waitQueue struct {
	entries  []*queueEntry
	maxDepth int
}

func newWaitQueue(maxDepth int) *waitQueue {
	return &waitQueue{maxDepth: maxDepth}
}

func (q *waitQueue) len() int { return len(q.entries) }

func (q *waitQueue) full() bool { return len(q.entries) >= q.maxDepth }

// push appends an entry; the caller checks full() first and maps overflow
// to a queueFullError.
func (q *waitQueue) push(e *queueEntry) int {
	q.entries = append(q.entries, e)
	return len(q.entries) // 1-based position
}

// head returns the oldest entry without removing it. Draining is strictly
// head-first: a later, smaller request never jumps an earlier, larger one.
func (q *waitQueue) head() *queueEntry {
	if len(q.entries) == 0 {
		return nil
	}
	return q.entries[0]
}

func (q *waitQueue) popHead() *queueEntry {
	if len(q.entries) == 0 {
		return nil
	}
	e := q.entries[0]
	q.entries = q.entries[1:]
	return e
}

// remove deletes an entry by session id (client disconnect while queued).
func (q *waitQueue) remove(id string) *queueEntry {
	for i, e := range q.entries {
		if e.id == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return e
		}
	}
	return nil
}

// expire removes and returns every entry whose deadline has passed.
func (q *waitQueue) expire(now time.Time) []*queueEntry {
	var expired []*queueEntry
	kept := q.entries[:0]
	for _, e := range q.entries {
		if !e.deadline.After(now) {
			expired = append(expired, e)
		} else {
			kept = append(kept, e)
		}
	}
	q.entries = kept
	return expired
}

// position returns the 1-based queue position for a session id, or 0.
func (q *waitQueue) position(id string) int {
	for i, e := range q.entries {
		if e.id == id {
			return i + 1
		}
	}
	return 0
}
