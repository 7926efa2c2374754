package hub

import "time"

// waitEntry is one waiting connection: its id and when it joined the queue.
type waitEntry struct {
	connID   string
	joinedAt time.Time
}

// waitQueue is the FIFO waiting list scanned by the matcher. Scan order is
// insertion order; a connection appears at most once. It is not safe for
// concurrent use on its own — every access happens under the hub lock.
type waitQueue struct {
	entries []waitEntry
	members map[string]bool
}

func newWaitQueue() *waitQueue {
	return &waitQueue{members: make(map[string]bool)}
}

// push appends a connection to the back of the queue. A connection already
// present is not added twice.
func (q *waitQueue) push(connID string) {
	if q.members[connID] {
		return
	}
	q.entries = append(q.entries, waitEntry{connID: connID, joinedAt: time.Now()})
	q.members[connID] = true
}

// remove deletes a connection from the queue, preserving the order of the
// remaining entries. Returns true if it was present.
func (q *waitQueue) remove(connID string) bool {
	if !q.members[connID] {
		return false
	}
	delete(q.members, connID)
	for i, e := range q.entries {
		if e.connID == connID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// contains reports queue membership.
func (q *waitQueue) contains(connID string) bool {
	return q.members[connID]
}

// snapshot returns a copy of the current entries in scan order.
func (q *waitQueue) snapshot() []waitEntry {
	out := make([]waitEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

// len returns the number of waiting connections.
func (q *waitQueue) len() int {
	return len(q.entries)
}
