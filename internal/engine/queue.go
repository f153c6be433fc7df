package engine

import "time"

// WaitingEntry is one user waiting for a partner. Seq is a per-enqueue
// generation number: the waiting-deadline timer captures it and checks it at
// fire time, so a timer scheduled for an entry that was matched and
// re-enqueued cannot evict the newer entry.
type WaitingEntry struct {
	ConnID   string
	Prefs    *Preferences
	JoinedAt time.Time
	Seq      uint64
}

// WaitingQueue holds users seeking a partner in insertion order. Not
// goroutine safe; the engine serializes access.
type WaitingQueue struct {
	entries map[string]*WaitingEntry
	order   []string
	seq     uint64
}

// NewWaitingQueue creates an empty queue.
func NewWaitingQueue() *WaitingQueue {
	return &WaitingQueue{entries: make(map[string]*WaitingEntry)}
}

// Enqueue adds a user to the queue. It returns the entry's generation number
// and true on success, or false if the user is already enqueued.
func (q *WaitingQueue) Enqueue(connID string, prefs *Preferences, now time.Time) (uint64, bool) {
	if _, ok := q.entries[connID]; ok {
		return 0, false
	}
	q.seq++
	q.entries[connID] = &WaitingEntry{
		ConnID:   connID,
		Prefs:    prefs,
		JoinedAt: now,
		Seq:      q.seq,
	}
	q.order = append(q.order, connID)
	return q.seq, true
}

// Remove deletes the user's entry. Returns true if an entry was present.
func (q *WaitingQueue) Remove(connID string) bool {
	if _, ok := q.entries[connID]; !ok {
		return false
	}
	delete(q.entries, connID)
	return true
}

// Get returns the user's entry, or nil if not enqueued.
func (q *WaitingQueue) Get(connID string) *WaitingEntry {
	return q.entries[connID]
}

// Snapshot returns the current entries in enqueue order. The returned slice
// is a point-in-time copy, safe to iterate while the queue is mutated. As a
// side effect the internal order list is compacted of removed IDs.
func (q *WaitingQueue) Snapshot() []*WaitingEntry {
	out := make([]*WaitingEntry, 0, len(q.entries))
	live := q.order[:0]
	for _, id := range q.order {
		if entry, ok := q.entries[id]; ok {
			out = append(out, entry)
			live = append(live, id)
		}
	}
	q.order = live
	return out
}

// Size returns the number of waiting users.
func (q *WaitingQueue) Size() int {
	return len(q.entries)
}
