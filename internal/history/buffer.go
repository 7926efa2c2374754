// Package history keeps the last few messages of each room in memory so that
// abuse reports can attach a conversation snapshot for moderator review.
// This is not chat persistence: buffers are dropped the moment a room dies,
// and nothing ever leaves process memory except inside a filed report.
package history

import "sync"

// MaxEntries is the number of recent messages retained per room.
const MaxEntries = 10

// Entry is a single message stored in the ring buffer.
type Entry struct {
	SenderID string `json:"from"`
	Text     string `json:"text"`
	Ts       int64  `json:"ts"`
}

// Buffer stores the last N messages per room. It is goroutine-safe and uses
// a ring buffer internally.
type Buffer struct {
	mu    sync.RWMutex
	rooms map[string]*ring // room id -> ring buffer
}

// ring is a fixed-size circular buffer of Entry.
type ring struct {
	items []Entry
	pos   int
	count int
}

// NewBuffer creates an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{rooms: make(map[string]*ring)}
}

// Add appends a message to the room's ring buffer. If the buffer is full,
// the oldest message is overwritten.
func (b *Buffer) Add(roomID string, e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.rooms[roomID]
	if !ok {
		r = &ring{items: make([]Entry, MaxEntries)}
		b.rooms[roomID] = r
	}

	r.items[r.pos] = e
	r.pos = (r.pos + 1) % MaxEntries
	if r.count < MaxEntries {
		r.count++
	}
}

// Get returns the room's recent messages in chronological order (oldest
// first). Returns an empty slice if the room has no buffer.
func (b *Buffer) Get(roomID string) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	r, ok := b.rooms[roomID]
	if !ok {
		return []Entry{}
	}

	out := make([]Entry, r.count)
	start := (r.pos - r.count + MaxEntries) % MaxEntries
	for i := 0; i < r.count; i++ {
		out[i] = r.items[(start+i)%MaxEntries]
	}
	return out
}

// Remove deletes the buffer for a room (called when the room is torn down).
func (b *Buffer) Remove(roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.rooms, roomID)
}
