package audit

import (
	"sync"
)

// DefaultRingCapacity is the number of entries the live audit view
// keeps in memory.
const DefaultRingCapacity = 100

// Ring is a fixed-capacity append-only buffer of audit entries.
// When full, the oldest entry is overwritten.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Ring struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
}

// NewRing creates a ring holding at most capacity entries.
// A capacity <= 0 falls back to DefaultRingCapacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &Ring{entries: make([]Entry, capacity)}
}

// Append adds an entry, evicting the oldest when full.
func (r *Ring) Append(entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[r.next] = entry
	r.next++
	if r.next == len(r.entries) {
		r.next = 0
		r.full = true
	}
}

// Len returns the number of entries currently held.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.full {
		return len(r.entries)
	}
	return r.next
}

// Recent returns up to n entries, newest first. n <= 0 returns all.
func (r *Ring) Recent(n int) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	size := r.next
	if r.full {
		size = len(r.entries)
	}
	if n <= 0 || n > size {
		n = size
	}

	out := make([]Entry, 0, n)
	// Walk backwards from the most recently written slot.
	idx := r.next - 1
	for i := 0; i < n; i++ {
		if idx < 0 {
			idx = len(r.entries) - 1
		}
		out = append(out, r.entries[idx])
		idx--
	}
	return out
}
