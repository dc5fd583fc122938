// Package change implements the in-memory table buffer and the
// per-context change tracker.
package change

import "sync"

// Buffer is the shared, in-memory ordered sequence of live records for
// one table. It lives inside the file cache and is shared by every
// Context open on that table; Table[T] binds to it directly rather than
// copying it per Context, which is what keeps sibling contexts consistent
// so that sibling Contexts observe the same live records.
type Buffer[T any] struct {
	mu      sync.RWMutex
	records []*T
	maxId   int32
}

// NewBuffer wraps an already-loaded, slot-ordered slice of live records.
func NewBuffer[T any](loaded []*T, maxId int32) *Buffer[T] {
	return &Buffer[T]{records: loaded, maxId: maxId}
}

// Append adds e to the end of the buffer. Callers are expected to already
// hold whatever external write lock guards this buffer (the cache's
// write lock, taken around Add/Remove).
func (b *Buffer[T]) Append(e *T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, e)
}

// Remove deletes e (by identity) from the buffer, reporting whether it
// was present.
func (b *Buffer[T]) Remove(e *T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, r := range b.records {
		if r == e {
			b.records = append(b.records[:i], b.records[i+1:]...)
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the current record references, so iteration
// never observes mid-iteration mutation.
func (b *Buffer[T]) Snapshot() []*T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*T, len(b.records))
	copy(out, b.records)
	return out
}

// Count returns the number of live records currently buffered.
func (b *Buffer[T]) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records)
}

// MaxId returns the highest Id ever seen live or tombstoned in this
// table, maintained incrementally since the buffer was first built.
func (b *Buffer[T]) MaxId() int32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.maxId
}

// BumpMaxId records that id is now known to exist (live or tombstoned),
// raising MaxId if id is larger than the current value.
func (b *Buffer[T]) BumpMaxId(id int32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id > b.maxId {
		b.maxId = id
	}
}

// NextId allocates the next Id (current max + 1) and immediately raises
// MaxId to it, so two back-to-back calls never return the same value.
func (b *Buffer[T]) NextId() int32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maxId++
	return b.maxId
}

// Contains reports whether a live record with the given Id is present,
// using idOf to read each record's Id.
func (b *Buffer[T]) Contains(id int32, idOf func(*T) int32) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, r := range b.records {
		if idOf(r) == id {
			return true
		}
	}
	return false
}
