package store

import "sync"

// DirtyTracker is the in-process stand-in for the external sync
// collaborator's dirty flag. The engine notifies it for genuine content
// changes only; UI-only writes (cursor moves) must never reach it.
type DirtyTracker struct {
	mu    sync.Mutex
	count int
}

// NewDirtyTracker creates a clean tracker.
func NewDirtyTracker() *DirtyTracker {
	return &DirtyTracker{}
}

// MarkDirty records one genuine content change.
func (d *DirtyTracker) MarkDirty() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count++
}

// Dirty reports whether any content change happened since the last Reset.
func (d *DirtyTracker) Dirty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count > 0
}

// Count returns the number of content changes since the last Reset.
func (d *DirtyTracker) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

// Reset clears the flag, e.g. after the sync collaborator uploads.
func (d *DirtyTracker) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count = 0
}
