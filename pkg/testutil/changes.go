package testutil

import (
	"sync"
	"time"

	"dnaconverter/internal/converter"
)

// RecordedChange is a controller change captured for verification
type RecordedChange struct {
	Timestamp time.Time
	converter.Change
}

// ChangeRecorder is a converter.Notifier that remembers every change.
type ChangeRecorder struct {
	mu      sync.Mutex
	changes []RecordedChange
}

// NotifyChanged implements converter.Notifier.
func (r *ChangeRecorder) NotifyChanged(_ *converter.Controller, change converter.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, RecordedChange{Timestamp: time.Now(), Change: change})
}

// Changes returns a copy of the recorded changes, oldest first.
func (r *ChangeRecorder) Changes() []RecordedChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedChange, len(r.changes))
	copy(out, r.changes)
	return out
}

// Types returns the type of every recorded change, oldest first.
func (r *ChangeRecorder) Types() []converter.ChangeType {
	changes := r.Changes()
	types := make([]converter.ChangeType, 0, len(changes))
	for _, c := range changes {
		types = append(types, c.Type)
	}
	return types
}

// Clear forgets the recorded changes.
func (r *ChangeRecorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = nil
}

// FilterChanges returns the changes of the given type
func FilterChanges(changes []RecordedChange, changeType converter.ChangeType) []RecordedChange {
	var filtered []RecordedChange
	for _, c := range changes {
		if c.Type == changeType {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// FindChangeForPlugin returns the latest change naming plugin, or nil.
func FindChangeForPlugin(changes []RecordedChange, plugin string) *RecordedChange {
	for i := len(changes) - 1; i >= 0; i-- {
		if changes[i].Plugin == plugin || changes[i].Previous == plugin {
			c := changes[i]
			return &c
		}
	}
	return nil
}
