// Package shadowstate records what each converter plugin saw and produced on
// its last apply, so a dispatch can be inspected after the fact.
package shadowstate

import (
	"sync"
	"time"

	"dnaconverter/pkg/plugin"
)

// Tracker manages apply records for all plugins
type Tracker struct {
	mu       sync.RWMutex
	records  map[string]ApplyRecord
	metadata StateMetadata
}

// NewTracker creates a new shadow state tracker
func NewTracker() *Tracker {
	return &Tracker{
		records: make(map[string]ApplyRecord),
	}
}

// Record stores rec as the latest apply of rec.Plugin.
func (t *Tracker) Record(rec ApplyRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.records[rec.Plugin] = rec.clone()
	if rec.Timestamp.After(t.metadata.LastUpdated) {
		t.metadata.LastUpdated = rec.Timestamp
	}
}

// MarkDispatch counts a completed dispatch pass.
func (t *Tracker) MarkDispatch(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.metadata.Dispatches++
	if at.After(t.metadata.LastUpdated) {
		t.metadata.LastUpdated = at
	}
}

// Get retrieves a plugin's latest apply record
func (t *Tracker) Get(pluginName string) (ApplyRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.records[pluginName]
	if !ok {
		return ApplyRecord{}, false
	}
	return rec.clone(), true
}

// Snapshot returns a copy of all records.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	records := make(map[string]ApplyRecord, len(t.records))
	for k, v := range t.records {
		records[k] = v.clone()
	}
	return Snapshot{Records: records, Metadata: t.metadata}
}

// Forget drops the record for a removed plugin.
func (t *Tracker) Forget(pluginName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, pluginName)
}

// CaptureInputs reads the DNA values a plugin declares it uses.
// Names missing from dna are skipped.
func CaptureInputs(p plugin.Plugin, dna plugin.DNA) map[string]float64 {
	inputs := make(map[string]float64)
	if dna == nil {
		return inputs
	}
	for name := range p.IndexesForDNANames() {
		if v, ok := dna.Value(name); ok {
			inputs[name] = v
		}
	}
	return inputs
}

// DiffOutputs returns the entries of after that are new or changed
// relative to before.
func DiffOutputs(before, after plugin.Outputs) map[string]float64 {
	diff := make(map[string]float64)
	for name, v := range after {
		if old, ok := before[name]; !ok || old != v {
			diff[name] = v
		}
	}
	return diff
}
