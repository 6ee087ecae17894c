// Package tracking records which typed fields of a document changed since it
// was last loaded or saved.
package tracking

import (
	"reflect"
	"sort"
	"sync"

	"github.com/conduit-lang/docmap/internal/engine"
)

// EqualFunc compares two field values
type EqualFunc func(a, b any) bool

// FieldChange represents a change to a single field
type FieldChange struct {
	Field    string
	OldValue any
	NewValue any
}

// ChangeTracker tracks field changes against a snapshot
type ChangeTracker struct {
	mu       sync.RWMutex
	original map[string]any
	current  map[string]any
	changes  map[string]*FieldChange
	equal    EqualFunc
}

// NewChangeTracker creates a tracker whose baseline is snapshot. A nil equal
// compares with reflect.DeepEqual.
func NewChangeTracker(snapshot map[string]any, equal EqualFunc) *ChangeTracker {
	if equal == nil {
		equal = deepEqual
	}
	return &ChangeTracker{
		original: copyMap(snapshot),
		current:  copyMap(snapshot),
		changes:  make(map[string]*FieldChange),
		equal:    equal,
	}
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return make(map[string]any)
	}
	return engine.Record(m).Clone()
}

func deepEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// Set records the current value of a field. A value equal to the baseline
// clears the change.
func (ct *ChangeTracker) Set(field string, value any) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	ct.current[field] = value
	old, had := ct.original[field]
	if had && ct.equal(old, value) {
		delete(ct.changes, field)
		return
	}
	if !had && value == nil {
		delete(ct.changes, field)
		return
	}
	ct.changes[field] = &FieldChange{Field: field, OldValue: old, NewValue: value}
}

// Changed returns true if the specified field has changed
func (ct *ChangeTracker) Changed(field string) bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	_, ok := ct.changes[field]
	return ok
}

// ChangedFields returns the changed field names in sorted order
func (ct *ChangeTracker) ChangedFields() []string {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	fields := make([]string, 0, len(ct.changes))
	for field := range ct.changes {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// PreviousValue returns the baseline value of a field
func (ct *ChangeTracker) PreviousValue(field string) any {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.original[field]
}

// GetChange returns the FieldChange for a specific field, or nil if unchanged
func (ct *ChangeTracker) GetChange(field string) *FieldChange {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.changes[field]
}

// HasChanges returns true if any fields have changed
func (ct *ChangeTracker) HasChanges() bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return len(ct.changes) > 0
}

// Reset makes snapshot the new baseline and clears all changes. It is
// called after a load or a successful save.
func (ct *ChangeTracker) Reset(snapshot map[string]any) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	ct.original = copyMap(snapshot)
	ct.current = copyMap(snapshot)
	ct.changes = make(map[string]*FieldChange)
}

// ChangedData returns the new values of the changed fields
func (ct *ChangeTracker) ChangedData() map[string]any {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	result := make(map[string]any, len(ct.changes))
	for field, change := range ct.changes {
		result[field] = change.NewValue
	}
	return result
}
