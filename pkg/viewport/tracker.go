// Package viewport keeps the ordered set of book ids currently on screen.
package viewport

import (
	"slices"
	"sync"
)

// DefaultThreshold is the visible fraction at which a book counts as seen.
const DefaultThreshold = 0.5

// Observation is one intersection report for a tracked element.
type Observation struct {
	ID           string
	Intersecting bool
	Ratio        float64
}

// Tracker is an ordered, de-duplicated set of visible ids.
// It is safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	threshold float64
	visible   []string
}

// NewTracker creates a tracker. A threshold outside (0, 1] uses
// DefaultThreshold.
func NewTracker(threshold float64) *Tracker {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Tracker{threshold: threshold}
}

// Update applies a batch of reports. Every reported id is dropped, then
// those intersecting at or above the threshold are appended in report
// order. Ids not in the batch keep their position. It reports whether
// the visible set changed.
func (t *Tracker) Update(batch []Observation) bool {
	reported := make(map[string]bool, len(batch))
	for _, o := range batch {
		reported[o.ID] = true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	next := make([]string, 0, len(t.visible)+len(batch))
	seen := make(map[string]bool, cap(next))
	for _, id := range t.visible {
		if !reported[id] && !seen[id] {
			next = append(next, id)
			seen[id] = true
		}
	}
	for _, o := range batch {
		if o.ID == "" || seen[o.ID] {
			continue
		}
		if o.Intersecting && o.Ratio >= t.threshold {
			next = append(next, o.ID)
			seen[o.ID] = true
		}
	}

	if slices.Equal(next, t.visible) {
		return false
	}
	t.visible = next
	return true
}

// Untrack removes id, as when its element leaves the page.
func (t *Tracker) Untrack(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.visible = slices.DeleteFunc(t.visible, func(v string) bool { return v == id })
}

// Visible returns a copy of the visible ids in first-seen order.
func (t *Tracker) Visible() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.visible)
}
