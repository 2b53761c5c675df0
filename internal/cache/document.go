// Package cache implements a per-experiment sorted-measurement store with
// range queries and a lazily computed, once-only out-of-bounds derivation.
package cache

import (
	"sort"
	"sync"

	"github.com/landaudiogo/cc-assignment-2023/internal/events"
)

// Measurement is the reduced shape range/out-of-bounds queries operate over.
type Measurement struct {
	Timestamp   float64
	Temperature float32
}

// Document is one experiment's measurement set plus its immutable range and
// lazily-computed out-of-bounds cache.
//
// Its own sync.RWMutex serializes the one-time out-of-bounds computation,
// independent from whatever lock a Store uses to guard the document set
// itself.
type Document struct {
	ExperimentID string
	Range        events.TemperatureRange
	measurements []Measurement // sorted ascending by Timestamp after NewDocument

	mu          sync.RWMutex
	outOfBounds []Measurement
	computed    bool
}

// NewDocument sorts measurements ascending by timestamp once, an invariant
// that holds for the rest of the Document's life.
func NewDocument(experimentID string, measurements []Measurement, rng events.TemperatureRange) *Document {
	sorted := make([]Measurement, len(measurements))
	copy(sorted, measurements)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })
	return &Document{ExperimentID: experimentID, Range: rng, measurements: sorted}
}

// Measurements returns the sorted measurement slice. Callers must not mutate
// it; documents are logically owned by the consumer's document set.
func (d *Document) Measurements() []Measurement {
	return d.measurements
}

// firstIndexGE returns the smallest index i with measurements[i].Timestamp >=
// start, and false if start exceeds every timestamp in the document.
func (d *Document) firstIndexGE(start float64) (int, bool) {
	n := len(d.measurements)
	idx := sort.Search(n, func(i int) bool { return d.measurements[i].Timestamp >= start })
	if idx == n {
		return 0, false
	}
	return idx, true
}

// lastIndexLE returns the largest index i with measurements[i].Timestamp <=
// end, and false if end precedes every timestamp in the document.
func (d *Document) lastIndexLE(end float64) (int, bool) {
	n := len(d.measurements)
	// idx is the first index with Timestamp > end; everything before it
	// qualifies, everything at/after does not.
	idx := sort.Search(n, func(i int) bool { return d.measurements[i].Timestamp > end })
	if idx == 0 {
		return 0, false
	}
	return idx - 1, true
}

// MeasurementsIn returns the contiguous closed-interval slice [start, end] by
// timestamp. It returns nil if either bound falls entirely beyond the data,
// and an empty (non-nil) slice if the window straddles a gap between two
// measurements with nothing inside it.
func (d *Document) MeasurementsIn(start, end float64) []Measurement {
	ge, ok := d.firstIndexGE(start)
	if !ok {
		return nil
	}
	le, ok := d.lastIndexLE(end)
	if !ok {
		return nil
	}
	if ge > le {
		return []Measurement{}
	}
	return d.measurements[ge : le+1]
}

// OutOfBounds returns every measurement whose temperature lies strictly
// outside [Range.Lower, Range.Upper], computed once and cached thereafter.
// Concurrent first-callers are serialized so the computation runs exactly
// once.
func (d *Document) OutOfBounds() []Measurement {
	d.mu.RLock()
	if d.computed {
		result := d.outOfBounds
		d.mu.RUnlock()
		return result
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.computed { // re-check: another writer may have won the race
		return d.outOfBounds
	}

	var out []Measurement
	for _, m := range d.measurements {
		if m.Temperature < d.Range.LowerThreshold || m.Temperature > d.Range.UpperThreshold {
			out = append(out, m)
		}
	}
	d.outOfBounds = out
	d.computed = true
	return out
}
