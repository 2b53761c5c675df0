package cache

import (
	"math/rand"
	"sync"

	"github.com/landaudiogo/cc-assignment-2023/internal/events"
)

// Store is the shared, reader-writer-locked document set: dispatchers read
// concurrently, the ingest task writes infrequently.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]*Document
	ordered []*Document // preserves ingest order, for random selection

	// ready is closed the first time a document is ingested, so callers can
	// block until at least one document exists.
	readyOnce sync.Once
	ready     chan struct{}
}

// NewStore returns an empty document set.
func NewStore() *Store {
	return &Store{
		byID:  make(map[string]*Document),
		ready: make(chan struct{}),
	}
}

// Ingest converts an ExperimentDocument event into a Document and inserts it,
// sorting measurements ascending by timestamp. Re-ingesting the same
// experiment ID replaces the prior document.
func (s *Store) Ingest(doc events.ExperimentDocument) *Document {
	measurements := make([]Measurement, len(doc.Measurements))
	for i, m := range doc.Measurements {
		measurements[i] = Measurement{Timestamp: m.Timestamp, Temperature: m.Temperature}
	}
	d := NewDocument(doc.Experiment, measurements, doc.TemperatureRange)

	s.mu.Lock()
	if _, exists := s.byID[d.ExperimentID]; !exists {
		s.ordered = append(s.ordered, d)
	} else {
		for i, existing := range s.ordered {
			if existing.ExperimentID == d.ExperimentID {
				s.ordered[i] = d
				break
			}
		}
	}
	s.byID[d.ExperimentID] = d
	s.mu.Unlock()

	s.readyOnce.Do(func() { close(s.ready) })
	return d
}

// Ready returns a channel that is closed once at least one document has been
// ingested. The load generator blocks on this before issuing any load.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Get returns the document for experimentID, if present.
func (s *Store) Get(experimentID string) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.byID[experimentID]
	return d, ok
}

// Len returns the number of ingested documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ordered)
}

// RandomDocument returns a uniformly random document from the set, or false
// if the set is empty. rng is injectable for deterministic tests.
func (s *Store) RandomDocument(rng *rand.Rand) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.ordered) == 0 {
		return nil, false
	}
	var i int
	if rng != nil {
		i = rng.Intn(len(s.ordered))
	} else {
		i = rand.Intn(len(s.ordered))
	}
	return s.ordered[i], true
}
