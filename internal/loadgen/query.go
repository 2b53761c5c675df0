// Package loadgen implements the load generator core: ingest of
// ExperimentDocuments, once-a-second batch generation, per-host
// bounded-concurrency dispatch with retry, and response validation against
// the cache's own range/out-of-bounds queries.
package loadgen

import (
	"math"
	"math/rand"

	"github.com/landaudiogo/cc-assignment-2023/internal/cache"
)

// QueryKind distinguishes the two query variants.
type QueryKind int

const (
	QueryTemperature QueryKind = iota
	QueryOutOfBounds
)

func (k QueryKind) String() string {
	if k == QueryOutOfBounds {
		return "out_of_bounds"
	}
	return "temperature"
}

// Query is a tagged-union value: a Temperature query carries a closed
// timestamp window; an OutOfBounds query carries only the document. Both
// hold a shared, read-only handle to the document they're drawn from, never
// a back-reference the other direction.
type Query struct {
	Kind  QueryKind
	Doc   *cache.Document
	Start float64 // only meaningful when Kind == QueryTemperature
	End   float64
}

// Batch is the ordered sequence of queries produced atomically once per second.
type Batch []Query

// GeneratorConfig bounds batch size per epoch.
type GeneratorConfig struct {
	MinBatchSize int
	MaxBatchSize int
}

// NewBatch builds one epoch's batch by repeatedly drawing a random document
// and query shape from store. rng is injectable for deterministic tests.
// Docs with fewer than two measurements can't produce a Temperature window
// and fall back to OutOfBounds.
func NewBatch(store *cache.Store, cfg GeneratorConfig, rng *rand.Rand) Batch {
	size := cfg.MinBatchSize
	if cfg.MaxBatchSize > cfg.MinBatchSize {
		size += randIntn(rng, cfg.MaxBatchSize-cfg.MinBatchSize+1)
	}

	batch := make(Batch, 0, size)
	for i := 0; i < size; i++ {
		doc, ok := store.RandomDocument(rng)
		if !ok {
			break
		}
		batch = append(batch, randomQuery(doc, rng))
	}
	return batch
}

func randomQuery(doc *cache.Document, rng *rand.Rand) Query {
	measurements := doc.Measurements()
	if len(measurements) < 2 || randBool(rng) {
		return Query{Kind: QueryOutOfBounds, Doc: doc}
	}

	n := len(measurements)
	i := randIntn(rng, n)
	j := randIntn(rng, n)
	if i > j {
		i, j = j, i
	}
	start := math.Floor(measurements[i].Timestamp*1000) / 1000
	end := math.Ceil(measurements[j].Timestamp*1000) / 1000
	return Query{Kind: QueryTemperature, Doc: doc, Start: start, End: end}
}

func randIntn(rng *rand.Rand, n int) int {
	if n <= 0 {
		return 0
	}
	if rng != nil {
		return rng.Intn(n)
	}
	return rand.Intn(n)
}

func randBool(rng *rand.Rand) bool {
	if rng != nil {
		return rng.Intn(2) == 0
	}
	return rand.Intn(2) == 0
}
