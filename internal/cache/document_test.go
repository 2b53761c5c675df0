package cache

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/landaudiogo/cc-assignment-2023/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rng25to265() events.TemperatureRange {
	return events.TemperatureRange{LowerThreshold: 25.5, UpperThreshold: 26.5}
}

func TestNewDocumentSortsMeasurementsAscending(t *testing.T) {
	d := NewDocument("exp-1", []Measurement{
		{Timestamp: 0.0021, Temperature: 1},
		{Timestamp: 0.0001, Temperature: 2},
		{Timestamp: 0.0011, Temperature: 3},
	}, rng25to265())

	ms := d.Measurements()
	require.Len(t, ms, 3)
	assert.Equal(t, 0.0001, ms[0].Timestamp)
	assert.Equal(t, 0.0011, ms[1].Timestamp)
	assert.Equal(t, 0.0021, ms[2].Timestamp)
}

func TestMeasurementsInReturnsClosedWindow(t *testing.T) {
	// timestamps {0.0001, 0.0011, 0.0021, 0.0031}, query (0.001, 5.0) ->
	// the last three measurements in order.
	d := NewDocument("exp-1", []Measurement{
		{Timestamp: 0.0001, Temperature: 1},
		{Timestamp: 0.0011, Temperature: 2},
		{Timestamp: 0.0021, Temperature: 3},
		{Timestamp: 0.0031, Temperature: 4},
	}, rng25to265())

	got := d.MeasurementsIn(0.001, 5.0)
	require.Len(t, got, 3)
	assert.Equal(t, 0.0011, got[0].Timestamp)
	assert.Equal(t, 0.0021, got[1].Timestamp)
	assert.Equal(t, 0.0031, got[2].Timestamp)
}

func TestMeasurementsInReturnsNilWhenStartExceedsMax(t *testing.T) {
	d := NewDocument("exp-1", []Measurement{{Timestamp: 1, Temperature: 1}}, rng25to265())
	assert.Nil(t, d.MeasurementsIn(5, 10))
}

func TestMeasurementsInReturnsNilWhenEndPrecedesMin(t *testing.T) {
	d := NewDocument("exp-1", []Measurement{{Timestamp: 5, Temperature: 1}}, rng25to265())
	assert.Nil(t, d.MeasurementsIn(0, 1))
}

func TestMeasurementsInReturnsEmptySliceForGapStraddlingWindow(t *testing.T) {
	d := NewDocument("exp-1", []Measurement{
		{Timestamp: 1, Temperature: 1},
		{Timestamp: 10, Temperature: 2},
	}, rng25to265())

	got := d.MeasurementsIn(3, 7)
	assert.NotNil(t, got)
	assert.Len(t, got, 0)
}

func TestOutOfBoundsFiltersStrictlyOutsideRange(t *testing.T) {
	d := NewDocument("exp-1", []Measurement{
		{Timestamp: 1, Temperature: 25.5}, // boundary: in range
		{Timestamp: 2, Temperature: 26.5}, // boundary: in range
		{Timestamp: 3, Temperature: 10.0}, // below
		{Timestamp: 4, Temperature: 40.0}, // above
	}, rng25to265())

	oob := d.OutOfBounds()
	require.Len(t, oob, 2)
	assert.Equal(t, float32(10.0), oob[0].Temperature)
	assert.Equal(t, float32(40.0), oob[1].Temperature)
}

func TestOutOfBoundsIsComputedExactlyOnce(t *testing.T) {
	d := NewDocument("exp-1", []Measurement{{Timestamp: 1, Temperature: 10.0}}, rng25to265())

	first := d.OutOfBounds()
	second := d.OutOfBounds()
	assert.Equal(t, first, second)

	// mutate the cache directly to prove OutOfBounds never recomputes
	d.mu.Lock()
	d.outOfBounds = append(d.outOfBounds, Measurement{Timestamp: 99, Temperature: 1})
	d.mu.Unlock()

	third := d.OutOfBounds()
	assert.Len(t, third, 2)
}

func TestOutOfBoundsConcurrentFirstCallersComputeOnce(t *testing.T) {
	d := NewDocument("exp-1", []Measurement{
		{Timestamp: 1, Temperature: 10.0},
		{Timestamp: 2, Temperature: 26.0},
	}, rng25to265())

	var wg sync.WaitGroup
	results := make([][]Measurement, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = d.OutOfBounds()
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Len(t, r, 1)
	}
}

func TestStoreIngestSortsAndSignalsReady(t *testing.T) {
	s := NewStore()
	select {
	case <-s.Ready():
		t.Fatal("store should not be ready before any ingest")
	default:
	}

	s.Ingest(events.ExperimentDocument{
		Experiment: "exp-1",
		Measurements: []events.DocumentMeasurement{
			{Timestamp: 2, Temperature: 1},
			{Timestamp: 1, Temperature: 2},
		},
		TemperatureRange: events.TemperatureRange{LowerThreshold: 0, UpperThreshold: 10},
	})

	<-s.Ready()
	d, ok := s.Get("exp-1")
	require.True(t, ok)
	assert.Equal(t, float64(1), d.Measurements()[0].Timestamp)
	assert.Equal(t, 1, s.Len())
}

func TestStoreRandomDocumentDistributesAcrossDocuments(t *testing.T) {
	s := NewStore()
	for i := 0; i < 5; i++ {
		s.Ingest(events.ExperimentDocument{Experiment: string(rune('a' + i))})
	}

	seen := make(map[string]int64)
	var mu sync.Mutex
	var wg sync.WaitGroup
	var total int64
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, ok := s.RandomDocument(nil)
			require.True(t, ok)
			mu.Lock()
			seen[d.ExperimentID]++
			mu.Unlock()
			atomic.AddInt64(&total, 1)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 200, total)
	assert.NotEmpty(t, seen)
	assert.Greater(t, len(seen), 1)
}
