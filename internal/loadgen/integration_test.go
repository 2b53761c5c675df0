package loadgen

import (
	"context"
	"math/rand"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landaudiogo/cc-assignment-2023/internal/cache"
	"github.com/landaudiogo/cc-assignment-2023/internal/events"
	"github.com/landaudiogo/cc-assignment-2023/internal/hostsfile"
	"github.com/landaudiogo/cc-assignment-2023/internal/metrics"
	"github.com/landaudiogo/cc-assignment-2023/internal/testfixture"
)

// TestDispatcherAgainstTestFixture exercises a full batch against the
// minimal target HTTP fixture: every query should validate cleanly since the
// fixture answers from the same document set the dispatcher validates
// against.
func TestDispatcherAgainstTestFixture(t *testing.T) {
	store := cache.NewStore()
	store.Ingest(events.ExperimentDocument{
		Experiment: "exp-1",
		Measurements: []events.DocumentMeasurement{
			{Timestamp: 1, Temperature: 26},
			{Timestamp: 2, Temperature: 100},
			{Timestamp: 3, Temperature: 26.2},
		},
		TemperatureRange: events.TemperatureRange{LowerThreshold: 25.5, UpperThreshold: 26.5},
	})

	srv := httptest.NewServer((&testfixture.Server{Store: store}).Handler())
	defer srv.Close()

	reg := metrics.New()
	lg := metrics.NewLoadGenMetrics(reg)
	d := &Dispatcher{
		Host:        hostsfile.Host{Name: "fixture", BaseURL: srv.URL},
		HTTPClient:  srv.Client(),
		MaxInFlight: 2,
		Retries:     0,
		Metrics:     lg,
	}

	rng := rand.New(rand.NewSource(7))
	batch := NewBatch(store, GeneratorConfig{MinBatchSize: 4, MaxBatchSize: 4}, rng)
	require.Len(t, batch, 4)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d.dispatchBatch(ctx, batch)

	total := 0.0
	for _, endpoint := range []string{"temperature", "out_of_bounds"} {
		total += testutil.ToFloat64(lg.ResponseCount.WithLabelValues("fixture", endpoint, "ok"))
	}
	assert.Equal(t, float64(len(batch)), total)
}
