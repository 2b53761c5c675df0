package testfixture

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landaudiogo/cc-assignment-2023/internal/cache"
	"github.com/landaudiogo/cc-assignment-2023/internal/events"
)

func TestHandleTemperatureReturnsWindow(t *testing.T) {
	store := cache.NewStore()
	store.Ingest(events.ExperimentDocument{
		Experiment: "exp-1",
		Measurements: []events.DocumentMeasurement{
			{Timestamp: 1, Temperature: 26},
			{Timestamp: 2, Temperature: 27},
			{Timestamp: 3, Temperature: 100},
		},
		TemperatureRange: events.TemperatureRange{LowerThreshold: 25.5, UpperThreshold: 26.5},
	})

	srv := httptest.NewServer((&Server{Store: store}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/temperature?experiment-id=exp-1&start-time=1&end-time=2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []wireMeasurement
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, float64(1), got[0].Timestamp)
	assert.Equal(t, float64(2), got[1].Timestamp)
}

func TestHandleOutOfBoundsReturnsCachedSet(t *testing.T) {
	store := cache.NewStore()
	store.Ingest(events.ExperimentDocument{
		Experiment: "exp-1",
		Measurements: []events.DocumentMeasurement{
			{Timestamp: 1, Temperature: 26},
			{Timestamp: 2, Temperature: 100},
		},
		TemperatureRange: events.TemperatureRange{LowerThreshold: 25.5, UpperThreshold: 26.5},
	})

	srv := httptest.NewServer((&Server{Store: store}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/temperature/out-of-bounds?experiment-id=exp-1")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got []wireMeasurement
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, float32(100), got[0].Temperature)
}

func TestHandleUnknownExperimentIsNotFound(t *testing.T) {
	store := cache.NewStore()
	srv := httptest.NewServer((&Server{Store: store}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/temperature/out-of-bounds?experiment-id=missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
