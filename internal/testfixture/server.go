// Package testfixture implements a minimal stand-in for a query target
// server. It exists solely so the load generator's validation logic has
// something real to exercise in tests; it is never wired into a production
// cmd/ binary.
package testfixture

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/landaudiogo/cc-assignment-2023/internal/cache"
)

// wireMeasurement mirrors the JSON both endpoints respond with.
type wireMeasurement struct {
	Timestamp   float64 `json:"timestamp"`
	Temperature float32 `json:"temperature"`
}

// Server answers GET /temperature and GET /temperature/out-of-bounds against
// an in-memory document set, the same shape the load generator validates
// responses against.
type Server struct {
	Store *cache.Store
}

// Handler returns the fixture's net/http handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/temperature/out-of-bounds", s.handleOutOfBounds)
	mux.HandleFunc("/temperature", s.handleTemperature)
	return mux
}

func (s *Server) handleTemperature(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.Store.Get(r.URL.Query().Get("experiment-id"))
	if !ok {
		http.Error(w, "unknown experiment-id", http.StatusNotFound)
		return
	}
	start, err := strconv.ParseFloat(r.URL.Query().Get("start-time"), 64)
	if err != nil {
		http.Error(w, "invalid start-time", http.StatusBadRequest)
		return
	}
	end, err := strconv.ParseFloat(r.URL.Query().Get("end-time"), 64)
	if err != nil {
		http.Error(w, "invalid end-time", http.StatusBadRequest)
		return
	}
	writeMeasurements(w, doc.MeasurementsIn(start, end))
}

func (s *Server) handleOutOfBounds(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.Store.Get(r.URL.Query().Get("experiment-id"))
	if !ok {
		http.Error(w, "unknown experiment-id", http.StatusNotFound)
		return
	}
	writeMeasurements(w, doc.OutOfBounds())
}

func writeMeasurements(w http.ResponseWriter, ms []cache.Measurement) {
	wire := make([]wireMeasurement, len(ms))
	for i, m := range ms {
		wire[i] = wireMeasurement{Timestamp: m.Timestamp, Temperature: m.Temperature}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(wire)
}
