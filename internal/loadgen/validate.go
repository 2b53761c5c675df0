package loadgen

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/landaudiogo/cc-assignment-2023/internal/cache"
)

// Tolerances for the float comparisons validate() performs against the
// document's own timestamps/temperatures.
const (
	timestampTolerance   = 1e-6
	temperatureTolerance = 1e-4
)

// wireMeasurement is the JSON shape both test-fixture endpoints respond
// with: a flat array of {timestamp, temperature}.
type wireMeasurement struct {
	Timestamp   float64 `json:"timestamp"`
	Temperature float32 `json:"temperature"`
}

// validate parses body per q.Kind, sorts it by timestamp, and compares it
// element-for-element against the document's own authoritative answer. Any
// mismatch -- length, order, or tolerance -- is a *ResponseError with Kind
// ResponseValidationError.
func validate(q Query, body []byte) error {
	var wire []wireMeasurement
	if err := json.Unmarshal(body, &wire); err != nil {
		return newResponseError(ResponseDeserializationError, fmt.Errorf("decoding response body: %w", err))
	}
	sort.Slice(wire, func(i, j int) bool { return wire[i].Timestamp < wire[j].Timestamp })

	var want []cache.Measurement
	switch q.Kind {
	case QueryTemperature:
		want = q.Doc.MeasurementsIn(q.Start, q.End)
	case QueryOutOfBounds:
		want = q.Doc.OutOfBounds()
	}

	if len(wire) != len(want) {
		return newResponseError(ResponseValidationError, fmt.Errorf("expected %d measurements, got %d", len(want), len(wire)))
	}
	for i := range want {
		if math.Abs(wire[i].Timestamp-want[i].Timestamp) > timestampTolerance {
			return newResponseError(ResponseValidationError, fmt.Errorf("measurement %d: timestamp %v != expected %v", i, wire[i].Timestamp, want[i].Timestamp))
		}
		if math.Abs(float64(wire[i].Temperature-want[i].Temperature)) > temperatureTolerance {
			return newResponseError(ResponseValidationError, fmt.Errorf("measurement %d: temperature %v != expected %v", i, wire[i].Temperature, want[i].Temperature))
		}
	}
	return nil
}
