// Package events defines the Avro-compatible, binary-encoded event schemas
// exchanged over the broker, and the header record names subscribers use to
// multiplex topics.
package events

import (
	"fmt"

	"github.com/hamba/avro/v2"
)

// RecordName values populate the broker message header that identifies an
// event's type for subscribers multiplexing several record kinds on one topic.
type RecordName string

const (
	RecordExperimentConfigured      RecordName = "experiment_configured"
	RecordStabilizationStarted      RecordName = "stabilization_started"
	RecordExperimentStarted         RecordName = "experiment_started"
	RecordExperimentTerminated      RecordName = "experiment_terminated"
	RecordSensorTemperatureMeasured RecordName = "sensor_temperature_measured"
	RecordExperimentDocument        RecordName = "experiment_document"
)

// HeaderRecordName is the broker message header key carrying a RecordName.
const HeaderRecordName = "record_name"

// TemperatureRange mirrors the wire shape `{upper_threshold, lower_threshold}`
// nested inside ExperimentConfigured and ExperimentDocument.
type TemperatureRange struct {
	UpperThreshold float32 `avro:"upper_threshold" json:"upper_threshold"`
	LowerThreshold float32 `avro:"lower_threshold" json:"lower_threshold"`
}

// ExperimentConfigured announces a new experiment and its sensor roster.
type ExperimentConfigured struct {
	Experiment       string           `avro:"experiment" json:"experiment"`
	Researcher       string           `avro:"researcher" json:"researcher"`
	Sensors          []string         `avro:"sensors" json:"sensors"`
	TemperatureRange TemperatureRange `avro:"temperature_range" json:"temperature_range"`
}

// StabilizationStarted marks the Configuration -> Stabilization transition.
type StabilizationStarted struct {
	Experiment string  `avro:"experiment" json:"experiment"`
	Timestamp  float64 `avro:"timestamp" json:"timestamp"`
}

// ExperimentStarted marks the Stabilization -> CarryOut transition.
type ExperimentStarted struct {
	Experiment string  `avro:"experiment" json:"experiment"`
	Timestamp  float64 `avro:"timestamp" json:"timestamp"`
}

// ExperimentTerminated marks the CarryOut -> Terminated transition.
type ExperimentTerminated struct {
	Experiment string  `avro:"experiment" json:"experiment"`
	Timestamp  float64 `avro:"timestamp" json:"timestamp"`
}

// SensorTemperatureMeasured carries one sensor's reading for one tick, signed
// by the shared envelope. Every sensor in an experiment gets its own event per
// tick, all carrying the same MeasurementHash.
type SensorTemperatureMeasured struct {
	Experiment      string  `avro:"experiment" json:"experiment"`
	Sensor          string  `avro:"sensor" json:"sensor"`
	MeasurementID   string  `avro:"measurement_id" json:"measurement_id"`
	Temperature     float32 `avro:"temperature" json:"temperature"`
	MeasurementHash string  `avro:"measurement_hash" json:"measurement_hash"`
	Timestamp       float64 `avro:"timestamp" json:"timestamp"`
}

// DocumentMeasurement is the reduced measurement shape carried by
// ExperimentDocument: just enough for the consumer side to rebuild range and
// out-of-bounds queries.
type DocumentMeasurement struct {
	Timestamp   float64 `avro:"timestamp" json:"timestamp"`
	Temperature float32 `avro:"temperature" json:"temperature"`
}

// ExperimentDocument is emitted once, at experiment termination, when the
// experiment's configuration declared a document topic.
type ExperimentDocument struct {
	Experiment       string                `avro:"experiment" json:"experiment"`
	Measurements     []DocumentMeasurement `avro:"measurements" json:"measurements"`
	TemperatureRange TemperatureRange      `avro:"temperature_range" json:"temperature_range"`
}

// temperatureRangeSchema is inlined into every schema that nests a range.
// Avro named types may only be declared once per schema document, so the two
// top-level records that embed it each carry their own copy.
const temperatureRangeSchema = `{
	"type": "record",
	"name": "temperature_range",
	"fields": [
		{"name": "upper_threshold", "type": "float"},
		{"name": "lower_threshold", "type": "float"}
	]
}`

var (
	schemaExperimentConfigured = avro.MustParse(`{
		"type": "record",
		"name": "experiment_configured",
		"fields": [
			{"name": "experiment", "type": "string"},
			{"name": "researcher", "type": "string"},
			{"name": "sensors", "type": {"type": "array", "items": "string"}},
			{"name": "temperature_range", "type": ` + temperatureRangeSchema + `}
		]
	}`)

	schemaStabilizationStarted = avro.MustParse(`{
		"type": "record",
		"name": "stabilization_started",
		"fields": [
			{"name": "experiment", "type": "string"},
			{"name": "timestamp", "type": "double"}
		]
	}`)

	schemaExperimentStarted = avro.MustParse(`{
		"type": "record",
		"name": "experiment_started",
		"fields": [
			{"name": "experiment", "type": "string"},
			{"name": "timestamp", "type": "double"}
		]
	}`)

	schemaExperimentTerminated = avro.MustParse(`{
		"type": "record",
		"name": "experiment_terminated",
		"fields": [
			{"name": "experiment", "type": "string"},
			{"name": "timestamp", "type": "double"}
		]
	}`)

	schemaSensorTemperatureMeasured = avro.MustParse(`{
		"type": "record",
		"name": "sensor_temperature_measured",
		"fields": [
			{"name": "experiment", "type": "string"},
			{"name": "sensor", "type": "string"},
			{"name": "measurement_id", "type": "string"},
			{"name": "temperature", "type": "float"},
			{"name": "measurement_hash", "type": "string"},
			{"name": "timestamp", "type": "double"}
		]
	}`)

	schemaExperimentDocument = avro.MustParse(`{
		"type": "record",
		"name": "experiment_document",
		"fields": [
			{"name": "experiment", "type": "string"},
			{"name": "measurements", "type": {"type": "array", "items": {
				"type": "record",
				"name": "measurement",
				"fields": [
					{"name": "timestamp", "type": "double"},
					{"name": "temperature", "type": "float"}
				]
			}}},
			{"name": "temperature_range", "type": ` + temperatureRangeSchema + `}
		]
	}`)
)

// Marshal binary-encodes an event using its Avro schema.
func Marshal(v any) ([]byte, error) {
	var schema avro.Schema
	switch v.(type) {
	case ExperimentConfigured, *ExperimentConfigured:
		schema = schemaExperimentConfigured
	case StabilizationStarted, *StabilizationStarted:
		schema = schemaStabilizationStarted
	case ExperimentStarted, *ExperimentStarted:
		schema = schemaExperimentStarted
	case ExperimentTerminated, *ExperimentTerminated:
		schema = schemaExperimentTerminated
	case SensorTemperatureMeasured, *SensorTemperatureMeasured:
		schema = schemaSensorTemperatureMeasured
	case ExperimentDocument, *ExperimentDocument:
		schema = schemaExperimentDocument
	default:
		return nil, fmt.Errorf("events: no avro schema registered for %T", v)
	}
	return avro.Marshal(schema, v)
}

// UnmarshalSensorTemperatureMeasured decodes a sensor_temperature_measured
// payload.
func UnmarshalSensorTemperatureMeasured(b []byte) (SensorTemperatureMeasured, error) {
	var v SensorTemperatureMeasured
	err := avro.Unmarshal(schemaSensorTemperatureMeasured, b, &v)
	return v, err
}

// UnmarshalExperimentDocument decodes an experiment_document payload.
func UnmarshalExperimentDocument(b []byte) (ExperimentDocument, error) {
	var v ExperimentDocument
	err := avro.Unmarshal(schemaExperimentDocument, b, &v)
	return v, err
}

// UnmarshalExperimentConfigured decodes an experiment_configured payload.
func UnmarshalExperimentConfigured(b []byte) (ExperimentConfigured, error) {
	var v ExperimentConfigured
	err := avro.Unmarshal(schemaExperimentConfigured, b, &v)
	return v, err
}
