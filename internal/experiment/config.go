// Package experiment implements the stage-driven experiment simulator: a
// linear state machine that advances an experiment through Configuration,
// Stabilization, CarryOut and Terminated, emitting signed sensor readings at
// each tick.
package experiment

import (
	"fmt"

	"github.com/google/uuid"
)

// TemperatureRange is the immutable [lower, upper] band an experiment
// monitors. Construct it with NewTemperatureRange to enforce lower <= upper.
type TemperatureRange struct {
	Lower float32
	Upper float32
}

// NewTemperatureRange validates lower <= upper before returning a range,
// rejecting an inverted band.
func NewTemperatureRange(lower, upper float32) (TemperatureRange, error) {
	if lower > upper {
		return TemperatureRange{}, fmt.Errorf("experiment: invalid temperature range: lower %v > upper %v", lower, upper)
	}
	return TemperatureRange{Lower: lower, Upper: upper}, nil
}

// Midpoint returns the range's center, the stabilization sequence's target.
func (r TemperatureRange) Midpoint() float32 {
	return r.Lower + (r.Upper-r.Lower)/2
}

// Width returns upper - lower, the carry-out sequence's noise amplitude.
func (r TemperatureRange) Width() float32 {
	return r.Upper - r.Lower
}

// Configuration is the immutable description of one experiment run, supplied
// once at construction.
type Configuration struct {
	ExperimentID         string
	Researcher           string
	Sensors              []string
	SampleRateMS         uint64
	Range                TemperatureRange
	StabilizationSamples uint16
	CarryOutSamples      uint16
	SecretKey            []byte
	Topic                string
	// TopicDocument, if non-empty, is the topic ExperimentDocument is
	// published to at termination. Empty means no document is emitted.
	TopicDocument string
	// StartOffsetSeconds defers this experiment's first event, letting a
	// driver launch many experiments with staggered starts.
	StartOffsetSeconds uint32
	// StartTemperature seeds the initial sample, read from each experiment's
	// start_temperature field in the experiments file.
	StartTemperature float32
}

// Validate rejects configurations that could never run to completion: an
// empty sensor roster, or a zero sample count for either stage.
func (c Configuration) Validate() error {
	if _, err := uuid.Parse(c.ExperimentID); err != nil {
		return fmt.Errorf("experiment: experiment_id must be a valid UUID: %w", err)
	}
	if len(c.Sensors) == 0 {
		return fmt.Errorf("experiment: at least one sensor is required")
	}
	if c.StabilizationSamples == 0 {
		return fmt.Errorf("experiment: stabilization_samples must be > 0")
	}
	if c.CarryOutSamples == 0 {
		return fmt.Errorf("experiment: carry_out_samples must be > 0")
	}
	if len(c.SecretKey) == 0 {
		return fmt.Errorf("experiment: secret_key is required")
	}
	if c.Topic == "" {
		return fmt.Errorf("experiment: topic is required")
	}
	return nil
}
