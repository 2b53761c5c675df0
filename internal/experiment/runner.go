package experiment

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/landaudiogo/cc-assignment-2023/internal/broker"
	"github.com/landaudiogo/cc-assignment-2023/internal/envelope"
	"github.com/landaudiogo/cc-assignment-2023/internal/events"
	"github.com/landaudiogo/cc-assignment-2023/internal/store"
)

// stabilizationPause is the fixed delay between ExperimentConfigured and the
// first stabilization tick.
const stabilizationPause = 2 * time.Second

// Clock abstracts wall time so tests can control timestamps and avoid
// sleeping. now defaults to time.Now; sleep defaults to time.Sleep's
// context-aware equivalent.
type Clock struct {
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration)
}

func defaultClock() Clock {
	return Clock{
		Now: time.Now,
		Sleep: func(ctx context.Context, d time.Duration) {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-t.C:
			case <-ctx.Done():
			}
		},
	}
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// Runner drives one Configuration to completion, publishing events through
// producer and (optionally) recording ground truth through truth. A Runner is
// single-use: call Run once.
type Runner struct {
	Config   Configuration
	Producer broker.Producer
	Truth    store.GroundTruthRecorder // may be nil: persistence is optional
	Clock    Clock
	Rand     *rand.Rand
	Log      *logrus.Entry
}

// NewRunner builds a Runner with production defaults (real clock, package
// rand source, a logger scoped to the experiment ID).
func NewRunner(cfg Configuration, producer broker.Producer, truth store.GroundTruthRecorder) *Runner {
	return &Runner{
		Config:   cfg,
		Producer: producer,
		Truth:    truth,
		Clock:    defaultClock(),
		Log:      logrus.WithField("experiment_id", cfg.ExperimentID),
	}
}

// Run executes the full Configuration -> Stabilization -> CarryOut ->
// Terminated lifecycle. Any publish failure aborts the experiment and is
// returned to the caller.
func (r *Runner) Run(ctx context.Context) error {
	if r.Clock.Now == nil {
		r.Clock = defaultClock()
	}

	if r.Config.StartOffsetSeconds > 0 {
		r.Clock.Sleep(ctx, time.Duration(r.Config.StartOffsetSeconds)*time.Second)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	sample := &Sample{Current: r.Config.StartTemperature, Range: r.Config.Range}
	var measurements []events.DocumentMeasurement

	if err := r.emitConfigured(ctx); err != nil {
		return err
	}

	r.Clock.Sleep(ctx, stabilizationPause)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err := r.emitStabilizationStarted(ctx); err != nil {
		return err
	}
	ms, err := r.runStage(ctx, StageStabilization, sample, StabilizationSequence(sample, r.Config.StabilizationSamples))
	if err != nil {
		return err
	}
	measurements = append(measurements, ms...)

	if err := r.emitExperimentStarted(ctx); err != nil {
		return err
	}
	ms, err = r.runStage(ctx, StageCarryOut, sample, CarryOutSequence(sample, r.Config.CarryOutSamples, r.Rand))
	if err != nil {
		return err
	}
	measurements = append(measurements, ms...)

	if err := r.emitTerminated(ctx); err != nil {
		return err
	}

	if r.Config.TopicDocument != "" {
		if err := r.emitDocument(ctx, measurements); err != nil {
			return err
		}
	}

	return nil
}

// runStage walks seq tick by tick, emitting one SensorTemperatureMeasured per
// sensor per tick and returning the reduced document measurements for the
// caller to accumulate.
func (r *Runner) runStage(ctx context.Context, stage Stage, sample *Sample, seq *Sequence) ([]events.DocumentMeasurement, error) {
	var out []events.DocumentMeasurement
	var prev *Sample

	for {
		curr, ok := seq.Next()
		if !ok {
			return out, nil
		}
		if ctx.Err() != nil {
			return out, ctx.Err()
		}

		notifType := Classify(stage, prev, curr)
		prevCopy := curr
		prev = &prevCopy

		measurementID := uuid.New().String()
		timestamp := epochSeconds(r.Clock.Now())

		env, err := envelope.Encrypt(r.Config.SecretKey, envelope.HashData{
			NotificationType: notifType,
			Researcher:       r.Config.Researcher,
			ExperimentID:     r.Config.ExperimentID,
			MeasurementID:    measurementID,
			Timestamp:        timestamp,
		})
		if err != nil {
			return out, fmt.Errorf("experiment: encrypting envelope: %w", err)
		}

		sensorTemps := SensorTemperatures(r.Config.Sensors, curr.Current, r.Rand)

		tickStart := r.Clock.Now()
		if err := r.publishTick(ctx, measurementID, timestamp, env, sensorTemps); err != nil {
			return out, err
		}

		if notifType != envelope.NotificationNone && r.Truth != nil {
			if err := r.Truth.RecordGroundTruth(ctx, r.Config.ExperimentID, measurementID); err != nil {
				// Ground-truth persistence failures are logged but never
				// abort the experiment.
				r.Log.WithError(err).Warn("failed to record ground truth")
			}
		}

		out = append(out, events.DocumentMeasurement{Timestamp: timestamp, Temperature: curr.Current})

		elapsed := r.Clock.Now().Sub(tickStart)
		tickPeriod := time.Duration(r.Config.SampleRateMS) * time.Millisecond
		if remaining := tickPeriod - elapsed; remaining > 0 {
			// The tick period is a floor on publish latency, not additive to it.
			r.Clock.Sleep(ctx, remaining)
		}
	}
}

func (r *Runner) publishTick(ctx context.Context, measurementID string, timestamp float64, env string, sensorTemps map[string]float32) error {
	for _, sensor := range r.Config.Sensors {
		msg := events.SensorTemperatureMeasured{
			Experiment:      r.Config.ExperimentID,
			Sensor:          sensor,
			MeasurementID:   measurementID,
			Temperature:     sensorTemps[sensor],
			MeasurementHash: env,
			Timestamp:       timestamp,
		}
		payload, err := events.Marshal(msg)
		if err != nil {
			return fmt.Errorf("experiment: marshaling sensor event: %w", err)
		}
		err = r.Producer.Publish(ctx, broker.Message{
			Topic: r.Config.Topic,
			Key:   r.Config.ExperimentID,
			Headers: map[string]string{
				events.HeaderRecordName: string(events.RecordSensorTemperatureMeasured),
			},
			Value: payload,
		})
		if err != nil {
			return fmt.Errorf("experiment: publishing sensor event: %w", err)
		}
	}
	return nil
}

func (r *Runner) emitConfigured(ctx context.Context) error {
	msg := events.ExperimentConfigured{
		Experiment: r.Config.ExperimentID,
		Researcher: r.Config.Researcher,
		Sensors:    r.Config.Sensors,
		TemperatureRange: events.TemperatureRange{
			UpperThreshold: r.Config.Range.Upper,
			LowerThreshold: r.Config.Range.Lower,
		},
	}
	return r.publishStageEvent(ctx, events.RecordExperimentConfigured, msg)
}

func (r *Runner) emitStabilizationStarted(ctx context.Context) error {
	msg := events.StabilizationStarted{Experiment: r.Config.ExperimentID, Timestamp: epochSeconds(r.Clock.Now())}
	return r.publishStageEvent(ctx, events.RecordStabilizationStarted, msg)
}

func (r *Runner) emitExperimentStarted(ctx context.Context) error {
	msg := events.ExperimentStarted{Experiment: r.Config.ExperimentID, Timestamp: epochSeconds(r.Clock.Now())}
	return r.publishStageEvent(ctx, events.RecordExperimentStarted, msg)
}

func (r *Runner) emitTerminated(ctx context.Context) error {
	msg := events.ExperimentTerminated{Experiment: r.Config.ExperimentID, Timestamp: epochSeconds(r.Clock.Now())}
	return r.publishStageEvent(ctx, events.RecordExperimentTerminated, msg)
}

func (r *Runner) emitDocument(ctx context.Context, measurements []events.DocumentMeasurement) error {
	msg := events.ExperimentDocument{
		Experiment:   r.Config.ExperimentID,
		Measurements: measurements,
		TemperatureRange: events.TemperatureRange{
			UpperThreshold: r.Config.Range.Upper,
			LowerThreshold: r.Config.Range.Lower,
		},
	}
	return r.publishStageEvent(ctx, events.RecordExperimentDocument, msg)
}

func (r *Runner) publishStageEvent(ctx context.Context, record events.RecordName, msg any) error {
	payload, err := events.Marshal(msg)
	if err != nil {
		return fmt.Errorf("experiment: marshaling %s event: %w", record, err)
	}
	topic := r.Config.Topic
	if record == events.RecordExperimentDocument {
		topic = r.Config.TopicDocument
	}
	err = r.Producer.Publish(ctx, broker.Message{
		Topic:   topic,
		Key:     r.Config.ExperimentID,
		Headers: map[string]string{events.HeaderRecordName: string(record)},
		Value:   payload,
	})
	if err != nil {
		return fmt.Errorf("experiment: publishing %s event: %w", record, err)
	}
	return nil
}
