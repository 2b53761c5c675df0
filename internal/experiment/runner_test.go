package experiment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landaudiogo/cc-assignment-2023/internal/broker"
	"github.com/landaudiogo/cc-assignment-2023/internal/events"
	"github.com/landaudiogo/cc-assignment-2023/internal/store"
)

// instantClock never actually sleeps, so Run() completes immediately in tests.
func instantClock() Clock {
	var t time.Time
	return Clock{
		Now: func() time.Time {
			t = t.Add(time.Millisecond)
			return t
		},
		Sleep: func(ctx context.Context, d time.Duration) {},
	}
}

func testConfig(t *testing.T) Configuration {
	rng, err := NewTemperatureRange(25.5, 26.5)
	require.NoError(t, err)
	return Configuration{
		ExperimentID:         uuid.New().String(),
		Researcher:           "d.landau@uu.nl",
		Sensors:              []string{"s1", "s2", "s3"},
		SampleRateMS:         0,
		Range:                rng,
		StabilizationSamples: 2,
		CarryOutSamples:      3,
		SecretKey:            []byte("QJUHsPhnA0eiqHuJqsPgzhDozYO4f1zh"),
		Topic:                "experiment",
		TopicDocument:        "experiment-document",
		StartTemperature:     6.0,
	}
}

func TestRunnerEmitsFullLifecycle(t *testing.T) {
	cfg := testConfig(t)
	mem := broker.NewMemory()
	sub := mem.Subscribe(cfg.Topic)
	docSub := mem.Subscribe(cfg.TopicDocument)

	truth := store.NewMemory()
	r := NewRunner(cfg, mem, truth)
	r.Clock = instantClock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	var mu sync.Mutex
	var recordNames []string
	var document *events.ExperimentDocument

	collectCtx, collectCancel := context.WithCancel(context.Background())
	var collectors sync.WaitGroup
	collectors.Add(2)
	go func() {
		defer collectors.Done()
		_ = sub.Consume(collectCtx, func(m broker.ConsumedMessage) error {
			mu.Lock()
			recordNames = append(recordNames, m.Headers[events.HeaderRecordName])
			mu.Unlock()
			return nil
		})
	}()
	go func() {
		defer collectors.Done()
		_ = docSub.Consume(collectCtx, func(m broker.ConsumedMessage) error {
			doc, err := events.UnmarshalExperimentDocument(m.Value)
			if err != nil {
				return err
			}
			mu.Lock()
			document = &doc
			mu.Unlock()
			return nil
		})
	}()

	require.NoError(t, <-done)

	wantSensorEvents := len(cfg.Sensors) * (int(cfg.StabilizationSamples) + int(cfg.CarryOutSamples))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		sensorEvents := 0
		for _, n := range recordNames {
			if n == string(events.RecordSensorTemperatureMeasured) {
				sensorEvents++
			}
		}
		return sensorEvents == wantSensorEvents && document != nil
	}, time.Second, time.Millisecond)

	collectCancel()
	collectors.Wait()

	require.NotNil(t, document)
	assert.Len(t, document.Measurements, int(cfg.StabilizationSamples)+int(cfg.CarryOutSamples))

	assert.Contains(t, recordNames, string(events.RecordExperimentConfigured))
	assert.Contains(t, recordNames, string(events.RecordStabilizationStarted))
	assert.Contains(t, recordNames, string(events.RecordExperimentStarted))
	assert.Contains(t, recordNames, string(events.RecordExperimentTerminated))
}

func TestRunnerAbortsOnPublishFailure(t *testing.T) {
	cfg := testConfig(t)
	mem := broker.NewMemory()
	require.NoError(t, mem.Close()) // subsequent publishes fail

	r := NewRunner(cfg, mem, nil)
	r.Clock = instantClock()

	err := r.Run(context.Background())
	assert.Error(t, err)
}

func TestConfigurationValidateRejectsEmptySensors(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sensors = nil
	assert.Error(t, cfg.Validate())
}

func TestConfigurationValidateRejectsZeroSamples(t *testing.T) {
	cfg := testConfig(t)
	cfg.StabilizationSamples = 0
	assert.Error(t, cfg.Validate())

	cfg = testConfig(t)
	cfg.CarryOutSamples = 0
	assert.Error(t, cfg.Validate())
}
