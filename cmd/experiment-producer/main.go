// Command experiment-producer drives the experiment runner: it loads a
// roster of experiment configurations and runs each one concurrently against
// a Kafka-compatible broker, optionally recording ground truth to Postgres.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	flags "github.com/jessevdk/go-flags"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/landaudiogo/cc-assignment-2023/internal/broker"
	"github.com/landaudiogo/cc-assignment-2023/internal/config"
	"github.com/landaudiogo/cc-assignment-2023/internal/experiment"
	"github.com/landaudiogo/cc-assignment-2023/internal/metrics"
	"github.com/landaudiogo/cc-assignment-2023/internal/store"
)

// Config is the experiment producer's top-level flag/env configuration,
// composed of nested Log/Diagnostics groups.
type Config struct {
	Brokers         []string `long:"brokers" env:"BROKERS" env-delim:"," required:"true" description:"broker addresses"`
	Topic           string   `long:"topic" env:"TOPIC" required:"true" description:"topic sensor readings are published to"`
	TopicDocument   string   `long:"topic-document" env:"TOPIC_DOCUMENT" description:"topic experiment documents are published to; empty disables documents"`
	ExperimentsFile string   `long:"experiments-file" env:"EXPERIMENTS_FILE" required:"true" description:"YAML file describing experiments to run"`

	Log         config.Log         `group:"Logging"`
	Diagnostics config.Diagnostics `group:"Diagnostics"`
}

// experimentsFile is the --experiments-file YAML shape: a shared secret key
// plus a roster of per-experiment fields.
type experimentsFile struct {
	SecretKey   string           `yaml:"secret_key"`
	Experiments []experimentYAML `yaml:"experiments"`
}

type experimentYAML struct {
	ExperimentID         string   `yaml:"experiment_id"`
	Researcher           string   `yaml:"researcher"`
	Sensors              []string `yaml:"sensors"`
	SampleRateMS         uint64   `yaml:"sample_rate_ms"`
	LowerThreshold       float32  `yaml:"lower_threshold"`
	UpperThreshold       float32  `yaml:"upper_threshold"`
	StabilizationSamples uint16   `yaml:"stabilization_samples"`
	CarryOutSamples      uint16   `yaml:"carry_out_samples"`
	StartTemperature     float32  `yaml:"start_temperature"`
	StartOffsetSeconds   uint32   `yaml:"start_offset_seconds"`
}

func loadExperiments(path, topic, topicDocument string) ([]experiment.Configuration, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading experiments file: %w", err)
	}
	var f experimentsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing experiments file: %w", err)
	}
	if len(f.SecretKey) == 0 {
		return nil, fmt.Errorf("experiments file is missing secret_key")
	}

	configs := make([]experiment.Configuration, 0, len(f.Experiments))
	for _, e := range f.Experiments {
		rng, err := experiment.NewTemperatureRange(e.LowerThreshold, e.UpperThreshold)
		if err != nil {
			return nil, fmt.Errorf("experiment %s: %w", e.ExperimentID, err)
		}
		cfg := experiment.Configuration{
			ExperimentID:         e.ExperimentID,
			Researcher:           e.Researcher,
			Sensors:              e.Sensors,
			SampleRateMS:         e.SampleRateMS,
			Range:                rng,
			StabilizationSamples: e.StabilizationSamples,
			CarryOutSamples:      e.CarryOutSamples,
			SecretKey:            []byte(f.SecretKey),
			Topic:                topic,
			TopicDocument:        topicDocument,
			StartOffsetSeconds:   e.StartOffsetSeconds,
			StartTemperature:     e.StartTemperature,
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("experiment %s: %w", e.ExperimentID, err)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

func run(cfg *Config) error {
	config.Init(cfg.Log)

	experiments, err := loadExperiments(cfg.ExperimentsFile, cfg.Topic, cfg.TopicDocument)
	if err != nil {
		return err
	}

	reg := metrics.New()
	producerMetrics := metrics.NewProducerMetrics(reg)
	if cfg.Diagnostics.MetricsPort == "" {
		cfg.Diagnostics.MetricsPort = "3001"
	}
	cfg.Diagnostics.Serve(reg.Handler())

	var truth store.GroundTruthRecorder
	if url := os.Getenv("DATABASE_URL"); url != "" {
		db, err := sql.Open("postgres", url)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		pg, err := store.NewPostgres(db)
		if err != nil {
			return fmt.Errorf("constructing store: %w", err)
		}
		ctx := context.Background()
		if err := pg.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensuring schema: %w", err)
		}
		truth = pg
	} else {
		logrus.Warn("DATABASE_URL not set; ground truth will not be persisted")
		truth = store.NewMemory()
	}

	producer := broker.NewKafkaProducer(cfg.Brokers)
	defer producer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-signalCh
		logrus.Info("caught signal, exiting immediately")
		os.Exit(1) // no graceful drain
	}()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error
	for _, expCfg := range experiments {
		expCfg := expCfg
		runner := experiment.NewRunner(expCfg, countingProducer{producer, producerMetrics}, truth)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := runner.Run(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("experiment %s: %w", expCfg.ExperimentID, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return errors.Join(errs...)
}

// countingProducer wraps a broker.Producer to increment event_count{key,
// topic} on every successful publish, without complicating experiment.Runner
// with a metrics dependency of its own.
type countingProducer struct {
	broker.Producer
	metrics *metrics.ProducerMetrics
}

func (p countingProducer) Publish(ctx context.Context, msg broker.Message) error {
	if err := p.Producer.Publish(ctx, msg); err != nil {
		return err
	}
	p.metrics.EventCount.WithLabelValues(msg.Key, msg.Topic).Inc()
	return nil
}

func main() {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		os.Exit(1)
	}
	if err := run(&cfg); err != nil {
		logrus.WithError(err).Fatal("experiment-producer failed")
	}
}
