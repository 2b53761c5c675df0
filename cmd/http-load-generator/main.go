// Command http-load-generator drives the load generator core: ingest of
// ExperimentDocuments, once-a-second batch generation, and per-host
// bounded-concurrency dispatch with retry and response validation.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	flags "github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/landaudiogo/cc-assignment-2023/internal/broker"
	"github.com/landaudiogo/cc-assignment-2023/internal/cache"
	"github.com/landaudiogo/cc-assignment-2023/internal/config"
	"github.com/landaudiogo/cc-assignment-2023/internal/hostsfile"
	"github.com/landaudiogo/cc-assignment-2023/internal/loadgen"
	"github.com/landaudiogo/cc-assignment-2023/internal/metrics"
)

// Config is the load generator's CLI surface: --brokers, --topic,
// --group-id, --hosts-file required; the rest optional.
type Config struct {
	Brokers   []string `long:"brokers" env:"BROKERS" env-delim:"," required:"true" description:"broker addresses"`
	Topic     string   `long:"topic" env:"TOPIC" required:"true" description:"topic experiment documents are consumed from"`
	GroupID   string   `long:"group-id" env:"GROUP_ID" required:"true" description:"consumer group id"`
	HostsFile string   `long:"hosts-file" env:"HOSTS_FILE" required:"true" description:"YAML file listing target hosts"`

	ConsumerWaitBeforeSend time.Duration `long:"consumer-wait-before-send" env:"CONSUMER_WAIT_BEFORE_SEND" default:"0s" description:"extra delay after the first document before issuing load"`
	RequestorLag           time.Duration `long:"requestor-lag" env:"REQUESTOR_LAG" default:"0s" description:"per-dispatcher startup lag"`
	RequestorRetries       int           `long:"requestor-retries" env:"REQUESTOR_RETRIES" default:"2" description:"retries for ServerError responses"`
	RequestorMaxInFlight   int           `long:"requestor-max-in-flight" env:"REQUESTOR_MAX_IN_FLIGHT" default:"16" description:"max in-flight requests per dispatcher"`
	MinBatchSize           int           `long:"min-batch-size" env:"MIN_BATCH_SIZE" default:"1" description:"minimum queries per batch"`
	MaxBatchSize           int           `long:"max-batch-size" env:"MAX_BATCH_SIZE" default:"10" description:"maximum queries per batch"`
	StableRateDuration     time.Duration `long:"stable-rate-duration" env:"STABLE_RATE_DURATION" default:"0s" description:"bound on how long to generate load for; 0 means until signaled"`

	Log         config.Log         `group:"Logging"`
	Diagnostics config.Diagnostics `group:"Diagnostics"`
}

func run(cfg *Config) error {
	config.Init(cfg.Log)

	hosts, err := hostsfile.Load(cfg.HostsFile)
	if err != nil {
		return err
	}

	reg := metrics.New()
	loadgenMetrics := metrics.NewLoadGenMetrics(reg)
	if cfg.Diagnostics.MetricsPort == "" {
		cfg.Diagnostics.MetricsPort = "3002"
	}
	cfg.Diagnostics.Serve(reg.Handler())

	store := cache.NewStore()
	consumer := broker.NewKafkaConsumer(cfg.Brokers, cfg.GroupID, cfg.Topic)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-signalCh
		logrus.Info("caught signal, exiting immediately")
		os.Exit(1)
	}()

	grp, ctx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		return cache.RunIngest(ctx, consumer, store, logrus.WithField("component", "ingest"))
	})

	broadcaster := loadgen.NewBroadcaster()
	subscriptions := make([]<-chan loadgen.Batch, len(hosts))
	for i, h := range hosts {
		subscriptions[i] = broadcaster.Subscribe()
		h := h
		batches := subscriptions[i]
		grp.Go(func() error {
			d := &loadgen.Dispatcher{
				Host:        h,
				MaxInFlight: cfg.RequestorMaxInFlight,
				Retries:     cfg.RequestorRetries,
				LagSeconds:  cfg.RequestorLag,
				Metrics:     loadgenMetrics,
				Log:         logrus.WithField("host", h.Name),
			}
			return d.Run(ctx, batches)
		})
	}

	grp.Go(func() error {
		select {
		case <-store.Ready():
		case <-ctx.Done():
			return ctx.Err()
		}
		if cfg.ConsumerWaitBeforeSend > 0 {
			t := time.NewTimer(cfg.ConsumerWaitBeforeSend)
			defer t.Stop()
			select {
			case <-t.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		g := &loadgen.Generator{
			Store:              store,
			Config:             loadgen.GeneratorConfig{MinBatchSize: cfg.MinBatchSize, MaxBatchSize: cfg.MaxBatchSize},
			Broadcaster:        broadcaster,
			StableRateDuration: cfg.StableRateDuration,
		}
		return g.Run(ctx)
	})

	return grp.Wait()
}

func main() {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		os.Exit(1)
	}
	if err := run(&cfg); err != nil {
		logrus.WithError(err).Fatal("http-load-generator failed")
	}
}
