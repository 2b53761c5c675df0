// Command notifier drives the notifier forwarder: it consumes the sensor
// event stream and forwards decrypted notifications to the verifier.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	flags "github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"

	"github.com/landaudiogo/cc-assignment-2023/internal/broker"
	"github.com/landaudiogo/cc-assignment-2023/internal/config"
	"github.com/landaudiogo/cc-assignment-2023/internal/notify"
)

// Config is the notifier forwarder's flag/env configuration.
type Config struct {
	Brokers     []string `long:"brokers" env:"BROKERS" env-delim:"," required:"true" description:"broker addresses"`
	Topic       string   `long:"topic" env:"TOPIC" required:"true" description:"topic sensor readings are consumed from"`
	GroupID     string   `long:"group-id" env:"GROUP_ID" required:"true" description:"consumer group id"`
	SecretKey   string   `long:"secret-key" env:"SECRET_KEY" required:"true" description:"shared envelope key"`
	VerifierURL string   `long:"verifier-url" env:"VERIFIER_URL" required:"true" description:"base URL of the notification verifier"`
	Token       string   `long:"token" env:"TOKEN" description:"bearer token forwarded as ?token="`

	Log config.Log `group:"Logging"`
}

func run(cfg *Config) error {
	config.Init(cfg.Log)

	consumer := broker.NewKafkaConsumer(cfg.Brokers, cfg.GroupID, cfg.Topic)
	defer consumer.Close()

	f := &notify.Forwarder{
		SecretKey:   []byte(cfg.SecretKey),
		VerifierURL: cfg.VerifierURL,
		Token:       cfg.Token,
		Log:         logrus.WithField("component", "notifier"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-signalCh
		logrus.Info("caught signal, exiting immediately")
		os.Exit(1)
	}()

	return f.Run(ctx, consumer)
}

func main() {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		os.Exit(1)
	}
	if err := run(&cfg); err != nil {
		logrus.WithError(err).Fatal("notifier failed")
	}
}
