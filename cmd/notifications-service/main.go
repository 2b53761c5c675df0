// Command notifications-service serves the notification verifier HTTP
// endpoint.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang-jwt/jwt/v5"
	flags "github.com/jessevdk/go-flags"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/landaudiogo/cc-assignment-2023/internal/config"
	"github.com/landaudiogo/cc-assignment-2023/internal/metrics"
	"github.com/landaudiogo/cc-assignment-2023/internal/store"
	"github.com/landaudiogo/cc-assignment-2023/internal/verifier"
)

// Config is the verifier's flag/env configuration.
type Config struct {
	Port         string `long:"port" env:"PORT" default:"8080" description:"port to serve POST /api/notify on"`
	SecretKey    string `long:"secret-key" env:"SECRET_KEY" required:"true" description:"shared envelope key"`
	PublicKeyPEM string `long:"public-key-file" env:"PUBLIC_KEY_FILE" description:"PEM-encoded RS256 public key used to verify bearer tokens"`

	Log         config.Log         `group:"Logging"`
	Diagnostics config.Diagnostics `group:"Diagnostics"`
}

func run(cfg *Config) error {
	config.Init(cfg.Log)

	reg := metrics.New()
	verifierMetrics := metrics.NewVerifierMetrics(reg)
	if cfg.Diagnostics.MetricsPort == "" {
		cfg.Diagnostics.MetricsPort = "3003"
	}
	cfg.Diagnostics.Serve(reg.Handler())

	var tokens *verifier.TokenVerifier
	if cfg.PublicKeyPEM != "" {
		raw, err := os.ReadFile(cfg.PublicKeyPEM)
		if err != nil {
			return fmt.Errorf("reading public key file: %w", err)
		}
		pub, err := jwt.ParseRSAPublicKeyFromPEM(raw)
		if err != nil {
			return fmt.Errorf("parsing public key: %w", err)
		}
		tokens = verifier.NewTokenVerifier(pub)
	}

	var recorder store.NotificationRecorder
	if url := os.Getenv("DATABASE_URL"); url != "" {
		db, err := sql.Open("postgres", url)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		pg, err := store.NewPostgres(db)
		if err != nil {
			return fmt.Errorf("constructing store: %w", err)
		}
		if err := pg.EnsureSchema(context.Background()); err != nil {
			return fmt.Errorf("ensuring schema: %w", err)
		}
		recorder = pg
	} else {
		logrus.Warn("DATABASE_URL not set; notifications will not be persisted")
	}

	h := &verifier.Handler{
		SecretKey: []byte(cfg.SecretKey),
		Tokens:    tokens,
		Store:     recorder,
		Metrics:   verifierMetrics,
		Log:       logrus.WithField("component", "notifications-service"),
	}

	mux := http.NewServeMux()
	mux.Handle("/api/notify", h)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux}

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-signalCh
		logrus.Info("caught signal, exiting immediately")
		os.Exit(1)
	}()

	logrus.WithField("port", cfg.Port).Info("serving notifications-service")
	return srv.ListenAndServe()
}

func main() {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		os.Exit(1)
	}
	if err := run(&cfg); err != nil {
		logrus.WithError(err).Fatal("notifications-service failed")
	}
}
