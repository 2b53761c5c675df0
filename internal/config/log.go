// Package config holds the CLI configuration groups shared across every
// cmd/* binary: logging and metrics diagnostics. Each binary composes these
// into its own top-level Config struct from nested flag groups.
package config

import (
	"net/http"

	"github.com/sirupsen/logrus"
)

// Log configures the process-wide logrus logger: level and output format.
type Log struct {
	Level  string `long:"log.level" env:"LOG_LEVEL" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error" choice:"fatal" description:"Logging level"`
	Format string `long:"log.format" env:"LOG_FORMAT" default:"text" choice:"json" choice:"text" choice:"color" description:"Logging output format"`
}

// Init configures the shared logrus logger from cfg. Every main.go calls
// this before doing anything else.
func Init(cfg Log) {
	switch cfg.Format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "color":
		logrus.SetFormatter(&logrus.TextFormatter{ForceColors: true})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{})
	}

	lvl, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.WithField("err", err).Fatal("unrecognized log level")
	}
	logrus.SetLevel(lvl)
}

// Diagnostics configures the process's /metrics exposition port: a fixed
// port per service, served over plain HTTP. Each binary fills in its own
// service-specific port after parsing flags when none was given.
type Diagnostics struct {
	MetricsPort string `long:"diagnostics.metrics-port" env:"METRICS_PORT" description:"port to serve GET /metrics on"`
}

// Serve starts an HTTP server exposing handler at GET /metrics on cfg's
// configured port. It runs in its own goroutine; a listener failure is
// logged and the rest of the process keeps running.
func (d Diagnostics) Serve(handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	addr := ":" + d.MetricsPort
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logrus.WithError(err).WithField("addr", addr).Error("metrics server stopped")
		}
	}()
}
