// Package store implements the two append-only, "on conflict do nothing"
// tables the pipeline persists to: the ground-truth set the runner writes,
// and the accepted-notification set the verifier writes. Persistence is a
// side channel everywhere: callers log and swallow errors rather than let a
// database hiccup interrupt the pipeline.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput indicates a caller passed invalid arguments.
var ErrInvalidInput = errors.New("store: invalid input")

// ErrDB wraps a database-layer failure.
var ErrDB = errors.New("store: db error")

// GroundTruthRecorder is implemented by anything that can record that a
// notification was generated for a measurement. The Experiment Runner holds
// one of these and treats nil as a no-op; when no DATABASE_URL is
// configured, experiment-producer hands it an in-process Memory instead.
type GroundTruthRecorder interface {
	RecordGroundTruth(ctx context.Context, experimentID, measurementID string) error
}

// NotificationRecorder is implemented by anything that can upsert an accepted
// notification's latency. The Verifier holds one of these.
type NotificationRecorder interface {
	RecordNotification(ctx context.Context, experimentID, measurementID, groupID string, latencySeconds float64) error
}

// Postgres is a lib/pq-backed implementation of both recorder interfaces,
// following Ap3pp3rs94-Chartly2.0's relational.PostgresStore shape: an
// injected *sql.DB, an idempotent EnsureSchema, and ON CONFLICT DO NOTHING
// writes.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an already-open *sql.DB (registered with the "postgres"
// driver via lib/pq's blank import in cmd/*). Passing db == nil is a
// programmer error.
func NewPostgres(db *sql.DB) (*Postgres, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: db is nil", ErrInvalidInput)
	}
	return &Postgres{db: db}, nil
}

// EnsureSchema creates both tables if they do not already exist. It is safe
// to call on every process start.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS notification_ground_truth (
			experiment_id  TEXT NOT NULL,
			measurement_id TEXT NOT NULL,
			PRIMARY KEY (experiment_id, measurement_id)
		);`,
		`CREATE TABLE IF NOT EXISTS notification (
			experiment_id  TEXT NOT NULL,
			measurement_id TEXT NOT NULL,
			group_id       TEXT NOT NULL,
			latency        DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (experiment_id, measurement_id, group_id)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: ensure schema: %v", ErrDB, err)
		}
	}
	return nil
}

// RecordGroundTruth inserts (experimentID, measurementID) into
// notification_ground_truth, a no-op if the pair is already present.
func (p *Postgres) RecordGroundTruth(ctx context.Context, experimentID, measurementID string) error {
	if strings.TrimSpace(experimentID) == "" || strings.TrimSpace(measurementID) == "" {
		return fmt.Errorf("%w: experimentID/measurementID required", ErrInvalidInput)
	}
	const q = `
INSERT INTO notification_ground_truth (experiment_id, measurement_id)
VALUES ($1, $2)
ON CONFLICT (experiment_id, measurement_id) DO NOTHING;`
	if _, err := p.db.ExecContext(ctx, q, experimentID, measurementID); err != nil {
		return fmt.Errorf("%w: record ground truth: %v", ErrDB, err)
	}
	return nil
}

// RecordNotification upserts (experimentID, measurementID, groupID, latency)
// into notification, a no-op if the triple is already present -- this is
// what makes the forwarder's at-least-once delivery safe to absorb
// duplicates.
func (p *Postgres) RecordNotification(ctx context.Context, experimentID, measurementID, groupID string, latencySeconds float64) error {
	if strings.TrimSpace(experimentID) == "" || strings.TrimSpace(measurementID) == "" || strings.TrimSpace(groupID) == "" {
		return fmt.Errorf("%w: experimentID/measurementID/groupID required", ErrInvalidInput)
	}
	const q = `
INSERT INTO notification (experiment_id, measurement_id, group_id, latency)
VALUES ($1, $2, $3, $4)
ON CONFLICT (experiment_id, measurement_id, group_id) DO NOTHING;`
	if _, err := p.db.ExecContext(ctx, q, experimentID, measurementID, groupID, latencySeconds); err != nil {
		return fmt.Errorf("%w: record notification: %v", ErrDB, err)
	}
	return nil
}
