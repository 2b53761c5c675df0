// Package notify implements the notifier forwarder: it consumes the sensor
// event stream with auto-commit, decrypts each envelope, and forwards
// notifications to the verifier with randomized jitter.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/landaudiogo/cc-assignment-2023/internal/broker"
	"github.com/landaudiogo/cc-assignment-2023/internal/envelope"
	"github.com/landaudiogo/cc-assignment-2023/internal/events"
)

// maxJitter bounds the uniform random response-jitter sleep before POSTing a
// notification: [0, 5s).
const maxJitter = 5 * time.Second

// notifyBody is the JSON the forwarder POSTs to the verifier.
type notifyBody struct {
	NotificationType envelope.NotificationType `json:"notification_type"`
	Researcher       string                    `json:"researcher"`
	ExperimentID     string                    `json:"experiment_id"`
	MeasurementID    string                    `json:"measurement_id"`
	CipherData       string                    `json:"cipher_data"`
}

// Forwarder drives the consume-decrypt-jitter-POST loop.
type Forwarder struct {
	SecretKey   []byte
	VerifierURL string // base URL; its path is replaced with /api/notify
	Token       string // bearer token sent as the ?token= query parameter
	HTTPClient  *http.Client
	Rand        *rand.Rand
	Log         *logrus.Entry

	// Sleep lets tests substitute a deterministic, context-aware sleep; nil
	// uses a real timer over [0, maxJitter).
	Sleep func(ctx context.Context, d time.Duration)
}

func (f *Forwarder) httpClient() *http.Client {
	if f.HTTPClient != nil {
		return f.HTTPClient
	}
	return http.DefaultClient
}

func (f *Forwarder) log() *logrus.Entry {
	if f.Log != nil {
		return f.Log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

func (f *Forwarder) jitter() time.Duration {
	var frac float64
	if f.Rand != nil {
		frac = f.Rand.Float64()
	} else {
		frac = rand.Float64()
	}
	return time.Duration(frac * float64(maxJitter))
}

func (f *Forwarder) sleep(ctx context.Context, d time.Duration) {
	if f.Sleep != nil {
		f.Sleep(ctx, d)
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// Run consumes consumer with auto-commit until ctx is canceled.
func (f *Forwarder) Run(ctx context.Context, consumer broker.Consumer) error {
	return consumer.Consume(ctx, func(msg broker.ConsumedMessage) error {
		if broker.Header(msg.Headers, events.HeaderRecordName) != string(events.RecordSensorTemperatureMeasured) {
			return nil
		}
		return f.handle(ctx, msg)
	})
}

// handle decrypts one sensor_temperature_measured delivery and, if it
// carries a notification, jitters and forwards it to the verifier. An error
// returned here is dropped without logging by the auto-commit consumer loop,
// which moves on to the next delivery -- the forwarder is purely
// at-least-once.
func (f *Forwarder) handle(ctx context.Context, msg broker.ConsumedMessage) error {
	evt, err := events.UnmarshalSensorTemperatureMeasured(msg.Value)
	if err != nil {
		f.log().WithError(err).Warn("failed to decode sensor_temperature_measured event")
		return nil
	}

	hash, err := envelope.Decrypt(f.SecretKey, evt.MeasurementHash)
	if err != nil {
		f.log().WithError(err).Debug("skipping event with undecryptable envelope")
		return nil
	}
	if hash.NotificationType == envelope.NotificationNone {
		return nil
	}

	f.sleep(ctx, f.jitter())
	if ctx.Err() != nil {
		return nil
	}

	return f.post(ctx, hash, evt.MeasurementHash)
}

func (f *Forwarder) post(ctx context.Context, hash envelope.HashData, cipherData string) error {
	body := notifyBody{
		NotificationType: hash.NotificationType,
		Researcher:       hash.Researcher,
		ExperimentID:     hash.ExperimentID,
		MeasurementID:    hash.MeasurementID,
		CipherData:       cipherData,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("notify: marshaling notification body: %w", err)
	}

	u, err := url.Parse(f.VerifierURL)
	if err != nil {
		return fmt.Errorf("notify: parsing verifier URL: %w", err)
	}
	u.Path = "/api/notify"
	if f.Token != "" {
		q := u.Query()
		q.Set("token", f.Token)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient().Do(req)
	if err != nil {
		f.log().WithError(err).Warn("posting notification failed")
		return nil // transport failures are logged, not propagated; at-least-once is best-effort
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		f.log().WithField("status", resp.StatusCode).Warn("verifier rejected notification")
	}
	return nil
}
