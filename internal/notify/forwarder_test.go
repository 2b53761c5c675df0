package notify

import (
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landaudiogo/cc-assignment-2023/internal/broker"
	"github.com/landaudiogo/cc-assignment-2023/internal/envelope"
	"github.com/landaudiogo/cc-assignment-2023/internal/events"
)

func fixedKey() []byte {
	k := make([]byte, envelope.KeySize)
	copy(k, []byte("QJUHsPhnA0eiqHuJqsPgzhDozYO4f1zh"))
	return k
}

func noSleep(context.Context, time.Duration) {}

func TestHandleSkipsEventWithAbsentNotification(t *testing.T) {
	key := fixedKey()
	env, err := envelope.Encrypt(key, envelope.HashData{NotificationType: envelope.NotificationNone, Researcher: "r", ExperimentID: "e", MeasurementID: "m", Timestamp: 1})
	require.NoError(t, err)

	var posted bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { posted = true }))
	defer srv.Close()

	f := &Forwarder{SecretKey: key, VerifierURL: srv.URL, Sleep: noSleep}
	evt := events.SensorTemperatureMeasured{MeasurementHash: env}
	payload, err := events.Marshal(evt)
	require.NoError(t, err)

	require.NoError(t, f.handle(context.Background(), broker.ConsumedMessage{Value: payload}))
	assert.False(t, posted)
}

func TestHandleSkipsUndecryptableEnvelope(t *testing.T) {
	key := fixedKey()
	var posted bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { posted = true }))
	defer srv.Close()

	f := &Forwarder{SecretKey: key, VerifierURL: srv.URL, Sleep: noSleep}
	evt := events.SensorTemperatureMeasured{MeasurementHash: "not-an-envelope"}
	payload, err := events.Marshal(evt)
	require.NoError(t, err)

	require.NoError(t, f.handle(context.Background(), broker.ConsumedMessage{Value: payload}))
	assert.False(t, posted)
}

func TestHandlePostsNotificationWithToken(t *testing.T) {
	key := fixedKey()
	env, err := envelope.Encrypt(key, envelope.HashData{
		NotificationType: envelope.NotificationStabilized,
		Researcher:       "d.landau@uu.nl",
		ExperimentID:     "5678",
		MeasurementID:    "1234",
		Timestamp:        1,
	})
	require.NoError(t, err)

	var gotToken string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.URL.Query().Get("token")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := &Forwarder{
		SecretKey:   key,
		VerifierURL: srv.URL,
		Token:       "test-jwt",
		Sleep:       noSleep,
		Rand:        rand.New(rand.NewSource(1)),
	}
	evt := events.SensorTemperatureMeasured{MeasurementHash: env}
	payload, err := events.Marshal(evt)
	require.NoError(t, err)

	require.NoError(t, f.handle(context.Background(), broker.ConsumedMessage{Value: payload}))
	assert.Equal(t, "test-jwt", gotToken)
	assert.Equal(t, "5678", gotBody["experiment_id"])
	assert.Equal(t, "1234", gotBody["measurement_id"])
	assert.Equal(t, env, gotBody["cipher_data"])
}

func TestRunSkipsNonSensorEvents(t *testing.T) {
	key := fixedKey()
	var posted bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { posted = true }))
	defer srv.Close()

	mem := broker.NewMemory()
	consumer := mem.Subscribe("sensors")

	f := &Forwarder{SecretKey: key, VerifierURL: srv.URL, Sleep: noSleep}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx, consumer) }()

	require.NoError(t, mem.Publish(context.Background(), broker.Message{
		Topic:   "sensors",
		Headers: map[string]string{events.HeaderRecordName: "experiment_configured"},
		Value:   []byte("irrelevant"),
	}))

	time.Sleep(10 * time.Millisecond) // give the consumer goroutine a chance to run
	cancel()
	<-done
	assert.False(t, posted)
}
