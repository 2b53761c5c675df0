package envelope

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("QJUHsPhnA0eiqHuJqsPgzhDozYO4f1zh")

func TestEncryptDecryptRoundTrip(t *testing.T) {
	hash := HashData{
		NotificationType: NotificationOutOfRange,
		Researcher:       "d.landau@uu.nl",
		ExperimentID:     "5678",
		MeasurementID:    "1234",
		Timestamp:        1693833763.2243981,
	}

	env, err := Encrypt(testKey, hash)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(env, "."))

	got, err := Decrypt(testKey, env)
	require.NoError(t, err)
	assert.Equal(t, hash, got)
}

func TestDecryptWrongKeyFailsAuthentication(t *testing.T) {
	hash := HashData{NotificationType: NotificationStabilized, ExperimentID: "1"}
	env, err := Encrypt(testKey, hash)
	require.NoError(t, err)

	otherKey := []byte("00000000000000000000000000000000")[:KeySize]
	_, err = Decrypt(otherKey, env)
	require.Error(t, err)

	var decErr *DecryptError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, AuthenticationFailure, decErr.Kind)
}

func TestDecryptMalformedEnvelopeShape(t *testing.T) {
	_, err := Decrypt(testKey, "no-dot-in-here")
	var decErr *DecryptError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, MalformedEnvelope, decErr.Kind)

	_, err = Decrypt(testKey, "a.b.c")
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, MalformedEnvelope, decErr.Kind)
}

func TestDecryptMalformedNonceBase64(t *testing.T) {
	_, err := Decrypt(testKey, "not-base64-!!!.AAAA")
	var decErr *DecryptError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, MalformedNonceBase64, decErr.Kind)
}

func TestDecryptMalformedCiphertextBase64(t *testing.T) {
	_, err := Decrypt(testKey, b64.EncodeToString(make([]byte, nonceSize))+".not-base64-!!!")
	var decErr *DecryptError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, MalformedCiphertextBase64, decErr.Kind)
}

func TestNotificationTypeNoneRoundTrip(t *testing.T) {
	hash := HashData{NotificationType: NotificationNone, ExperimentID: "5678"}
	b, err := json.Marshal(hash)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"notification_type":"none"`)

	var back HashData
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, NotificationNone, back.NotificationType)
}

func TestEncryptRejectsShortKey(t *testing.T) {
	_, err := Encrypt([]byte("short"), HashData{})
	assert.Error(t, err)
}
