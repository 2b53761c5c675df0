// Package envelope implements the authenticated-encryption codec shared by every
// service in the pipeline: the experiment producer signs each measurement's
// notification classification into an envelope, and the notifier/verifier pair
// decrypts it again downstream.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// KeySize is the required length, in bytes, of the shared envelope key (AES-256).
const KeySize = 32

// nonceSize is the AEAD nonce length used by crypto/cipher's GCM construction.
const nonceSize = 12

// NotificationType classifies why (if at all) a measurement's envelope was signed.
type NotificationType string

const (
	NotificationOutOfRange NotificationType = "OutOfRange"
	NotificationStabilized NotificationType = "Stabilized"
	// NotificationNone marks an envelope carrying no notification. It is
	// serialized as the string "none" on the wire; see
	// NotificationType.MarshalJSON.
	NotificationNone NotificationType = ""
)

// MarshalJSON renders the zero value as the wire literal "none", matching the
// three-way notification_type enum used on the wire.
func (n NotificationType) MarshalJSON() ([]byte, error) {
	if n == NotificationNone {
		return json.Marshal("none")
	}
	return json.Marshal(string(n))
}

// UnmarshalJSON accepts "none" (and the empty string, for leniency) as the
// absent-notification sentinel.
func (n *NotificationType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch NotificationType(s) {
	case "none", NotificationNone:
		*n = NotificationNone
	case NotificationOutOfRange, NotificationStabilized:
		*n = NotificationType(s)
	default:
		return fmt.Errorf("envelope: unrecognized notification_type %q", s)
	}
	return nil
}

// HashData is the plaintext signed inside every envelope.
type HashData struct {
	NotificationType NotificationType `json:"notification_type"`
	Researcher       string           `json:"researcher"`
	ExperimentID     string           `json:"experiment_id"`
	MeasurementID    string           `json:"measurement_id"`
	Timestamp        float64          `json:"timestamp"`
}

// ErrorKind enumerates the ways decryption can fail closed. Each is surfaced as
// its own distinguishable error; none of them collapse into one another.
type ErrorKind int

const (
	_ ErrorKind = iota
	MalformedEnvelope
	MalformedNonceBase64
	MalformedCiphertextBase64
	AuthenticationFailure
	NotUtf8
	NotJson
)

func (k ErrorKind) String() string {
	switch k {
	case MalformedEnvelope:
		return "malformed envelope"
	case MalformedNonceBase64:
		return "malformed nonce base64"
	case MalformedCiphertextBase64:
		return "malformed ciphertext base64"
	case AuthenticationFailure:
		return "authentication failure"
	case NotUtf8:
		return "not valid utf-8"
	case NotJson:
		return "not valid json"
	default:
		return "unknown envelope error"
	}
}

// DecryptError is returned by Decrypt. Kind distinguishes which of the six
// failure modes occurred; callers (notably the verifier) map it to an HTTP
// status without needing to parse the message text.
type DecryptError struct {
	Kind ErrorKind
	Err  error
}

func (e *DecryptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *DecryptError) Unwrap() error { return e.Err }

func newDecryptError(kind ErrorKind, err error) *DecryptError {
	return &DecryptError{Kind: kind, Err: err}
}

var b64 = base64.RawStdEncoding // unpadded standard base64

// Encrypt seals hash into an envelope string "base64(nonce).base64(ciphertext)"
// using AES-256-GCM under key. A fresh 96-bit nonce is drawn for every call.
func Encrypt(key []byte, hash HashData) (string, error) {
	if len(key) != KeySize {
		return "", fmt.Errorf("envelope: key must be %d bytes, got %d", KeySize, len(key))
	}
	plaintext, err := json.Marshal(hash)
	if err != nil {
		return "", fmt.Errorf("envelope: marshaling hash data: %w", err)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", fmt.Errorf("envelope: constructing cipher: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("envelope: drawing nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	return b64.EncodeToString(nonce) + "." + b64.EncodeToString(ciphertext), nil
}

// Decrypt opens an envelope produced by Encrypt with the same key. It fails
// closed: every malformed input or authentication failure is reported as a
// distinct *DecryptError, never silently coerced to another kind.
func Decrypt(key []byte, envelope string) (HashData, error) {
	var zero HashData
	if len(key) != KeySize {
		return zero, fmt.Errorf("envelope: key must be %d bytes, got %d", KeySize, len(key))
	}

	parts := strings.Split(envelope, ".")
	if len(parts) != 2 {
		return zero, newDecryptError(MalformedEnvelope, fmt.Errorf("expected exactly one '.' separator, found %d parts", len(parts)))
	}

	nonce, err := b64.DecodeString(parts[0])
	if err != nil {
		return zero, newDecryptError(MalformedNonceBase64, err)
	}

	ciphertext, err := b64.DecodeString(parts[1])
	if err != nil {
		return zero, newDecryptError(MalformedCiphertextBase64, err)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return zero, fmt.Errorf("envelope: constructing cipher: %w", err)
	}
	if len(nonce) != gcm.NonceSize() {
		return zero, newDecryptError(AuthenticationFailure, fmt.Errorf("nonce has wrong length %d", len(nonce)))
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return zero, newDecryptError(AuthenticationFailure, err)
	}

	if !utf8.Valid(plaintext) {
		return zero, newDecryptError(NotUtf8, errors.New("plaintext is not valid utf-8"))
	}

	var hash HashData
	if err := json.Unmarshal(plaintext, &hash); err != nil {
		return zero, newDecryptError(NotJson, err)
	}

	return hash, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
