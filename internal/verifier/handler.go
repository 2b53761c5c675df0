package verifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/landaudiogo/cc-assignment-2023/internal/envelope"
	"github.com/landaudiogo/cc-assignment-2023/internal/metrics"
	"github.com/landaudiogo/cc-assignment-2023/internal/store"
)

// notifyRequest is the POST /api/notify body.
type notifyRequest struct {
	NotificationType envelope.NotificationType `json:"notification_type"`
	Researcher       string                    `json:"researcher"`
	MeasurementID    string                    `json:"measurement_id"`
	ExperimentID     string                    `json:"experiment_id"`
	CipherData       string                    `json:"cipher_data"`
}

// Handler serves POST /api/notify?token=<JWT>. It is nil-safe for Store and
// Tokens: when either is nil, the DB-upsert step is skipped entirely and the
// envelope is still validated and timed.
type Handler struct {
	SecretKey []byte
	Tokens    *TokenVerifier             // nil disables JWT verification
	Store     store.NotificationRecorder // nil disables persistence
	Metrics   *metrics.VerifierMetrics
	Now       func() time.Time
	Log       *logrus.Entry
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handler) log() *logrus.Entry {
	if h.Log != nil {
		return h.Log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// ServeHTTP decodes the request, decrypts and validates the envelope against
// the body's fields in order, measures delivery latency, and optionally
// authenticates the caller and records the notification.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondPlain(w, http.StatusBadRequest, fmt.Sprintf("malformed request body: %v", err))
		return
	}

	hash, err := envelope.Decrypt(h.SecretKey, req.CipherData)
	if err != nil {
		h.recordOutcome("unknown", "decode_error")
		status, msg := classifyDecryptError(err)
		h.respondPlain(w, status, msg)
		return
	}

	if msg, ok := fieldMismatch("measurement_id", req.MeasurementID, hash.MeasurementID); !ok {
		h.recordOutcome("unknown", "validation_error")
		h.respondPlain(w, http.StatusBadRequest, msg)
		return
	}
	if msg, ok := fieldMismatch("experiment_id", req.ExperimentID, hash.ExperimentID); !ok {
		h.recordOutcome("unknown", "validation_error")
		h.respondPlain(w, http.StatusBadRequest, msg)
		return
	}
	if msg, ok := fieldMismatch("researcher", req.Researcher, hash.Researcher); !ok {
		h.recordOutcome("unknown", "validation_error")
		h.respondPlain(w, http.StatusBadRequest, msg)
		return
	}
	if msg, ok := fieldMismatch("notification_type", string(req.NotificationType), string(hash.NotificationType)); !ok {
		h.recordOutcome("unknown", "validation_error")
		h.respondPlain(w, http.StatusBadRequest, msg)
		return
	}

	latency := h.now().Sub(time.Unix(0, int64(hash.Timestamp*1e9))).Seconds()

	groupID := "unknown"
	if token := r.URL.Query().Get("token"); token != "" && h.Tokens != nil {
		gid, err := h.Tokens.GroupID(token)
		if err != nil {
			h.log().WithError(err).Warn("rejecting notification with invalid token")
			h.recordOutcome(groupID, "validation_error")
			h.respondPlain(w, http.StatusBadRequest, "invalid token")
			return
		}
		groupID = gid
		if h.Store != nil {
			if err := h.Store.RecordNotification(r.Context(), hash.ExperimentID, hash.MeasurementID, groupID, latency); err != nil {
				// Persistence is a side channel: log and swallow, never
				// fail the request over it.
				h.log().WithError(err).Warn("failed to record notification")
			}
		}
	}

	h.recordOutcome(groupID, "ok")
	h.respondPlain(w, http.StatusOK, fmt.Sprintf("%v", latency))
}

// fieldMismatch reports whether got == want, and if not, the exact mismatch
// message callers must surface verbatim.
func fieldMismatch(field, got, want string) (string, bool) {
	if got == want {
		return "", true
	}
	return fmt.Sprintf("Unexpected %s `%s`. Expected `%s`", field, got, want), false
}

// classifyDecryptError maps envelope.ErrorKind onto the client/internal HTTP
// status split: malformed input or a failed authentication tag is the
// client's fault (400); a successfully-decrypted payload that isn't valid
// UTF-8/JSON indicates our own decoding is broken (500).
func classifyDecryptError(err error) (int, string) {
	var de *envelope.DecryptError
	if !errors.As(err, &de) {
		return http.StatusInternalServerError, "internal error decoding envelope"
	}
	switch de.Kind {
	case envelope.NotUtf8, envelope.NotJson:
		return http.StatusInternalServerError, fmt.Sprintf("internal error decoding envelope: %v", de)
	default:
		return http.StatusBadRequest, fmt.Sprintf("invalid cipher_data: %v", de)
	}
}

func (h *Handler) recordOutcome(group, kind string) {
	if h.Metrics == nil {
		return
	}
	h.Metrics.ResponseCount.WithLabelValues(group, kind).Inc()
}

func (h *Handler) respondPlain(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
