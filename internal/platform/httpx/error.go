// Package httpx writes JSON responses and the error envelope shared by every endpoint.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/siege-masterclass/checkout/internal/platform/requestctx"
)

// encodeFailure is written when a payload cannot be marshalled, so a status is never sent without a body.
var encodeFailure = []byte(`{"error":"encode_failed","message":"unable to encode response","status":500}` + "\n")

// Error is the JSON error envelope `{error, message, status, request_id, trace_id, ...details}`.
type Error struct {
	Code    string
	Message string
	Status  int
	Details map[string]any
}

// NewError builds an envelope; a zero status means 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    sanitize(code, 80),
		Message: sanitize(message, 512),
		Status:  status,
	}
}

// WithDetails merges extra keys such as "fields" or "phase" into the envelope. Envelope keys win.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) == 0 {
		return e
	}
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		if !isReservedKey(k) {
			merged[k] = v
		}
	}
	e.Details = merged
	return e
}

func (e Error) envelope(ctx context.Context) map[string]any {
	payload := make(map[string]any, len(e.Details)+5)
	for k, v := range e.Details {
		payload[k] = v
	}
	payload["error"] = e.Code
	payload["message"] = e.Message
	payload["status"] = e.Status
	if id := sanitize(middleware.GetReqID(ctx), 80); id != "" {
		payload["request_id"] = id
	}
	if id := sanitize(requestctx.TraceID(ctx), 64); id != "" {
		payload["trace_id"] = id
	}
	return payload
}

// WriteError writes err as JSON, stamping the request and trace ids found on ctx.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	if err.Status == 0 {
		err.Status = http.StatusInternalServerError
	}
	WriteJSON(w, err.Status, err.envelope(ctx))
}

// WriteJSON marshals payload before committing the status. A payload that cannot be encoded
// becomes a 500 envelope instead.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		body = encodeFailure
	} else {
		body = append(body, '\n')
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func isReservedKey(key string) bool {
	switch key {
	case "error", "message", "status", "request_id", "trace_id":
		return true
	}
	return false
}

func sanitize(value string, limit int) string {
	value = strings.TrimSpace(strings.NewReplacer("\n", " ", "\r", " ").Replace(value))
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
