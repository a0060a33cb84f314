package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/siege-masterclass/checkout/internal/platform/httpx"
)

const maxRequestBody = 8 * 1024

var (
	errBodyTooLarge = errors.New("request body too large")
	errEmptyBody    = errors.New("request body is required")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxRequestBody
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// decodeBody reads a JSON body into dst. Empty bodies are allowed when optional is set.
func decodeBody(r *http.Request, dst any, optional bool) (int, error) {
	body, err := readLimitedBody(r, maxRequestBody)
	switch {
	case errors.Is(err, errEmptyBody) && optional:
		return 0, nil
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge, err
	case err != nil:
		return http.StatusBadRequest, err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return http.StatusBadRequest, errors.New("request body must be valid JSON")
	}
	return 0, nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	httpx.WriteJSON(w, status, payload)
}
