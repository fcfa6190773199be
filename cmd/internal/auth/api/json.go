package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"copydesk/cmd/internal/ratelimit"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

// rateLimitResponse is the 429 body. It is not wrapped in the error envelope.
type rateLimitResponse struct {
	Code          string `json:"code"`
	Namespace     string `json:"namespace"`
	Limit         int    `json:"limit"`
	WindowSeconds int64  `json:"window_seconds"`
	CurrentCount  int64  `json:"current_count"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: msg}})
}

// Uniform failures. Callers never learn which check failed.
func writeUnauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials or session")
}

func writeCSRFInvalid(w http.ResponseWriter) {
	writeError(w, http.StatusForbidden, "csrf_invalid", "missing or invalid csrf token")
}

func writeServerError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, "server_error", "internal error")
}

func writeRateLimited(w http.ResponseWriter, e *ratelimit.ExceededError) {
	w.Header().Set("Retry-After", strconv.FormatInt(e.RetryAfterSeconds(), 10))
	writeJSON(w, http.StatusTooManyRequests, rateLimitResponse{
		Code:          "rate_limit_exceeded",
		Namespace:     e.Namespace,
		Limit:         e.Limit,
		WindowSeconds: e.WindowSeconds(),
		CurrentCount:  e.Count,
	})
}

// noStore marks a response as carrying credentials or secrets.
func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer func() { _ = r.Body.Close() }()

	body := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	// Ensure there is no extra data after the first JSON value.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data after JSON object")
	}
	return nil
}
