package authapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

// Token responses must never be cached by intermediaries.
func writeJSON(w http.ResponseWriter, status int, v any) {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	h.Set("Pragma", "no-cache")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: msg}})
}

var errTrailingData = errors.New("trailing data after JSON object")

// readBody decodes exactly one JSON object of at most maxBytes into dst.
// On failure it writes 413 for oversized bodies and 400 otherwise, and returns false.
func readBody(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) bool {
	if r.Body == nil || r.Body == http.NoBody {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body is required")
		return false
	}
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBytes))
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if err == nil && dec.Decode(&struct{}{}) != io.EOF {
		err = errTrailingData
	}
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
		return false
	}
	writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
	return false
}
