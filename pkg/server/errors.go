package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"mercator-hq/darwin/pkg/genome"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// StatusFor maps a pipeline error to an HTTP status and error type.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, genome.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, genome.ErrValidation):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, genome.ErrThrottled):
		return http.StatusTooManyRequests, "throttled"
	case errors.Is(err, genome.ErrParse):
		return http.StatusBadGateway, "unparsable_model_output"
	case errors.Is(err, genome.ErrGateway):
		return http.StatusBadGateway, "gateway_error"
	case errors.Is(err, genome.ErrAuditUnavailable):
		return http.StatusServiceUnavailable, "audit_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, typ := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "An internal error occurred. Please try again later."
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Type: typ, Message: msg}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
