package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-radio/internal/transmitter"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnauthorized   = "unauthorised"
	ErrCodeForbidden      = "forbidden"
	ErrCodeConflict       = "conflict"
	ErrCodeUnavailable    = "unavailable"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeConflict writes a 409 error response.
func writeConflict(w http.ResponseWriter, message string) {
	writeError(w, http.StatusConflict, ErrCodeConflict, message)
}

// writeServiceUnavailable writes a 503 error response.
func writeServiceUnavailable(w http.ResponseWriter, message string) {
	writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeTransmitterError maps transmitter domain errors onto HTTP
// status codes: state conflicts to 409, validation to 400, session
// problems to 503.
func writeTransmitterError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, transmitter.ErrInvalidTransition),
		errors.Is(err, transmitter.ErrAlreadyConnected),
		errors.Is(err, transmitter.ErrWatchdogTriggered):
		writeConflict(w, err.Error())
	case errors.Is(err, transmitter.ErrChannelOutOfRange),
		errors.Is(err, transmitter.ErrFrequencyOutOfRange):
		writeBadRequest(w, err.Error())
	case errors.Is(err, transmitter.ErrNotConnected),
		errors.Is(err, transmitter.ErrConnectionFailed),
		errors.Is(err, transmitter.ErrConnectionLost),
		errors.Is(err, transmitter.ErrReconnectExhausted),
		errors.Is(err, transmitter.ErrCommandTimeout):
		writeServiceUnavailable(w, err.Error())
	case errors.Is(err, transmitter.ErrCommandRejected):
		writeConflict(w, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
