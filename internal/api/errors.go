package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/voltbridge/voltbridge/internal/automation"
	"github.com/voltbridge/voltbridge/internal/bridge"
	"github.com/voltbridge/voltbridge/internal/history"
	"github.com/voltbridge/voltbridge/internal/pdu"
	"github.com/voltbridge/voltbridge/internal/poller"
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
	ErrCodeRequiresSerial = "requires_serial"
	ErrCodeInternal       = "internal_error"
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

// writeConflict writes a 409 error response.
func writeConflict(w http.ResponseWriter, message string) {
	writeError(w, http.StatusConflict, ErrCodeConflict, message)
}

// writeRequiresSerial writes a 503 response for operations that need the
// console transport.
func writeRequiresSerial(w http.ResponseWriter, message string) {
	writeError(w, http.StatusServiceUnavailable, ErrCodeRequiresSerial, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps a domain error onto the HTTP status contract:
// invalid input 400, missing 404, duplicate 409, console-only 503,
// everything else 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, automation.ErrRuleInvalid),
		errors.Is(err, bridge.ErrInvalidDevice),
		errors.Is(err, bridge.ErrInvalidSettings),
		errors.Is(err, pdu.ErrInvalidOutlet),
		errors.Is(err, pdu.ErrUnknownCommand):
		writeBadRequest(w, err.Error())

	case errors.Is(err, automation.ErrRuleNotFound),
		errors.Is(err, bridge.ErrDeviceNotFound),
		errors.Is(err, history.ErrReportNotFound):
		writeNotFound(w, err.Error())

	case errors.Is(err, automation.ErrRuleExists),
		errors.Is(err, bridge.ErrDeviceExists):
		writeConflict(w, err.Error())

	case errors.Is(err, poller.ErrManagementUnsupported),
		errors.Is(err, pdu.ErrSerialOnlyCommand):
		writeRequiresSerial(w, err.Error())

	default:
		writeInternalError(w, err.Error())
	}
}
