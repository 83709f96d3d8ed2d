package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-upnp/internal/upnp/localsvc"
)

// Error is the JSON body of every non-SOAP error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeNotFound           = "not_found"
	ErrCodeInternal           = "internal_error"
	ErrCodeInvalidValue       = "invalid_value"
	ErrCodeValueNotAllowed    = "value_not_allowed"
	ErrCodePayloadTooLarge    = "payload_too_large"
	ErrCodePreconditionFailed = "precondition_failed"
	ErrCodeUnavailable        = "service_unavailable"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeUnavailable writes a 503 error response for an unconfigured feature.
func writeUnavailable(w http.ResponseWriter, message string) {
	writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, message)
}

// writeBodyError answers a failed request body read: 413 when the body
// exceeded api.max_body_bytes, 400 otherwise.
func writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "request body too large")
		return
	}
	writeBadRequest(w, "failed to read request body")
}

// writeStateError answers a rejected state update: 404 for a variable the
// service does not declare, 422 for a value outside its allowed list or
// range or one its datatype cannot hold.
func writeStateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, localsvc.ErrUnknownStateVariable):
		writeNotFound(w, err.Error())
	case errors.Is(err, localsvc.ErrNotAllowed):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValueNotAllowed, err.Error())
	default:
		writeError(w, http.StatusUnprocessableEntity, ErrCodeInvalidValue, err.Error())
	}
}
