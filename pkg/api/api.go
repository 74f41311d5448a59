// Package api holds the HTTP response helpers and transport DTOs.
package api

import (
	"encoding/json"
	"net/http"

	pkgerrors "analyst-backend/pkg/errors"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// JSON writes v as a JSON response with the given status
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Error maps an application error onto an HTTP status and writes it
func Error(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := string(pkgerrors.ErrorTypeInternal)
	message := "internal error"

	switch errType := pkgerrors.TypeOf(err); errType {
	case pkgerrors.ErrorTypeValidation:
		status = http.StatusBadRequest
		code, message = string(errType), err.Error()
	case pkgerrors.ErrorTypeNotFound:
		status = http.StatusNotFound
		code, message = string(errType), err.Error()
	case pkgerrors.ErrorTypeAccessDenied:
		status = http.StatusForbidden
		code, message = string(errType), err.Error()
	case pkgerrors.ErrorTypeAgentBusy:
		status = http.StatusConflict
		code, message = string(errType), err.Error()
	case pkgerrors.ErrorTypeTimeout:
		status = http.StatusGatewayTimeout
		code, message = string(errType), err.Error()
	case pkgerrors.ErrorTypeExternal:
		status = http.StatusBadGateway
		code, message = string(errType), err.Error()
	}

	JSON(w, status, ErrorResponse{Error: message, Code: code})
}

// Decode reads a JSON request body into v
func Decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return pkgerrors.NewValidation("invalid request body: " + err.Error())
	}
	return nil
}
