// internal/app/features/errors/errors.go
//
// Package errors writes JSON error envelopes and maps domain sentinels
// to HTTP statuses. Every API handler funnels failures through here so
// clients see one consistent shape:
//
//	{"error": {"code": "not_found", "message": "workspace not found"}}
package errors

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

type envelope struct {
	Error body `json:"error"`
}

type body struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Write sends a JSON error with the given status, machine code, and
// human message.
func Write(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Error: body{Code: code, Message: message}})
}

// BadRequest writes a 400 with code "bad_request".
func BadRequest(w http.ResponseWriter, message string) {
	Write(w, http.StatusBadRequest, "bad_request", message)
}

// Unauthorized writes a 401 with code "unauthorized".
func Unauthorized(w http.ResponseWriter) {
	Write(w, http.StatusUnauthorized, "unauthorized", "sign in required")
}

// Forbidden writes a 403 with code "forbidden".
func Forbidden(w http.ResponseWriter, message string) {
	if message == "" {
		message = "you do not have permission to do that"
	}
	Write(w, http.StatusForbidden, "forbidden", message)
}

// NotFound writes a 404 with code "not_found".
func NotFound(w http.ResponseWriter, message string) {
	if message == "" {
		message = "not found"
	}
	Write(w, http.StatusNotFound, "not_found", message)
}

// Conflict writes a 409 with the given code.
func Conflict(w http.ResponseWriter, code, message string) {
	Write(w, http.StatusConflict, code, message)
}

// Unprocessable writes a 422 with the given code.
func Unprocessable(w http.ResponseWriter, code, message string) {
	Write(w, http.StatusUnprocessableEntity, code, message)
}

// Internal logs the error and writes a 500 without leaking details.
func Internal(w http.ResponseWriter, logger *zap.Logger, err error) {
	if logger != nil {
		logger.Error("internal error", zap.Error(err))
	}
	Write(w, http.StatusInternalServerError, "internal", "something went wrong")
}
