// Package http exposes the ledger over a JSON API.
//
// This file implements the builder used by every handler to write JSON
// responses and maps domain errors to status codes.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/export"
	applog "fintrack/internal/log"
	"fintrack/internal/settings"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response. A nil body writes only the status.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a standard {"error": message} response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

var unprocessable = []error{
	core.ErrInvalidAmount,
	core.ErrEmptyName,
	core.ErrNameTooLong,
	core.ErrCommentTooLong,
	core.ErrInvalidCurrency,
	core.ErrInvalidColor,
	core.ErrInvalidType,
	core.ErrInvalidPeriod,
	core.ErrInvalidDate,
	core.ErrMissingAccount,
	core.ErrMissingCategory,
	core.ErrTypeMismatch,
	core.ErrSameAccount,
	core.ErrRateRequired,
	core.ErrInvalidRate,
	core.ErrInvalidPolicy,
	core.ErrInvalidInput,
	settings.ErrUnknownKey,
}

var conflicts = []error{
	core.ErrHasDependents,
	core.ErrDuplicateTag,
	core.ErrStoreNotEmpty,
}

// statusFor maps an error returned by the services to an HTTP status.
func statusFor(err error) int {
	if errors.Is(err, errBadRequest) {
		return http.StatusBadRequest
	}
	// Snapshot errors may wrap ErrNotFound for dangling references.
	if errors.Is(err, export.ErrInvalidSnapshot) {
		return http.StatusUnprocessableEntity
	}
	if errors.Is(err, core.ErrNotFound) {
		return http.StatusNotFound
	}
	for _, target := range unprocessable {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity
		}
	}
	for _, target := range conflicts {
		if errors.Is(err, target) {
			return http.StatusConflict
		}
	}
	return http.StatusInternalServerError
}

// writeError logs and writes err. Internal errors are not echoed to the
// client.
func writeError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		applog.LogError(ctx, "Request failed", err, applog.ComponentHTTP, operation, nil)
		InternalServerError("internal error").Write(w)
		return
	}
	applog.FromContext(ctx).WithComponent(applog.ComponentHTTP).DebugContext(ctx, "Request rejected",
		applog.FieldOperation, operation, applog.FieldStatusCode, status, applog.FieldError, err.Error())
	ErrorResponse(status, err.Error()).Write(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).Body(v).Write(w)
}
