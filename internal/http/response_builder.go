// Package http exposes the dashboard aggregates as a JSON API.
//
// This file implements a small builder for JSON responses and the mapping
// from service errors to status codes.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"findash/internal/core"
	"findash/internal/middleware/trace"
	"findash/internal/narrative"
	"findash/internal/services"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error         string   `json:"error"`
	Code          string   `json:"code"`
	MissingFields []string `json:"missing_fields,omitempty"`
	Source        string   `json:"source,omitempty"`
	RequestID     string   `json:"request_id,omitempty"`
}

// Error codes carried in ErrorBody.Code.
const (
	CodeInvalidSelection  = "invalid_selection"
	CodeSourceUnavailable = "source_unavailable"
	CodeMissingColumns    = "missing_columns"
	CodeNotConfigured     = "not_configured"
	CodeUpstream          = "upstream_error"
	CodeTimeout           = "timeout"
	CodeMethodNotAllowed  = "method_not_allowed"
	CodeNotFound          = "not_found"
	CodeRateLimited       = "rate_limited"
	CodeInternal          = "internal_error"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
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

// StatusCode returns the status the response will be written with.
func (b *JSONResponseBuilder) StatusCode() int {
	return b.statusCode
}

// Write encodes the body and sends the response. HEAD requests get headers
// only.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter, r *http.Request) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	data, err := json.Marshal(b.body)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed encoding response", "path", r.URL.Path, "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to encode response","code":"internal_error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(append(data, '\n'))
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(&ErrorBody{Error: message, Code: code})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, CodeInvalidSelection, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, CodeNotFound, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, CodeInternal, message)
}

// MethodNotAllowedError creates a 405 Method Not Allowed error response.
func MethodNotAllowedError(allowedMethods string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed").
		Header("Allow", allowedMethods)
}

// TooManyRequestsError creates a 429 response.
func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded, try again later")
}

// ErrorFromService maps a service error onto a response. fallback is the
// status used for errors with no specific mapping: 502 for narrative
// requests, where anything unexpected came from the provider, and 500
// elsewhere.
func ErrorFromService(ctx context.Context, err error, fallback int) *JSONResponseBuilder {
	var (
		b       *JSONResponseBuilder
		missing *core.MissingColumnsError
		srcErr  *core.SourceError
	)
	switch {
	case errors.Is(err, services.ErrInvalidSelection):
		b = BadRequestError(err.Error())
	case errors.As(err, &missing):
		fields := make([]string, len(missing.Fields))
		for i, f := range missing.Fields {
			fields[i] = string(f)
		}
		b = ErrorResponse(http.StatusServiceUnavailable, CodeMissingColumns, err.Error())
		body := b.body.(*ErrorBody)
		body.MissingFields = fields
		body.Source = missing.Source
	case errors.As(err, &srcErr):
		b = ErrorResponse(http.StatusServiceUnavailable, CodeSourceUnavailable, err.Error())
		b.body.(*ErrorBody).Source = srcErr.Source
	case errors.Is(err, core.ErrSourceUnavailable):
		b = ErrorResponse(http.StatusServiceUnavailable, CodeSourceUnavailable, err.Error())
	case errors.Is(err, narrative.ErrNotConfigured), errors.Is(err, services.ErrBusNotConfigured):
		b = ErrorResponse(http.StatusServiceUnavailable, CodeNotConfigured, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		b = ErrorResponse(http.StatusGatewayTimeout, CodeTimeout, "upstream timed out")
	case fallback == http.StatusBadGateway:
		b = ErrorResponse(http.StatusBadGateway, CodeUpstream, err.Error())
	default:
		b = InternalServerError("internal error")
	}
	if body, ok := b.body.(*ErrorBody); ok {
		body.RequestID = trace.GetRequestID(ctx)
	}
	return b
}
