// Package http provides HTTP server and handler implementations.
//
// This file implements a small builder for JSON responses and the mapping
// from ledger errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"finanzas/internal/core"
)

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	return b
}

// StatusCode returns the status the response will be written with.
func (b *ResponseBuilder) StatusCode() int {
	return b.statusCode
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

// Error codes carried in error bodies.
const (
	CodeBadRequest   = "bad_request"
	CodeNotFound     = "not_found"
	CodeStale        = "stale_snapshot"
	CodeValidation   = "validation_failed"
	CodeUpstream     = "store_unavailable"
	CodeRateLimited  = "rate_limited"
	CodeInternal     = "internal"
	CodeNotReady     = "not_ready"
	CodeUnknownRoute = "unknown_route"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse creates a JSON error response.
func ErrorResponse(statusCode int, code, message string) *ResponseBuilder {
	return NewResponse().
		Status(statusCode).
		JSON(errorBody{Error: errorDetail{Code: code, Message: message}})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, CodeBadRequest, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, CodeNotFound, message)
}

// TooManyRequestsError creates a 429 response.
func TooManyRequestsError() *ResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded, try again later")
}

// ErrorFromLedger maps a repository error to its response. Validation
// problems are the caller's to fix (422); a stale token means reload
// (409); a vanished index is 404; store failures are upstream (502).
func ErrorFromLedger(err error) *ResponseBuilder {
	var (
		loadErr *core.LoadError
		saveErr *core.SaveError
		delErr  *core.DeleteError
	)
	switch {
	case core.IsValidation(err):
		return ErrorResponse(http.StatusUnprocessableEntity, CodeValidation, err.Error())
	case errors.Is(err, core.ErrStaleSnapshot):
		return ErrorResponse(http.StatusConflict, CodeStale, core.ErrStaleSnapshot.Error())
	case errors.Is(err, core.ErrIndexOutOfRange):
		return NotFoundError(err.Error())
	case errors.As(err, &loadErr), errors.As(err, &saveErr), errors.As(err, &delErr):
		return ErrorResponse(http.StatusBadGateway, CodeUpstream, err.Error())
	default:
		return ErrorResponse(http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
