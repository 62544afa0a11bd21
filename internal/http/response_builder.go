// Package http exposes the ledger as a JSON API.
//
// This file implements a small builder for JSON responses so every handler
// sets status, headers and body the same way.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
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

// Created is a 201 response carrying v.
func Created(v any) *ResponseBuilder {
	return NewResponse().Status(http.StatusCreated).JSON(v)
}

// OK is a 200 response carrying v.
func OK(v any) *ResponseBuilder {
	return NewResponse().JSON(v)
}

// NoContent is an empty 204 response.
func NoContent() *ResponseBuilder {
	return NewResponse().Status(http.StatusNoContent)
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if b.body == nil || b.statusCode == http.StatusNoContent {
		w.WriteHeader(b.statusCode)
		return
	}

	payload, err := json.Marshal(b.body)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error","kind":"Internal"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(payload)
	_, _ = w.Write([]byte("\n"))
}

// MethodNotAllowedError creates a 405 response.
func MethodNotAllowedError() *ResponseBuilder {
	return NewResponse().
		Status(http.StatusMethodNotAllowed).
		JSON(errorBody{Error: "method not allowed", Kind: "MethodNotAllowed"})
}

// NotFoundRoute is the 404 for unknown paths.
func NotFoundRoute() *ResponseBuilder {
	return NewResponse().
		Status(http.StatusNotFound).
		JSON(errorBody{Error: "no such route", Kind: "NotFound"})
}

// TooManyRequests is written by the rate limiter.
func TooManyRequests() *ResponseBuilder {
	return NewResponse().
		Status(http.StatusTooManyRequests).
		JSON(errorBody{Error: "rate limit exceeded", Kind: "RateLimited", Retryable: true})
}
