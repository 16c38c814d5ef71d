// Package http provides HTTP server and handler implementations.
//
// This file implements a small builder for JSON responses so every handler
// writes bodies, status codes and download headers the same way.

package http

import (
	"encoding/json"
	"mime"
	"net/http"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	data       any
	raw        []byte
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
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

// Data sets the value encoded as the body.
func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.data = v
	b.raw = nil
	return b
}

// Body sets a pre-encoded body with its content type.
func (b *JSONResponseBuilder) Body(contentType string, content []byte) *JSONResponseBuilder {
	b.headers["Content-Type"] = contentType
	b.raw = content
	b.data = nil
	return b
}

// Attachment marks the response as a download named filename.
func (b *JSONResponseBuilder) Attachment(filename string) *JSONResponseBuilder {
	return b.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	body := b.raw
	if b.data != nil {
		encoded, err := json.Marshal(b.data)
		if err != nil {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"encode response"}`))
			return
		}
		body = append(encoded, '\n')
	}

	w.WriteHeader(b.statusCode)
	if len(body) > 0 {
		_, _ = w.Write(body)
	}
}

// ErrorResponse creates a standard {"error": message} response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Data(ErrorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// ServiceUnavailableError creates a 503 response for a missing component.
func ServiceUnavailableError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusServiceUnavailable, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// TooManyRequestsError creates a 429 response.
func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "Trop de requêtes, réessayez plus tard")
}
