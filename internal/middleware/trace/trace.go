// Package trace assigns a request ID to every HTTP request and keeps simple
// request counters.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"regexp"
	"sync/atomic"
	"time"
)

// ContextKey type for context keys
type ContextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"

	// HeaderRequestID carries the request ID in and out.
	HeaderRequestID = "X-Request-ID"
)

var validRequestID = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// Middleware handles request tracing
type Middleware struct {
	totalRequests int64
	inFlight      int64
	totalMicros   int64
}

// Metrics tracks request metrics
type Metrics struct {
	TotalRequests       int64 `json:"totalRequests"`
	InFlight            int64 `json:"inFlight"`
	AverageResponseTime int64 `json:"averageResponseTimeMicros"`
}

func NewMiddleware() *Middleware {
	return &Middleware{}
}

// Middleware returns HTTP middleware for request tracing. A well formed
// incoming X-Request-ID is kept, otherwise a new one is generated. The ID is
// echoed on the response.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(HeaderRequestID)
		if !validRequestID.MatchString(requestID) {
			requestID = GenerateRequestID()
		}
		w.Header().Set(HeaderRequestID, requestID)

		atomic.AddInt64(&m.totalRequests, 1)
		atomic.AddInt64(&m.inFlight, 1)
		defer func() {
			atomic.AddInt64(&m.inFlight, -1)
			atomic.AddInt64(&m.totalMicros, time.Since(start).Microseconds())
		}()

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// FromRequest is GetRequestID for a request, in the shape log.Middleware
// expects.
func FromRequest(r *http.Request) string {
	return GetRequestID(r.Context())
}

// GetMetrics returns current metrics
func (m *Middleware) GetMetrics() Metrics {
	total := atomic.LoadInt64(&m.totalRequests)
	var avg int64
	if total > 0 {
		avg = atomic.LoadInt64(&m.totalMicros) / total
	}
	return Metrics{
		TotalRequests:       total,
		InFlight:            atomic.LoadInt64(&m.inFlight),
		AverageResponseTime: avg,
	}
}
