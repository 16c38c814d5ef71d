package trace

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	m := NewMiddleware()
	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromRequest(r)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("request id = %q", seen)
	}
	if got := rr.Header().Get(HeaderRequestID); got != seen {
		t.Fatalf("response header = %q, want %q", got, seen)
	}
}

func TestMiddlewareKeepsIncomingID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"valid", "abc-123", true},
		{"injection", "bad id\nX-Evil: 1", false},
		{"too long", strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMiddleware()
			var seen string
			h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(HeaderRequestID, tt.incoming)
			h.ServeHTTP(httptest.NewRecorder(), req)
			if (seen == tt.incoming) != tt.keep {
				t.Fatalf("seen = %q, keep = %v", seen, tt.keep)
			}
		})
	}
}

func TestGetMetrics(t *testing.T) {
	m := NewMiddleware()
	h := m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	for i := 0; i < 3; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}
	got := m.GetMetrics()
	if got.TotalRequests != 3 || got.InFlight != 0 {
		t.Fatalf("metrics = %+v", got)
	}
}
