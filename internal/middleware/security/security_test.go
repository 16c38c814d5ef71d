package security

import (
	"crypto/tls"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/transactions", nil))
	for _, name := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy", "Referrer-Policy"} {
		if rr.Header().Get(name) == "" {
			t.Errorf("missing %s", name)
		}
	}
	if got := rr.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q", got)
	}
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Errorf("HSTS set without TLS")
	}

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	h.ServeHTTP(rr, req)
	if !strings.HasPrefix(rr.Header().Get("Strict-Transport-Security"), "max-age=31536000") {
		t.Errorf("HSTS = %q", rr.Header().Get("Strict-Transport-Security"))
	}
	if rr.Header().Get("Cache-Control") != "" {
		t.Errorf("index should be cacheable")
	}
}

func TestInspect(t *testing.T) {
	d := NewDetector(quietLogger())
	tests := []struct {
		name       string
		method     string
		target     string
		agent      string
		suspicious bool
	}{
		{"normal", http.MethodGet, "/api/transactions?month=2025-03", "Mozilla/5.0", false},
		{"curl is fine", http.MethodGet, "/api/stats/total", "curl/8.0", false},
		{"traversal", http.MethodGet, "/static/../../etc/passwd", "", true},
		{"dotenv", http.MethodGet, "/.env", "", true},
		{"scanner", http.MethodGet, "/", "sqlmap/1.7", true},
		{"trace method", "TRACE", "/", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			req.Header.Set("User-Agent", tt.agent)
			if got := len(d.Inspect(req)) > 0; got != tt.suspicious {
				t.Fatalf("suspicious = %v, want %v", got, tt.suspicious)
			}
		})
	}
}

func TestDetectorMiddlewareBlocksTrace(t *testing.T) {
	d := NewDetector(quietLogger())
	called := false
	h := d.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("TRACE", "/", nil))
	if rr.Code != http.StatusMethodNotAllowed || called {
		t.Fatalf("status = %d, called = %v", rr.Code, called)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/.git/config", nil))
	if rr.Code != http.StatusOK || !called {
		t.Fatalf("suspicious GET should pass through, status = %d", rr.Code)
	}
	if m := d.GetMetrics(); m.SuspiciousRequests != 2 || m.BlockedRequests != 1 {
		t.Fatalf("metrics = %+v", m)
	}
}

func TestExtractClientIP(t *testing.T) {
	d := NewDetector(quietLogger())
	tests := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"direct", "203.0.113.7:1234", "", "203.0.113.7"},
		{"untrusted proxy ignored", "203.0.113.7:1234", "1.1.1.1", "203.0.113.7"},
		{"trusted proxy", "10.0.0.2:80", "198.51.100.1, 10.0.0.2", "198.51.100.1"},
		{"trusted proxy bad header", "127.0.0.1:80", "garbage", "127.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := d.ExtractClientIP(req); got != tt.want {
				t.Fatalf("ExtractClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
