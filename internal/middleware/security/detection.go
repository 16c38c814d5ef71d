package security

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
)

var (
	suspiciousPatterns = []string{
		"../", "..\\", ".env", "wp-admin", "phpmyadmin",
		"admin.php", "config.php", ".git", ".ssh",
		"eval(", "javascript:", "<script", "union select",
		"etc/passwd", "cmd.exe",
	}
	suspiciousAgents = []string{
		"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "zgrab",
	}
	blockedMethods = map[string]bool{"TRACE": true, "TRACK": true, "DEBUG": true, "CONNECT": true}
)

const maxURLLength = 2048

// DetectionMetrics tracks security detection events
type DetectionMetrics struct {
	SuspiciousRequests int64 `json:"suspiciousRequests"`
	BlockedRequests    int64 `json:"blockedRequests"`
}

// Detector handles suspicious request detection
type Detector struct {
	suspicious     int64
	blocked        int64
	trustedProxies []*net.IPNet
	logger         *slog.Logger
}

// NewDetector trusts loopback and private networks as proxies.
func NewDetector(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		logger: logger,
		trustedProxies: []*net.IPNet{
			parseCIDR("127.0.0.0/8"),
			parseCIDR("10.0.0.0/8"),
			parseCIDR("172.16.0.0/12"),
			parseCIDR("192.168.0.0/16"),
			parseCIDR("::1/128"),
		},
	}
}

func parseCIDR(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("failed to parse trusted proxy CIDR %s: %v", cidr, err))
	}
	return network
}

// Inspect returns the reasons r looks like an attack, nil when it does not.
func (d *Detector) Inspect(r *http.Request) []string {
	var reasons []string

	path := strings.ToLower(r.URL.Path)
	query := strings.ToLower(r.URL.RawQuery)
	for _, pattern := range suspiciousPatterns {
		if strings.Contains(path, pattern) || strings.Contains(query, pattern) {
			reasons = append(reasons, "pattern "+pattern)
			break
		}
	}

	userAgent := strings.ToLower(r.UserAgent())
	for _, agent := range suspiciousAgents {
		if strings.Contains(userAgent, agent) {
			reasons = append(reasons, "agent "+agent)
			break
		}
	}

	if blockedMethods[r.Method] {
		reasons = append(reasons, "method "+r.Method)
	}
	if len(r.URL.String()) > maxURLLength {
		reasons = append(reasons, "long url")
	}
	// More than five proxy hops hints at header manipulation.
	if strings.Count(r.Header.Get("X-Forwarded-For"), ",") > 5 {
		reasons = append(reasons, "forwarded chain")
	}
	return reasons
}

// Middleware logs suspicious requests and rejects the HTTP methods that
// are never served.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reasons := d.Inspect(r); len(reasons) > 0 {
			atomic.AddInt64(&d.suspicious, 1)
			d.logger.WarnContext(r.Context(), "Suspicious request",
				"method", r.Method,
				"path", r.URL.Path,
				"client_ip", d.ExtractClientIP(r),
				"reasons", reasons)
			if blockedMethods[r.Method] {
				atomic.AddInt64(&d.blocked, 1)
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// ExtractClientIP returns the client address. Forwarding headers are only
// honoured when the direct peer is a trusted proxy.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsedDirectIP := net.ParseIP(directIP)
	if parsedDirectIP == nil || !d.isTrustedProxy(parsedDirectIP) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}
	return directIP
}

func (d *Detector) isTrustedProxy(ip net.IP) bool {
	for _, network := range d.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// GetMetrics returns current security metrics
func (d *Detector) GetMetrics() DetectionMetrics {
	return DetectionMetrics{
		SuspiciousRequests: atomic.LoadInt64(&d.suspicious),
		BlockedRequests:    atomic.LoadInt64(&d.blocked),
	}
}

// AddTrustedProxy adds a trusted proxy network. It is not safe to call
// while requests are being served.
func (d *Detector) AddTrustedProxy(cidr string) error {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.trustedProxies = append(d.trustedProxies, network)
	return nil
}
