package http

import (
	"context"
	"io/fs"
	"net/http"
	"time"

	"budgetcal/internal/registry"
	appweb "budgetcal/web"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).Round(time.Second).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			checks["storage"] = "failed: " + err.Error()
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["storage"] = "ok"
		}
	} else {
		checks["storage"] = "not_configured"
	}

	if _, ok := registry.Typed[any](s.ns, registry.TransactionManager); ok {
		checks["transactions"] = "ok"
	} else {
		checks["transactions"] = "missing"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}
	checks["modules"] = s.ns.Len()

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleModules lists the names bound in the namespace.
func (s *Server) handleModules(w http.ResponseWriter, r *http.Request) {
	names := s.ns.Names()
	present := make(map[string]bool, len(registry.Names))
	for _, n := range names {
		present[n] = true
	}
	known := make(map[string]bool, len(registry.Names))
	for _, n := range registry.Names {
		known[n] = present[n]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"modules": names,
		"count":   len(names),
		"known":   known,
	})
}

// handleMetrics reports request, rate limit and security counters.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"uptimeSeconds": int64(s.now().Sub(s.started).Seconds()),
		"requests":      s.tracer.GetMetrics(),
		"rateLimit":     s.rateLimiter.GetMetrics(),
		"security":      s.detector.GetMetrics(),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := fs.ReadFile(appweb.StaticFS, "static/index.html")
	if err != nil {
		s.requestLogger(r).ErrorContext(r.Context(), "Index page missing", "error", err)
		InternalServerError("page indisponible").Write(w)
		return
	}
	NewJSONResponse().Body("text/html; charset=utf-8", page).Write(w)
}
