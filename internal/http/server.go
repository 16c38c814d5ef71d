package http

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	applog "budgetcal/internal/log"
	"budgetcal/internal/middleware/ratelimit"
	"budgetcal/internal/middleware/security"
	"budgetcal/internal/middleware/trace"
	"budgetcal/internal/registry"
	appweb "budgetcal/web"
)

// Names of the components bound next to the exported manifest.
const (
	CategorizerComponent = "AutoCategorizationAI"
	CalendarComponent    = "CalendarManager"
)

const defaultMaxBodyBytes = 10 << 20

// Options configures a Server.
type Options struct {
	Addr string
	// Namespace supplies the optional components. A nil namespace makes
	// every component endpoint answer 503.
	Namespace          *registry.Namespace
	RateLimitPerMinute int
	// Ready is checked by /readyz, typically the storage ping.
	Ready        func(ctx context.Context) error
	Logger       *applog.Logger
	MaxBodyBytes int64
	Now          func() time.Time
}

type Server struct {
	http.Server
	ns           *registry.Namespace
	logger       *applog.Logger
	ready        func(ctx context.Context) error
	now          func() time.Time
	started      time.Time
	maxBodyBytes int64

	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware
	calendarMu  sync.Mutex

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Namespace == nil {
		opts.Namespace = registry.NewNamespace()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}

	s := &Server{
		ns:           opts.Namespace,
		logger:       opts.Logger.WithComponent(applog.ComponentHTTP),
		ready:        opts.Ready,
		now:          opts.Now,
		started:      opts.Now(),
		maxBodyBytes: opts.MaxBodyBytes,
		rateLimiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:     security.NewDetector(opts.Logger.Slog()),
		tracer:       trace.NewMiddleware(),
	}

	app := http.NewServeMux()
	s.registerRoutes(app)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		app.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	limited := s.rateLimiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			"client_ip", s.detector.ExtractClientIP(r), "method", r.Method, "path", r.URL.Path)
		TooManyRequestsError().Write(w)
	})(app)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", s.handleHealth)
	root.HandleFunc("GET /readyz", s.handleReady)
	root.Handle("/", s.detector.Middleware(limited))

	var handler http.Handler = root
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = applog.Middleware(opts.Logger, trace.FromRequest)(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /api/modules", s.handleModules)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("GET /api/categories", s.handleCategories)

	mux.HandleFunc("GET /api/stats/monthly", s.handleMonthlyStats)
	mux.HandleFunc("GET /api/stats/total", s.handleTotalStats)
	mux.HandleFunc("GET /api/stats/categories", s.handleCategoryStats)

	mux.HandleFunc("GET /api/fixed-expenses", s.handleGetFixedExpenses)
	mux.HandleFunc("PUT /api/fixed-expenses", s.handleUpdateFixedExpenses)

	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("POST /api/import", s.handleImport)
	mux.HandleFunc("POST /api/clear", s.handleClear)

	mux.HandleFunc("POST /api/categorize/suggest", s.handleSuggestCategory)
	mux.HandleFunc("POST /api/categorize/learn", s.handleLearnCategory)
	mux.HandleFunc("GET /api/categorize/stats", s.handleCategorizeStats)

	mux.HandleFunc("GET /api/predictions", s.handlePredictions)
	mux.HandleFunc("GET /api/predictions/anomalies", s.handleAnomalies)
	mux.HandleFunc("GET /api/predictions/recurring", s.handleRecurring)
	mux.HandleFunc("GET /api/predictions/quality", s.handleQuality)

	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/search/quick/{name}", s.handleQuickFilter)
	mux.HandleFunc("GET /api/search/saved", s.handleListSavedFilters)
	mux.HandleFunc("POST /api/search/saved", s.handleSaveFilter)
	mux.HandleFunc("GET /api/search/saved/{name}", s.handleLoadFilter)
	mux.HandleFunc("DELETE /api/search/saved/{name}", s.handleDeleteFilter)
	mux.HandleFunc("GET /api/search/history", s.handleSearchHistory)
	mux.HandleFunc("GET /api/search/analytics", s.handleSearchAnalytics)
	mux.HandleFunc("POST /api/search/export", s.handleSearchExport)

	mux.HandleFunc("GET /api/calendar", s.handleCalendar)
	mux.HandleFunc("GET /api/calendar/export", s.handleCalendarExport)

	mux.HandleFunc("GET /api/charts/{chart}", s.handleChart)

	mux.HandleFunc("GET /api/themes", s.handleThemes)
	mux.HandleFunc("GET /api/themes/export", s.handleExportThemeConfig)
	mux.HandleFunc("PUT /api/themes/current", s.handleApplyTheme)
	mux.HandleFunc("POST /api/themes/{action}", s.handleThemeAction)

	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/dashboard/insights", s.handleInsights)
	mux.HandleFunc("GET /api/dashboard/alerts", s.handleAlerts)
	mux.HandleFunc("GET /api/dashboard/export", s.handleDashboardExport)
	mux.HandleFunc("GET /api/dashboard/preferences", s.handleGetPreferences)
	mux.HandleFunc("PUT /api/dashboard/preferences", s.handleSavePreferences)
}

// limitBody caps the request body at MaxBodyBytes.
func (s *Server) limitBody(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Close releases background resources without waiting for connections.
func (s *Server) Close() error {
	s.rateLimiter.Stop()
	return s.Server.Close()
}

// requestLogger returns the request scoped logger set by log.Middleware.
func (s *Server) requestLogger(r *http.Request) *slog.Logger {
	return applog.FromContext(r.Context()).Slog()
}
