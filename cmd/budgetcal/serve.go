package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"budgetcal/internal/cache"
	"budgetcal/internal/calendar"
	"budgetcal/internal/categorize"
	"budgetcal/internal/charts"
	"budgetcal/internal/cli"
	"budgetcal/internal/dashboard"
	apphttp "budgetcal/internal/http"
	applog "budgetcal/internal/log"
	"budgetcal/internal/predictions"
	"budgetcal/internal/registry"
	"budgetcal/internal/search"
	"budgetcal/internal/services"
	"budgetcal/internal/themes"
)

func serveCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), g)
		},
	}
}

func serve(parent context.Context, g *globals) error {
	logger := g.logger
	a, err := openApp(parent, g)
	if err != nil {
		return err
	}
	defer a.Close()

	ns, dash, err := buildComponents(parent, g, a)
	if err != nil {
		return err
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + g.cfg.Port,
		Namespace:          ns,
		RateLimitPerMinute: g.cfg.RateLimitPerMinute,
		Ready:              a.ping,
		Logger:             logger,
	})

	ctx, done := cli.GracefulShutdown(logger.Slog(), 30*time.Second, func(ctx context.Context) {
		logger.InfoContext(ctx, "Stopping HTTP server",
			applog.NewFields().WithOperation(applog.OpShutdown).ToSlice()...)
		if err := srv.Shutdown(ctx); err != nil {
			logger.ErrorContext(ctx, "Server shutdown error", "error", err)
		}
	})

	janitor := cache.NewJanitor(logger.WithComponent(applog.ComponentCache).Slog())
	janitor.Register(a.stats)

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		logger.Info("Starting budgetcal server",
			"port", g.cfg.Port,
			"backend", g.cfg.DataBackend,
			"modules", ns.Len())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	grp.Go(func() error { return dash.Run(gctx) })
	grp.Go(func() error {
		janitor.Run(gctx, g.cfg.CacheTTL)
		return nil
	})
	if g.cfg.FixedAutoApply {
		fixed := services.NewFixedProcessor(a.tx, a.backend.Store, g.cfg.FixedExpenseDay, logger.Slog())
		grp.Go(func() error {
			runFixedExpenses(gctx, fixed, logger)
			return nil
		})
	}
	grp.Go(func() error {
		<-gctx.Done()
		// A failed listener cancels gctx without a signal.
		if ctx.Err() == nil {
			_ = srv.Close()
		}
		return nil
	})

	err = grp.Wait()
	if ctx.Err() != nil {
		<-done
	}
	if err != nil {
		logger.Error("Server error", "error", err, "port", g.cfg.Port)
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}

// buildComponents creates the optional components and exports them on a new
// namespace. Components that fail to start are logged and left out.
func buildComponents(ctx context.Context, g *globals, a *app) (*registry.Namespace, *dashboard.Dashboard, error) {
	logger := g.logger
	store := a.backend.Store

	var (
		pred = predictions.NewEngine(a.tx, logger.Slog())
		ch   = charts.New(a.tx)
		srch = search.NewManager(a.tx, store, logger.Slog())
	)
	th, err := themes.NewManager(ctx, store, logger.Slog())
	if err != nil {
		logger.Warn("Theme manager unavailable", "error", err)
		th = nil
	}
	dash, err := dashboard.New(ctx, a.tx, dashboard.Options{
		Predictions:     pred,
		Charts:          ch,
		Settings:        store,
		Logger:          logger.WithComponent(applog.ComponentDashboard).Slog(),
		RefreshInterval: g.cfg.DashboardRefreshInterval,
	})
	if err != nil {
		return nil, nil, err
	}

	ns := registry.NewNamespace()
	manifest := registry.Manifest{
		TransactionManager:    a.tx,
		ChartsManager:         ch,
		EnhancedDashboard:     dash,
		BudgetPredictionsAI:   pred,
		AdvancedSearchManager: srch,
		ThemeManager:          th,
	}
	regLogger := logger.WithComponent(applog.ComponentRegistry).Slog()
	if err := registry.Export(ctx, ns, manifest, regLogger); err != nil {
		logger.Warn("Some components were not exported", "error", err)
	}

	if engine, err := categorize.NewEngine(ctx, store, a.tx, logger.Slog()); err != nil {
		logger.Warn("Categorizer unavailable", "error", err)
	} else if err := ns.Bind(apphttp.CategorizerComponent, engine); err != nil {
		return nil, nil, err
	}
	if err := ns.Bind(apphttp.CalendarComponent, calendar.New(a.tx)); err != nil {
		return nil, nil, err
	}
	return ns, dash, nil
}

// runFixedExpenses applies the due fixed expenses now and then every hour.
func runFixedExpenses(ctx context.Context, p *services.FixedProcessor, logger *applog.Logger) {
	apply := func() {
		n, err := p.ProcessDue(ctx, time.Now())
		if err != nil {
			logger.ErrorContext(ctx, "Fixed expenses failed", "error", err)
			return
		}
		if n > 0 {
			logger.InfoContext(ctx, "Fixed expenses applied", "created", n)
		}
	}
	apply()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			apply()
		}
	}
}
