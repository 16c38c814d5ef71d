package main

import (
	"context"
	"fmt"

	"budgetcal/internal/backend"
	"budgetcal/internal/cache"
	"budgetcal/internal/core"
	applog "budgetcal/internal/log"
	"budgetcal/internal/transactions"
)

// app is the opened backend and the transaction manager on top of it.
type app struct {
	backend *backend.BackendResult
	tx      *transactions.Manager
	stats   *cache.LRUCache[core.MonthlyStats]
	logger  *applog.Logger
}

func openApp(ctx context.Context, g *globals) (*app, error) {
	bcfg, err := backend.FromAppConfig(g.cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(g.logger.WithComponent(applog.ComponentBackend).Slog()).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("open backend: %w", err)
	}

	stats := cache.NewLRUCache[core.MonthlyStats](g.cfg.CacheSize, g.cfg.CacheTTL)
	opts := transactions.Options{
		Outbox:     res.Outbox,
		StatsCache: stats,
		Logger:     g.logger.WithComponent(applog.ComponentTransactions).Slog(),
	}
	if res.Publisher != nil {
		opts.Publisher = res.Publisher
	}
	return &app{
		backend: res,
		tx:      transactions.NewManager(res.Store, opts),
		stats:   stats,
		logger:  g.logger,
	}, nil
}

// ping checks the store when it supports it.
func (a *app) ping(ctx context.Context) error {
	if p, ok := a.backend.Store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (a *app) Close() {
	if err := a.backend.Cleanup(); err != nil {
		a.logger.Error("Failed to close backend", "error", err)
	}
}
