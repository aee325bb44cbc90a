// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package app wires the engine, navigator, resource coordinator, catalog
// service, and postgres-backed repository into one object the CLI (and any
// other host process) constructs once from a loaded config.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"workflowforge/internal/inventory"
	"workflowforge/internal/store/postgres"
	"workflowforge/pkg/catalog"
	"workflowforge/pkg/config"
	"workflowforge/pkg/engine"
	"workflowforge/pkg/events"
	"workflowforge/pkg/logging"
	"workflowforge/pkg/navigator"
	"workflowforge/pkg/resources"
)

// App bundles the wired dependency graph.
type App struct {
	Pool    *pgxpool.Pool
	Store   *postgres.Store
	Engine  *engine.Engine
	Nav     *navigator.Navigator
	Catalog *catalog.Service
	Sink    *events.Sink
	Log     logging.Logger
}

// New connects to cfg.Database.DSN, runs Init to ensure the schema exists,
// and wires every component per the configured resource policy. Callers
// must call Close when done.
func New(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	if log == nil {
		log = logging.NewLogger(false)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("app: parse database dsn: %w", err)
	}
	if cfg.Database.MaxConns > 0 {
		poolCfg.MaxConns = cfg.Database.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("app: connect to database: %w", err)
	}

	store := postgres.New(pool)
	if err := store.Init(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("app: initialize schema: %w", err)
	}

	oracle := inventory.NewMemory()
	coordinator := resources.NewCoordinator(oracle, cfg.Resources.OracleTimeout, log)
	nav := navigator.New(log)
	sink := events.NewSink(64, log)

	policy := resources.PolicyWarn
	if cfg.Resources.Policy == config.ReservationStrict {
		policy = resources.PolicyStrict
	}

	eng := engine.New(store, coordinator, policy, nav, log,
		engine.WithEventSink(sink),
		engine.WithMaxConflictRetries(cfg.Resources.RetryAttempts))

	return &App{
		Pool:    pool,
		Store:   store,
		Engine:  eng,
		Nav:     nav,
		Catalog: catalog.New(store, log),
		Sink:    sink,
		Log:     log,
	}, nil
}

// Close releases the database pool and stops the event sink.
func (a *App) Close() {
	a.Sink.Close()
	a.Pool.Close()
}
