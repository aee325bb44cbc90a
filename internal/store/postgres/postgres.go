// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package postgres implements the transactional persistence contract (C2,
// repository.Repository) using PostgreSQL via pgx/v5 and pgxpool. The
// caller owns the *pgxpool.Pool; Store never opens or closes it.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"workflowforge/pkg/graph"
	"workflowforge/pkg/repository"
)

// dbtx is the subset of *pgxpool.Pool and pgx.Tx every query method needs.
// Every method in this package is written against dbtx so the same code
// runs whether it's called at the top level (db is the pool) or inside a
// Transaction callback (db is a pgx.Tx).
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements repository.Repository. Its Querier methods are
// promoted from the embedded *queries bound to the pool; Transaction
// rebinds a fresh *queries to a pgx.Tx for the duration of the callback.
type Store struct {
	pool *pgxpool.Pool
	*queries
}

// New builds a Store around an externally-owned pool. The caller is
// responsible for closing the pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, queries: &queries{db: pool}}
}

var _ repository.Repository = (*Store)(nil)

// Init creates every table and index this package needs. Safe to call
// repeatedly.
func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			created_by TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			is_template BOOLEAN NOT NULL DEFAULT false,
			visibility TEXT NOT NULL DEFAULT 'private',
			version INTEGER NOT NULL DEFAULT 1,
			has_multiple_outcomes BOOLEAN NOT NULL DEFAULT false,
			estimated_duration INTEGER,
			difficulty_level INTEGER,
			project_id TEXT,
			theme_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_workflows_created_by ON workflows (created_by)`,
		`CREATE INDEX IF NOT EXISTS idx_workflows_status_template ON workflows (status, is_template)`,

		`CREATE TABLE IF NOT EXISTS steps (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			instructions TEXT,
			display_order INTEGER NOT NULL DEFAULT 0,
			step_type TEXT NOT NULL,
			estimated_duration INTEGER,
			parent_step_id TEXT,
			is_milestone BOOLEAN NOT NULL DEFAULT false,
			is_decision_point BOOLEAN NOT NULL DEFAULT false,
			is_outcome BOOLEAN NOT NULL DEFAULT false,
			condition_logic TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_steps_workflow_order ON steps (workflow_id, display_order)`,

		`CREATE TABLE IF NOT EXISTS connections (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
			source_step_id TEXT NOT NULL,
			target_step_id TEXT NOT NULL,
			connection_type TEXT NOT NULL,
			condition TEXT,
			display_order INTEGER NOT NULL DEFAULT 0,
			is_default BOOLEAN NOT NULL DEFAULT false
		)`,
		`CREATE INDEX IF NOT EXISTS idx_connections_source ON connections (source_step_id)`,
		`CREATE INDEX IF NOT EXISTS idx_connections_target ON connections (target_step_id)`,

		`CREATE TABLE IF NOT EXISTS step_resources (
			id TEXT PRIMARY KEY,
			step_id TEXT NOT NULL REFERENCES steps(id) ON DELETE CASCADE,
			resource_kind TEXT NOT NULL,
			material_id TEXT,
			tool_id TEXT,
			documentation_id TEXT,
			quantity DOUBLE PRECISION,
			unit TEXT,
			is_optional BOOLEAN NOT NULL DEFAULT false
		)`,
		`CREATE INDEX IF NOT EXISTS idx_step_resources_step ON step_resources (step_id)`,

		`CREATE TABLE IF NOT EXISTS decision_options (
			id TEXT PRIMARY KEY,
			step_id TEXT NOT NULL REFERENCES steps(id) ON DELETE CASCADE,
			option_text TEXT NOT NULL,
			result_action TEXT,
			display_order INTEGER NOT NULL DEFAULT 0,
			is_default BOOLEAN NOT NULL DEFAULT false
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decision_options_step ON decision_options (step_id)`,

		`CREATE TABLE IF NOT EXISTS outcomes (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			display_order INTEGER NOT NULL DEFAULT 0,
			is_default BOOLEAN NOT NULL DEFAULT false,
			success_criteria TEXT,
			UNIQUE (workflow_id, name)
		)`,

		`CREATE TABLE IF NOT EXISTS executions (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
			started_by TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ,
			selected_outcome_id TEXT,
			current_step_id TEXT,
			execution_data JSONB,
			total_duration_minutes INTEGER,
			version INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_workflow ON executions (workflow_id)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_status ON executions (status)`,

		`CREATE TABLE IF NOT EXISTS step_executions (
			id TEXT PRIMARY KEY,
			execution_id TEXT NOT NULL REFERENCES executions(id) ON DELETE CASCADE,
			step_id TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			actual_duration_minutes INTEGER,
			step_data JSONB,
			UNIQUE (execution_id, step_id)
		)`,

		`CREATE TABLE IF NOT EXISTS navigation_events (
			id TEXT PRIMARY KEY,
			execution_id TEXT NOT NULL REFERENCES executions(id) ON DELETE CASCADE,
			step_id TEXT,
			action_type TEXT NOT NULL,
			action_data JSONB,
			"timestamp" TIMESTAMPTZ NOT NULL,
			sequence BIGSERIAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_navigation_events_execution_sequence ON navigation_events (execution_id, sequence)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Transaction runs fn inside one atomic transaction scoped to ctx (§4.5.9,
// §5): every state change and the NavigationEvent it appends commit
// together, or none do.
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(ctx, &queries{db: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SaveWorkflow runs the multi-statement workflow upsert inside its own
// transaction when called on the Store directly, so a failure part-way
// leaves the previously stored definition intact.
func (s *Store) SaveWorkflow(ctx context.Context, w *graph.Workflow) error {
	return s.Transaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.SaveWorkflow(ctx, w)
	})
}
