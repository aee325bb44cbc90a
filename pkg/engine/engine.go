// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package engine implements the execution lifecycle state machine (C5):
// Start, CompleteStep, NavigateTo, Pause, Resume, Complete, Cancel, Fail,
// and the read-only progress projection. Every state-changing operation
// runs inside one repository transaction (§4.2, §4.5.9); on error the
// transaction rolls back and no NavigationEvent is appended.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"workflowforge/pkg/errs"
	"workflowforge/pkg/events"
	"workflowforge/pkg/logging"
	"workflowforge/pkg/navigator"
	"workflowforge/pkg/repository"
	"workflowforge/pkg/resources"
	"workflowforge/pkg/value"
)

// Engine is the execution lifecycle state machine (C5).
type Engine struct {
	repo        repository.Repository
	coordinator *resources.Coordinator
	policy      resources.Policy
	nav         *navigator.Navigator
	sink        *events.Sink
	log         logging.Logger

	now                func() time.Time
	newID              func() string
	maxConflictRetries int
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithClock overrides the engine's time source (for deterministic tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides the engine's ID generator (for deterministic tests).
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

// WithEventSink attaches an optional Event Sink; engine operations publish
// best-effort domain events to it after a successful commit.
func WithEventSink(sink *events.Sink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithMaxConflictRetries overrides the bounded optimistic-conflict retry
// count (§5 specifies 2 attempts as the default).
func WithMaxConflictRetries(n int) Option {
	return func(e *Engine) { e.maxConflictRetries = n }
}

// New builds an Engine. repo, coordinator, and nav are required
// collaborators; policy governs Reserve's strict/warn behavior on Start.
func New(repo repository.Repository, coordinator *resources.Coordinator, policy resources.Policy, nav *navigator.Navigator, log logging.Logger, opts ...Option) *Engine {
	if log == nil {
		log = logging.NewLogger(false)
	}
	e := &Engine{
		repo:               repo,
		coordinator:        coordinator,
		policy:             policy,
		nav:                nav,
		log:                log,
		now:                time.Now,
		newID:              uuid.NewString,
		maxConflictRetries: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// withTransaction runs fn inside a repository transaction, retrying up to
// maxConflictRetries times (default 1, so 2 attempts in all) when the
// transaction fails with errs.Conflict. Each retry starts immediately;
// there is no delay between attempts.
func (e *Engine) withTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	var lastErr error
	attempts := e.maxConflictRetries + 1
	for i := 0; i < attempts; i++ {
		err := e.repo.Transaction(ctx, fn)
		if err == nil {
			return nil
		}
		lastErr = err
		if !errs.HasCode(err, errs.Conflict) {
			return err
		}
	}
	return lastErr
}

func (e *Engine) publish(evType events.Type, executionID string, payload value.Map) {
	if e.sink == nil {
		return
	}
	data := payload.Clone()
	data = data.Set("executionId", value.String(executionID))
	e.sink.Publish(events.DomainEvent{
		ID:        e.newID(),
		Type:      evType,
		Timestamp: e.now().Unix(),
		Payload:   data,
	})
}
