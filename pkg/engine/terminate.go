// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package engine

import (
	"context"

	"workflowforge/pkg/condition"
	"workflowforge/pkg/events"
	"workflowforge/pkg/graph"
	"workflowforge/pkg/graphalgo"
	"workflowforge/pkg/logging"
	"workflowforge/pkg/repository"
	"workflowforge/pkg/value"
)

// IsWorkflowComplete implements §4.5.5: every step that has ever been
// entered must be completed or skipped, and either the last-completed step
// has no outgoing connections that currently evaluate true, or it is
// marked isOutcome. When the workflow has multiple outcomes, a
// selectedOutcomeId must be set unless the last step itself is an outcome.
func (e *Engine) IsWorkflowComplete(w *graph.Workflow, execution *repository.Execution, stepExecs []*repository.StepExecution, lastStep *graph.Step) bool {
	for _, se := range stepExecs {
		if se.Status != repository.StepExecCompleted && se.Status != repository.StepExecSkipped {
			return false
		}
	}
	if lastStep == nil {
		return false
	}

	ctx := condition.Context{Ctx: execution.ExecutionData}
	next := graphalgo.NextSteps(w, lastStep.ID, ctx, e.log)
	if len(next) > 0 && !lastStep.IsOutcome {
		return false
	}

	if w.HasMultipleOutcomes && execution.SelectedOutcomeID == nil && !lastStep.IsOutcome {
		return false
	}

	return true
}

// Pause transitions an active execution to paused (§4.5.7). Reservations
// are retained across pauses.
func (e *Engine) Pause(ctx context.Context, executionID string) (*repository.Execution, error) {
	return e.transitionStatus(ctx, executionID, repository.ExecutionPaused, repository.ActionPaused)
}

// Resume transitions a paused execution back to active (§4.5.7).
func (e *Engine) Resume(ctx context.Context, executionID string) (*repository.Execution, error) {
	return e.transitionStatus(ctx, executionID, repository.ExecutionActive, repository.ActionResumed)
}

// Complete transitions an active execution to completed, releasing
// reservations (§4.5.6).
func (e *Engine) Complete(ctx context.Context, executionID string) (*repository.Execution, error) {
	return e.terminate(ctx, executionID, repository.ExecutionCompleted, repository.ActionWorkflowCompleted, events.ExecutionCompleted)
}

// Cancel transitions an active or paused execution to cancelled, releasing
// reservations (§4.5.6).
func (e *Engine) Cancel(ctx context.Context, executionID string) (*repository.Execution, error) {
	return e.terminate(ctx, executionID, repository.ExecutionCancelled, repository.ActionCancelled, "")
}

// Fail transitions an active execution to failed, releasing reservations
// (§4.5.6). reason is recorded on the terminating NavigationEvent's
// actionData for later diagnosis.
func (e *Engine) Fail(ctx context.Context, executionID string, reason string) (*repository.Execution, error) {
	return e.terminateWithData(ctx, executionID, repository.ExecutionFailed, repository.ActionCancelled, "", value.Map{"reason": value.String(reason)})
}

// transitionStatus handles the non-terminal Pause/Resume flips: a bare
// status change plus NavigationEvent, with no reservation release.
func (e *Engine) transitionStatus(ctx context.Context, executionID string, to repository.ExecutionStatus, action repository.ActionType) (*repository.Execution, error) {
	execution, _, _, err := e.repo.LoadExecution(ctx, executionID, repository.ExecutionLoadOptions{})
	if err != nil {
		return nil, err
	}
	if err := checkTransition(execution.Status, to); err != nil {
		return nil, err
	}

	now := e.now()
	txErr := e.withTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		execution.Status = to
		if err := tx.UpdateExecution(ctx, execution); err != nil {
			return err
		}
		return tx.AppendNavigation(ctx, &repository.NavigationEvent{
			ID:          e.newID(),
			ExecutionID: executionID,
			ActionType:  action,
			ActionData:  value.Map{},
			Timestamp:   now,
		})
	})
	if txErr != nil {
		return nil, txErr
	}
	return execution, nil
}

func (e *Engine) terminate(ctx context.Context, executionID string, to repository.ExecutionStatus, action repository.ActionType, evType events.Type) (*repository.Execution, error) {
	return e.terminateWithData(ctx, executionID, to, action, evType, value.Map{})
}

func (e *Engine) terminateWithData(ctx context.Context, executionID string, to repository.ExecutionStatus, action repository.ActionType, evType events.Type, actionData value.Map) (*repository.Execution, error) {
	execution, _, _, err := e.repo.LoadExecution(ctx, executionID, repository.ExecutionLoadOptions{})
	if err != nil {
		return nil, err
	}
	if err := checkTransition(execution.Status, to); err != nil {
		return nil, err
	}

	held := reservationsFromExecutionData(execution.ExecutionData)
	now := e.now()
	totalMinutes := int(now.Sub(execution.StartedAt).Minutes())

	txErr := e.withTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		execution.Status = to
		execution.CompletedAt = &now
		execution.TotalDurationMinutes = &totalMinutes
		if err := tx.UpdateExecution(ctx, execution); err != nil {
			return err
		}
		return tx.AppendNavigation(ctx, &repository.NavigationEvent{
			ID:          e.newID(),
			ExecutionID: executionID,
			ActionType:  action,
			ActionData:  actionData,
			Timestamp:   now,
		})
	})
	if txErr != nil {
		return nil, txErr
	}

	// Executions that terminate always release reservations regardless of
	// status (§4.7); release failures are logged, not surfaced, since the
	// state transition has already committed.
	if releaseErr := e.coordinator.Release(ctx, held); releaseErr != nil {
		e.log.Warn("failed to fully release reservations on terminate", logging.NewField("executionId", executionID), logging.NewField("error", releaseErr.Error()))
	}

	if evType != "" {
		e.publish(evType, executionID, value.Map{})
	}
	return execution, nil
}
