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

	"workflowforge/pkg/errs"
	"workflowforge/pkg/graphalgo"
	"workflowforge/pkg/repository"
	"workflowforge/pkg/value"
)

// NavigateTo moves the current step to targetStepID (§4.5.4). Allowed only
// while the execution is active. The target must belong to the same
// workflow (B4) and be reachable via zero or more Connection edges from
// some step that is currently active or has been completed, guarding
// against skipping hard prerequisites.
func (e *Engine) NavigateTo(ctx context.Context, executionID, targetStepID string) (*repository.Execution, error) {
	execution, stepExecs, _, err := e.repo.LoadExecution(ctx, executionID, repository.ExecutionLoadOptions{IncludeStepExecutions: true})
	if err != nil {
		return nil, err
	}
	if execution.Status != repository.ExecutionActive {
		return nil, errs.Newf(errs.InvalidStateTransition, "execution %q is not active", executionID)
	}

	w, err := e.repo.LoadWorkflow(ctx, execution.WorkflowID, repository.FullWorkflow())
	if err != nil {
		return nil, err
	}
	targetStep := w.StepByID(targetStepID)
	if targetStep == nil {
		return nil, errs.Newf(errs.Validation, "step %q does not belong to workflow %q", targetStepID, execution.WorkflowID)
	}

	reachable := false
	for _, source := range enteredStepIDs(execution, stepExecs) {
		if source == targetStepID {
			reachable = true
			break
		}
		if _, ok := graphalgo.ShortestPath(w, source, targetStepID); ok {
			reachable = true
			break
		}
	}
	if !reachable {
		return nil, errs.Newf(errs.Validation, "step %q is not reachable from any entered step", targetStepID)
	}

	now := e.now()
	txErr := e.withTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		if execution.CurrentStepID != nil {
			if prev := findStepExecution(stepExecs, *execution.CurrentStepID); prev != nil && prev.Status == repository.StepExecActive {
				prev.Status = repository.StepExecReady
				if err := tx.UpsertStepExecution(ctx, prev); err != nil {
					return err
				}
			}
		}

		target := findStepExecution(stepExecs, targetStepID)
		if target == nil {
			target = &repository.StepExecution{
				ID:          e.newID(),
				ExecutionID: executionID,
				StepID:      targetStepID,
				StepData:    value.Map{},
			}
		}
		target.Status = repository.StepExecActive
		target.StartedAt = &now
		if err := tx.UpsertStepExecution(ctx, target); err != nil {
			return err
		}

		execution.CurrentStepID = &targetStepID
		if err := tx.UpdateExecution(ctx, execution); err != nil {
			return err
		}

		return tx.AppendNavigation(ctx, &repository.NavigationEvent{
			ID:          e.newID(),
			ExecutionID: executionID,
			StepID:      &targetStepID,
			ActionType:  repository.ActionNavigateTo,
			ActionData:  value.Map{},
			Timestamp:   now,
		})
	})
	if txErr != nil {
		return nil, txErr
	}

	return execution, nil
}

// enteredStepIDs returns the current step (if set) plus every step that has
// a completed StepExecution, the candidate source set §4.5.4 allows
// navigation from.
func enteredStepIDs(execution *repository.Execution, stepExecs []*repository.StepExecution) []string {
	var ids []string
	if execution.CurrentStepID != nil {
		ids = append(ids, *execution.CurrentStepID)
	}
	for _, se := range stepExecs {
		if se.Status == repository.StepExecCompleted {
			ids = append(ids, se.StepID)
		}
	}
	return ids
}
