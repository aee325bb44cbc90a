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
	"sort"

	"workflowforge/pkg/errs"
	"workflowforge/pkg/events"
	"workflowforge/pkg/graph"
	"workflowforge/pkg/repository"
	"workflowforge/pkg/value"
)

// Start creates a new Execution of workflowID for userID (§4.5.2). If
// selectedOutcomeID is non-nil it must name an Outcome belonging to the
// workflow. Reservations are requested from the resource coordinator
// before any row is persisted; under PolicyStrict an unavailable required
// resource aborts with errs.Unreserved and leaves no trace.
func (e *Engine) Start(ctx context.Context, workflowID, userID string, selectedOutcomeID *string) (*repository.Execution, error) {
	w, err := e.repo.LoadWorkflow(ctx, workflowID, repository.FullWorkflow())
	if err != nil {
		return nil, err
	}
	if w.Status != graph.StatusActive && w.Status != graph.StatusPublished {
		return nil, errs.Newf(errs.BusinessRule, "workflow %q is not startable in status %q", workflowID, w.Status)
	}
	if selectedOutcomeID != nil {
		found := false
		for _, o := range w.Outcomes {
			if o.ID == *selectedOutcomeID {
				found = true
				break
			}
		}
		if !found {
			return nil, errs.Newf(errs.Validation, "selectedOutcomeId %q does not belong to workflow %q", *selectedOutcomeID, workflowID)
		}
	}

	held, warnings, err := e.coordinator.Reserve(ctx, w, e.policy)
	if err != nil {
		return nil, err
	}

	initial := graph.InitialSteps(w)
	if len(initial) == 0 {
		e.coordinator.Release(ctx, held)
		return nil, errs.Newf(errs.BusinessRule, "workflow %q has no initial step", workflowID)
	}
	sort.Slice(initial, func(i, j int) bool { return initial[i].DisplayOrder < initial[j].DisplayOrder })
	currentStepID := initial[0].ID

	execData := value.Map{}
	execData = execData.Set("reservations", reservationsToValue(held))
	if len(warnings) > 0 {
		warningValues := make([]value.Value, len(warnings))
		for i, wmsg := range warnings {
			warningValues[i] = value.String(wmsg)
		}
		execData = execData.Set("reservationWarnings", value.List(warningValues))
	}

	execution := &repository.Execution{
		ID:                e.newID(),
		WorkflowID:        workflowID,
		StartedBy:         userID,
		Status:            repository.ExecutionActive,
		StartedAt:         e.now(),
		SelectedOutcomeID: selectedOutcomeID,
		CurrentStepID:     &currentStepID,
		ExecutionData:     execData,
	}

	txErr := e.withTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.CreateExecution(ctx, execution); err != nil {
			return err
		}
		for _, s := range initial {
			se := &repository.StepExecution{
				ID:          e.newID(),
				ExecutionID: execution.ID,
				StepID:      s.ID,
				Status:      repository.StepExecReady,
				StepData:    value.Map{},
			}
			if s.ID == currentStepID {
				se.Status = repository.StepExecActive
				started := e.now()
				se.StartedAt = &started
			}
			if err := tx.UpsertStepExecution(ctx, se); err != nil {
				return err
			}
		}
		return tx.AppendNavigation(ctx, &repository.NavigationEvent{
			ID:          e.newID(),
			ExecutionID: execution.ID,
			StepID:      &currentStepID,
			ActionType:  repository.ActionStarted,
			ActionData:  value.Map{},
			Timestamp:   e.now(),
		})
	})
	if txErr != nil {
		e.coordinator.Release(ctx, held)
		return nil, txErr
	}

	e.publish(events.ExecutionStarted, execution.ID, value.Map{"workflowId": value.String(workflowID)})
	return execution, nil
}
