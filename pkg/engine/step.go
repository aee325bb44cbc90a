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
	"workflowforge/pkg/errs"
	"workflowforge/pkg/events"
	"workflowforge/pkg/graph"
	"workflowforge/pkg/repository"
	"workflowforge/pkg/value"
)

// CompletionData is the caller-supplied payload for CompleteStep.
// DecisionOptionID is required when the step being completed is a decision
// point (B5) and ignored otherwise.
type CompletionData struct {
	StepData         value.Map
	DecisionOptionID *string
}

// CompleteStep completes the active StepExecution (executionID, stepID),
// applies a decision's resultAction when applicable, appends a completed
// NavigationEvent, and selects the next step(s) (§4.5.3). If no further
// step is selected and the workflow is now complete, the execution is
// transitioned to completed as a follow-up operation.
func (e *Engine) CompleteStep(ctx context.Context, executionID, stepID string, data CompletionData) (*repository.Execution, error) {
	execution, stepExecs, _, err := e.repo.LoadExecution(ctx, executionID, repository.ExecutionLoadOptions{IncludeStepExecutions: true})
	if err != nil {
		return nil, err
	}
	if execution.Status != repository.ExecutionActive {
		return nil, errs.Newf(errs.InvalidStateTransition, "execution %q is not active", executionID)
	}

	target := findStepExecution(stepExecs, stepID)
	if target == nil || target.Status != repository.StepExecActive {
		return nil, errs.Newf(errs.InvalidStateTransition, "step %q does not have an active StepExecution on execution %q", stepID, executionID)
	}

	w, err := e.repo.LoadWorkflow(ctx, execution.WorkflowID, repository.FullWorkflow())
	if err != nil {
		return nil, err
	}
	step := w.StepByID(stepID)
	if step == nil {
		return nil, errs.Newf(errs.NotFound, "step %q not found in workflow %q", stepID, w.ID)
	}

	if data.StepData == nil {
		data.StepData = value.Map{}
	}

	execData := execution.ExecutionData
	var decisionMade bool
	if step.IsDecisionPoint {
		if data.DecisionOptionID == nil {
			return nil, errs.New(errs.Validation, "decisionOptionId is required to complete a decision-point step")
		}
		option := findDecisionOption(step, *data.DecisionOptionID)
		if option == nil {
			return nil, errs.Newf(errs.Validation, "decisionOptionId %q is not an option of step %q", *data.DecisionOptionID, stepID)
		}
		if option.ResultAction != nil && *option.ResultAction != "" {
			execData, err = condition.Apply(*option.ResultAction, execData)
			if err != nil {
				return nil, err
			}
		}
		decisionMade = true
	}

	completedAt := e.now()
	actualMinutes := 0
	if target.StartedAt != nil {
		actualMinutes = int(completedAt.Sub(*target.StartedAt).Minutes())
	}

	nextSelection := e.nav.NextStepSelection(w, step, execData, data.StepData)

	err = e.withTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		target.Status = repository.StepExecCompleted
		target.CompletedAt = &completedAt
		target.ActualDurationMinutes = &actualMinutes
		target.StepData = data.StepData
		if err := tx.UpsertStepExecution(ctx, target); err != nil {
			return err
		}

		if err := tx.AppendNavigation(ctx, &repository.NavigationEvent{
			ID:          e.newID(),
			ExecutionID: executionID,
			StepID:      &stepID,
			ActionType:  repository.ActionCompleted,
			ActionData:  value.Map{},
			Timestamp:   completedAt,
		}); err != nil {
			return err
		}

		if decisionMade {
			if err := tx.AppendNavigation(ctx, &repository.NavigationEvent{
				ID:          e.newID(),
				ExecutionID: executionID,
				StepID:      &stepID,
				ActionType:  repository.ActionDecisionMade,
				ActionData:  value.Map{"decisionOptionId": value.String(*data.DecisionOptionID)},
				Timestamp:   completedAt,
			}); err != nil {
				return err
			}
		}

		var newCurrent *string
		for i, conn := range nextSelection {
			if i > 0 && conn.ConnectionType != graph.ConnParallel {
				// Sequential connections promote only the first candidate;
				// the rest are left un-created until selection repeats (§4.6.4).
				continue
			}

			se := findStepExecution(stepExecs, conn.TargetStepID)
			if se == nil {
				se = &repository.StepExecution{
					ID:          e.newID(),
					ExecutionID: executionID,
					StepID:      conn.TargetStepID,
					Status:      repository.StepExecReady,
					StepData:    value.Map{},
				}
			}

			if i == 0 {
				se.Status = repository.StepExecActive
				started := completedAt
				se.StartedAt = &started
				targetID := conn.TargetStepID
				newCurrent = &targetID
			}

			if err := tx.UpsertStepExecution(ctx, se); err != nil {
				return err
			}
		}

		execution.ExecutionData = execData
		execution.CurrentStepID = newCurrent
		return tx.UpdateExecution(ctx, execution)
	})
	if err != nil {
		return nil, err
	}

	e.publish(events.StepCompleted, executionID, value.Map{"stepId": value.String(stepID)})
	if decisionMade {
		e.publish(events.DecisionMade, executionID, value.Map{"stepId": value.String(stepID), "decisionOptionId": value.String(*data.DecisionOptionID)})
	}

	if execution.CurrentStepID == nil {
		_, allExecs, _, err := e.repo.LoadExecution(ctx, executionID, repository.ExecutionLoadOptions{IncludeStepExecutions: true})
		if err != nil {
			return nil, err
		}
		if e.IsWorkflowComplete(w, execution, allExecs, step) {
			return e.Complete(ctx, executionID)
		}
	}

	return execution, nil
}

// MakeDecision is a convenience wrapper around CompleteStep for decision
// points, matching the Public API surface's distinct MakeDecision entry
// (§6); it is not a separate state transition.
func (e *Engine) MakeDecision(ctx context.Context, executionID, stepID, decisionOptionID string, stepData value.Map) (*repository.Execution, error) {
	return e.CompleteStep(ctx, executionID, stepID, CompletionData{StepData: stepData, DecisionOptionID: &decisionOptionID})
}

func findStepExecution(execs []*repository.StepExecution, stepID string) *repository.StepExecution {
	for _, se := range execs {
		if se.StepID == stepID {
			return se
		}
	}
	return nil
}

func findDecisionOption(step *graph.Step, optionID string) *graph.DecisionOption {
	for _, o := range step.DecisionOptions {
		if o.ID == optionID {
			return o
		}
	}
	return nil
}
