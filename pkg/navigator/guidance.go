// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package navigator

import (
	"fmt"

	"workflowforge/pkg/condition"
	"workflowforge/pkg/graph"
	"workflowforge/pkg/graphalgo"
	"workflowforge/pkg/logging"
	"workflowforge/pkg/repository"
	"workflowforge/pkg/value"
)

// GuidanceAction is the machine-readable action a caller should take next.
type GuidanceAction string

const (
	ActionNavigateToStep   GuidanceAction = "navigate_to_step"
	ActionManualSelection  GuidanceAction = "manual_selection"
	ActionStartStep        GuidanceAction = "start_step"
	ActionMakeDecision     GuidanceAction = "make_decision"
	ActionCompleteStep     GuidanceAction = "complete_step"
	ActionWorkflowComplete GuidanceAction = "workflow_complete"
)

// Guidance is the derived (execution -> {action, stepId?, message})
// projection of §4.6. Message is an additive, free-text hint (§SPEC_FULL
// supplemented features) and must not be parsed by callers.
type Guidance struct {
	Action  GuidanceAction
	StepID  *string
	Message string
}

// Suggest computes Guidance from the current StepExecution status,
// matching §4.6's bullet list exactly, then layers on a short human
// message for the chosen action.
func Suggest(w *graph.Workflow, execution *repository.Execution, stepExecs []*repository.StepExecution, workflowComplete bool) Guidance {
	if execution.CurrentStepID == nil {
		initial := graph.InitialSteps(w)
		if len(initial) == 1 {
			id := initial[0].ID
			return Guidance{Action: ActionNavigateToStep, StepID: &id, Message: fmt.Sprintf("Start with %q.", initial[0].Name)}
		}
		return Guidance{Action: ActionManualSelection, Message: "Multiple initial steps are available; choose one to begin."}
	}

	current := findStepExecution(stepExecs, *execution.CurrentStepID)
	step := w.StepByID(*execution.CurrentStepID)

	if current == nil || step == nil {
		return Guidance{Action: ActionManualSelection, Message: "No active step found; choose a step to navigate to."}
	}

	switch current.Status {
	case repository.StepExecReady:
		return Guidance{Action: ActionStartStep, StepID: &step.ID, Message: fmt.Sprintf("%q is ready to start.", step.Name)}
	case repository.StepExecActive:
		if step.IsDecisionPoint {
			return Guidance{Action: ActionMakeDecision, StepID: &step.ID, Message: fmt.Sprintf("%q requires a decision before continuing.", step.Name)}
		}
		return Guidance{Action: ActionCompleteStep, StepID: &step.ID, Message: fmt.Sprintf("Complete %q to continue.", step.Name)}
	case repository.StepExecCompleted:
		if workflowComplete {
			return Guidance{Action: ActionWorkflowComplete, Message: "All reachable steps are complete."}
		}
		if next := nextCandidate(w, step, execution.ExecutionData, current.StepData); next != nil {
			return Guidance{Action: ActionNavigateToStep, StepID: &next.ID, Message: fmt.Sprintf("Navigate to %q to continue.", next.Name)}
		}
		return Guidance{Action: ActionManualSelection, Message: "No next step could be determined; choose one to navigate to."}
	default:
		return Guidance{Action: ActionManualSelection, Message: "Choose a step to navigate to."}
	}
}

// nextCandidate returns the first step NextStepSelection would promote from
// completedStep, the step a StepExecCompleted current step's guidance should
// point to rather than the completed step itself.
func nextCandidate(w *graph.Workflow, completedStep *graph.Step, executionData, lastStepData value.Map) *graph.Step {
	ctx := condition.Context{Ctx: executionData, Last: lastStepData}
	conns := graphalgo.NextSteps(w, completedStep.ID, ctx, logging.NewLogger(false))
	if len(conns) == 0 {
		return nil
	}
	return w.StepByID(conns[0].TargetStepID)
}

func findStepExecution(execs []*repository.StepExecution, stepID string) *repository.StepExecution {
	for _, se := range execs {
		if se.StepID == stepID {
			return se
		}
	}
	return nil
}
