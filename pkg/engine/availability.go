// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package engine

import (
	"workflowforge/pkg/condition"
	"workflowforge/pkg/graph"
	"workflowforge/pkg/graphalgo"
	"workflowforge/pkg/navigator"
	"workflowforge/pkg/repository"
)

// GetNextAvailableSteps is the read-only projection from §6: the steps an
// execution could move into next, without performing any mutation. It is
// the union of every StepExecution already sitting in status ready (parallel
// branches opened by a prior CompleteStep, §4.5.3) and, when the current
// step has been completed, the connections NextStepSelection would promote
// from it.
func (e *Engine) GetNextAvailableSteps(w *graph.Workflow, execution *repository.Execution, stepExecs []*repository.StepExecution) []*graph.Step {
	seen := map[string]bool{}
	var stepIDs []string

	addID := func(id string) {
		if !seen[id] {
			seen[id] = true
			stepIDs = append(stepIDs, id)
		}
	}

	for _, se := range stepExecs {
		if se.Status == repository.StepExecReady {
			addID(se.StepID)
		}
	}

	if execution.CurrentStepID != nil {
		if cur := findStepExecution(stepExecs, *execution.CurrentStepID); cur != nil && cur.Status == repository.StepExecCompleted {
			if step := w.StepByID(cur.StepID); step != nil {
				ctx := condition.Context{Ctx: execution.ExecutionData, Last: cur.StepData}
				for _, conn := range graphalgo.NextSteps(w, step.ID, ctx, e.log) {
					addID(conn.TargetStepID)
				}
			}
		}
	}

	steps := make([]*graph.Step, 0, len(stepIDs))
	for _, id := range stepIDs {
		if s := w.StepByID(id); s != nil {
			steps = append(steps, s)
		}
	}
	return steps
}

// NavigationContext is the read-only projection of §6's GetNavigationContext:
// the current step (if any) and its StepGuidance, the navigator's suggested
// Guidance, and the set GetNextAvailableSteps would return. It performs no
// mutation and is safe to call at any point in an execution's lifecycle.
type NavigationContext struct {
	CurrentStep  *graph.Step
	StepGuidance *navigator.StepGuidance
	Guidance     navigator.Guidance
	NextSteps    []*graph.Step
}

// GetNavigationContext assembles a NavigationContext for execution against w.
func (e *Engine) GetNavigationContext(w *graph.Workflow, execution *repository.Execution, stepExecs []*repository.StepExecution) NavigationContext {
	var currentStep *graph.Step
	var stepGuidance *navigator.StepGuidance

	if execution.CurrentStepID != nil {
		currentStep = w.StepByID(*execution.CurrentStepID)
		if currentStep != nil {
			described := navigator.DescribeStep(currentStep)
			stepGuidance = &described
		}
	}

	complete := false
	if currentStep != nil {
		complete = e.IsWorkflowComplete(w, execution, stepExecs, currentStep)
	}

	return NavigationContext{
		CurrentStep:  currentStep,
		StepGuidance: stepGuidance,
		Guidance:     navigator.Suggest(w, execution, stepExecs, complete),
		NextSteps:    e.GetNextAvailableSteps(w, execution, stepExecs),
	}
}
