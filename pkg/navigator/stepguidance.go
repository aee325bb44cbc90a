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

	"workflowforge/pkg/graph"
)

// StepGuidance is the richer per-step view supplemented from the original
// system's step guidance: generated tips and warnings keyed off the step's
// type and flags, alongside its decision options. Purely derived from
// already-loaded graph state; it performs no I/O.
type StepGuidance struct {
	Step            *graph.Step
	DecisionOptions []*graph.DecisionOption
	Tips            []string
	Warnings        []string
}

// DescribeStep builds a StepGuidance for step.
func DescribeStep(step *graph.Step) StepGuidance {
	g := StepGuidance{Step: step, DecisionOptions: step.DecisionOptions}
	g.Tips = stepTips(step)
	g.Warnings = stepWarnings(step)
	return g
}

func stepTips(step *graph.Step) []string {
	var tips []string
	switch step.StepType {
	case graph.StepMaterial:
		tips = append(tips, "Confirm all listed materials are on hand before starting.")
	case graph.StepTool:
		tips = append(tips, "Verify required tools are set up and in good condition.")
	case graph.StepTime:
		if step.EstimatedDuration != nil {
			tips = append(tips, fmt.Sprintf("Budget about %d minutes for this step.", *step.EstimatedDuration))
		}
	case graph.StepDecision:
		tips = append(tips, "Review each option's outcome before deciding; this choice affects later steps.")
	}
	if step.IsMilestone {
		tips = append(tips, "This step is a milestone; take a moment to double-check your work before continuing.")
	}
	return tips
}

func stepWarnings(step *graph.Step) []string {
	var warnings []string
	if step.IsDecisionPoint && len(step.DecisionOptions) == 0 {
		warnings = append(warnings, "This decision step has no configured options.")
	}
	if step.IsOutcome && len(step.Resources) > 0 {
		warnings = append(warnings, "Outcome steps should not normally require additional resources.")
	}
	return warnings
}
