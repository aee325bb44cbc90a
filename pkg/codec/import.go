// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package codec

import (
	"context"
	"fmt"

	"workflowforge/pkg/errs"
	"workflowforge/pkg/graph"
	"workflowforge/pkg/resources"
)

// ImportResult is the outcome of Import: the assembled Workflow plus any
// non-fatal warnings accumulated while resolving connections and resource
// references (§4.8).
type ImportResult struct {
	Workflow *graph.Workflow
	Warnings []string
}

// Import assembles a Workflow from env (§4.8): steps are created in input
// order while remembering localId -> new step ID; resources and decision
// options attach to their owning step; outcomes are created; connections
// whose endpoints don't resolve are dropped and reported as warnings.
// Material/tool references without an ID are resolved by name against
// oracle; an unresolved name becomes an optional resource with a warning.
// newID mints every new identifier. Import performs no I/O itself — the
// caller is expected to persist the returned Workflow inside one
// repository transaction, matching "whole import is one transaction".
func Import(ctx context.Context, env Envelope, newID func() string, oracle resources.Oracle) (*ImportResult, error) {
	if env.Workflow.Name == "" {
		return nil, errs.New(errs.Validation, "envelope workflow.name is required")
	}

	w := &graph.Workflow{
		ID:                  newID(),
		Name:                env.Workflow.Name,
		Description:         env.Workflow.Description,
		Status:              graph.StatusDraft,
		HasMultipleOutcomes: env.Workflow.HasMultipleOutcomes,
		EstimatedDuration:   env.Workflow.EstimatedDuration,
		DifficultyLevel:     env.Workflow.DifficultyLevel,
		Visibility:          graph.VisibilityPrivate,
		Version:             1,
	}

	result := &ImportResult{Workflow: w}

	localToNew := make(map[string]string, len(env.Workflow.Steps))
	for _, sd := range env.Workflow.Steps {
		localToNew[sd.LocalID] = newID()
	}

	for _, sd := range env.Workflow.Steps {
		step := &graph.Step{
			ID:                localToNew[sd.LocalID],
			WorkflowID:        w.ID,
			Name:              sd.Name,
			Instructions:      sd.Instructions,
			DisplayOrder:      sd.DisplayOrder,
			StepType:          sd.StepType,
			EstimatedDuration: sd.EstimatedDuration,
			IsMilestone:       sd.IsMilestone,
			IsDecisionPoint:   sd.IsDecisionPoint,
			IsOutcome:         sd.IsOutcome,
			ConditionLogic:    sd.ConditionLogic,
		}
		if sd.ParentLocalID != nil {
			if mapped, ok := localToNew[*sd.ParentLocalID]; ok {
				step.ParentStepID = &mapped
			} else {
				result.Warnings = append(result.Warnings, fmt.Sprintf("step %q: parentLocalId %q does not match any step, dropped", sd.Name, *sd.ParentLocalID))
			}
		}

		for _, rd := range sd.Resources {
			res, warning := resolveResource(ctx, rd, oracle)
			res.ID = newID()
			res.StepID = step.ID
			step.Resources = append(step.Resources, res)
			if warning != "" {
				result.Warnings = append(result.Warnings, fmt.Sprintf("step %q: %s", sd.Name, warning))
			}
		}
		for _, dd := range sd.DecisionOptions {
			step.DecisionOptions = append(step.DecisionOptions, &graph.DecisionOption{
				ID:           newID(),
				StepID:       step.ID,
				OptionText:   dd.OptionText,
				ResultAction: dd.ResultAction,
				DisplayOrder: dd.DisplayOrder,
				IsDefault:    dd.IsDefault,
			})
		}

		w.Steps = append(w.Steps, step)
	}

	for _, od := range env.Workflow.Outcomes {
		w.Outcomes = append(w.Outcomes, &graph.Outcome{
			ID:              newID(),
			WorkflowID:      w.ID,
			Name:            od.Name,
			DisplayOrder:    od.DisplayOrder,
			IsDefault:       od.IsDefault,
			SuccessCriteria: od.SuccessCriteria,
		})
	}

	for _, cd := range env.Workflow.Connections {
		src, srcOK := localToNew[cd.SourceLocalID]
		tgt, tgtOK := localToNew[cd.TargetLocalID]
		if !srcOK || !tgtOK {
			result.Warnings = append(result.Warnings, fmt.Sprintf("connection %s -> %s: endpoint not found, dropped", cd.SourceLocalID, cd.TargetLocalID))
			continue
		}
		w.Connections = append(w.Connections, &graph.Connection{
			ID:             newID(),
			SourceStepID:   src,
			TargetStepID:   tgt,
			ConnectionType: cd.ConnectionType,
			Condition:      cd.Condition,
			DisplayOrder:   cd.DisplayOrder,
			IsDefault:      cd.IsDefault,
		})
	}

	report := graph.Validate(w, false)
	if !report.OK() {
		return nil, errs.WithFields(errs.Validation, "imported envelope failed structural validation", report.Errors...)
	}
	result.Warnings = append(result.Warnings, report.Warnings...)

	return result, nil
}

// resolveResource builds a StepResource from rd, resolving a material or
// tool name against oracle when no numeric ID is present. An unresolved
// name degrades to an optional resource with a warning rather than
// failing the whole import (§4.8).
func resolveResource(ctx context.Context, rd ResourceDoc, oracle resources.Oracle) (*graph.StepResource, string) {
	res := &graph.StepResource{
		ResourceKind:    rd.ResourceKind,
		MaterialID:      rd.MaterialID,
		ToolID:          rd.ToolID,
		DocumentationID: rd.DocumentationID,
		Quantity:        rd.Quantity,
		Unit:            rd.Unit,
		IsOptional:      rd.IsOptional,
	}

	switch rd.ResourceKind {
	case graph.ResourceMaterial:
		if res.MaterialID == nil && rd.MaterialName != "" {
			if oracle != nil {
				if id, found, err := oracle.FindMaterial(ctx, rd.MaterialName); err == nil && found {
					res.MaterialID = &id
					return res, ""
				}
			}
			res.IsOptional = true
			return res, fmt.Sprintf("material %q could not be resolved, marked optional", rd.MaterialName)
		}
	case graph.ResourceTool:
		if res.ToolID == nil && rd.ToolName != "" {
			if oracle != nil {
				if id, found, err := oracle.FindTool(ctx, rd.ToolName); err == nil && found {
					res.ToolID = &id
					return res, ""
				}
			}
			res.IsOptional = true
			return res, fmt.Sprintf("tool %q could not be resolved, marked optional", rd.ToolName)
		}
	}
	return res, ""
}
