// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package catalog

import (
	"context"

	"workflowforge/pkg/errs"
	"workflowforge/pkg/graph"
	"workflowforge/pkg/repository"
)

// DuplicateWorkflow deep-copies id's Steps, Connections, Resources,
// DecisionOptions, and Outcomes into a new Workflow owned by userID, with a
// fresh ID space (§6, R4). The copy is structurally identical to the
// source (same names in displayOrder, same connection set up to the ID
// remap) but shares no identifiers with it.
func (s *Service) DuplicateWorkflow(ctx context.Context, id, newName, userID string, asTemplate bool) (*graph.Workflow, error) {
	src, err := s.repo.LoadWorkflow(ctx, id, repository.FullWorkflow())
	if err != nil {
		return nil, err
	}

	dup := &graph.Workflow{
		ID:                  s.newID(),
		Name:                newName,
		Description:         src.Description,
		Status:              graph.StatusDraft,
		CreatedBy:           userID,
		Visibility:          graph.VisibilityPrivate,
		Version:             1,
		IsTemplate:          asTemplate,
		HasMultipleOutcomes: src.HasMultipleOutcomes,
		EstimatedDuration:   src.EstimatedDuration,
		DifficultyLevel:     src.DifficultyLevel,
		ProjectID:           src.ProjectID,
		ThemeID:             src.ThemeID,
	}

	stepIDMap := make(map[string]string, len(src.Steps))
	for _, step := range src.Steps {
		stepIDMap[step.ID] = s.newID()
	}

	for _, step := range src.Steps {
		newStep := &graph.Step{
			ID:                stepIDMap[step.ID],
			WorkflowID:        dup.ID,
			Name:              step.Name,
			Instructions:      step.Instructions,
			DisplayOrder:      step.DisplayOrder,
			StepType:          step.StepType,
			EstimatedDuration: step.EstimatedDuration,
			IsMilestone:       step.IsMilestone,
			IsDecisionPoint:   step.IsDecisionPoint,
			IsOutcome:         step.IsOutcome,
			ConditionLogic:    step.ConditionLogic,
		}
		if step.ParentStepID != nil {
			if mapped, ok := stepIDMap[*step.ParentStepID]; ok {
				newStep.ParentStepID = &mapped
			}
		}

		for _, r := range step.Resources {
			newStep.Resources = append(newStep.Resources, &graph.StepResource{
				ID:              s.newID(),
				StepID:          newStep.ID,
				ResourceKind:    r.ResourceKind,
				MaterialID:      r.MaterialID,
				ToolID:          r.ToolID,
				DocumentationID: r.DocumentationID,
				Quantity:        r.Quantity,
				Unit:            r.Unit,
				IsOptional:      r.IsOptional,
			})
		}
		for _, d := range step.DecisionOptions {
			newStep.DecisionOptions = append(newStep.DecisionOptions, &graph.DecisionOption{
				ID:           s.newID(),
				StepID:       newStep.ID,
				OptionText:   d.OptionText,
				ResultAction: d.ResultAction,
				DisplayOrder: d.DisplayOrder,
				IsDefault:    d.IsDefault,
			})
		}

		dup.Steps = append(dup.Steps, newStep)
	}

	for _, c := range src.Connections {
		newSource, sourceOK := stepIDMap[c.SourceStepID]
		newTarget, targetOK := stepIDMap[c.TargetStepID]
		if !sourceOK || !targetOK {
			continue
		}
		dup.Connections = append(dup.Connections, &graph.Connection{
			ID:             s.newID(),
			SourceStepID:   newSource,
			TargetStepID:   newTarget,
			ConnectionType: c.ConnectionType,
			Condition:      c.Condition,
			DisplayOrder:   c.DisplayOrder,
			IsDefault:      c.IsDefault,
		})
	}

	for _, o := range src.Outcomes {
		dup.Outcomes = append(dup.Outcomes, &graph.Outcome{
			ID:              s.newID(),
			WorkflowID:      dup.ID,
			Name:            o.Name,
			DisplayOrder:    o.DisplayOrder,
			IsDefault:       o.IsDefault,
			SuccessCriteria: o.SuccessCriteria,
		})
	}

	if report := graph.Validate(dup, false); !report.OK() {
		return nil, errs.WithFields(errs.Validation, "duplicated workflow failed structural validation", report.Errors...)
	}

	if err := s.repo.SaveWorkflow(ctx, dup); err != nil {
		return nil, err
	}
	return dup, nil
}
