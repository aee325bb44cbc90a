// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package codec

import (
	"sort"

	"workflowforge/pkg/graph"
)

// Export converts w into the canonical envelope (§4.8). LocalIDs are set
// equal to each Step's pre-export storage ID, which is what makes the
// round-trip property (R1) checkable without a live mapping table: Export
// followed by Import on a fresh graph produces new storage IDs, but the
// localId space the envelope carries is stable for as long as w is not
// re-exported after a further edit.
func Export(w *graph.Workflow, originalWorkflowID *string, exportedAt string) Envelope {
	steps := make([]StepDoc, 0, len(w.Steps))
	for _, s := range w.Steps {
		steps = append(steps, stepToDoc(s))
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].DisplayOrder < steps[j].DisplayOrder })

	outcomes := make([]OutcomeDoc, 0, len(w.Outcomes))
	for _, o := range w.Outcomes {
		outcomes = append(outcomes, OutcomeDoc{
			Name:            o.Name,
			DisplayOrder:    o.DisplayOrder,
			IsDefault:       o.IsDefault,
			SuccessCriteria: o.SuccessCriteria,
		})
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].DisplayOrder < outcomes[j].DisplayOrder })

	conns := make([]ConnDoc, 0, len(w.Connections))
	for _, c := range w.Connections {
		conns = append(conns, ConnDoc{
			SourceLocalID:  c.SourceStepID,
			TargetLocalID:  c.TargetStepID,
			ConnectionType: c.ConnectionType,
			Condition:      c.Condition,
			DisplayOrder:   c.DisplayOrder,
			IsDefault:      c.IsDefault,
		})
	}
	// Ordered by (sourceLocalId, displayOrder, targetLocalId) per §4.8.
	sort.Slice(conns, func(i, j int) bool {
		a, b := conns[i], conns[j]
		if a.SourceLocalID != b.SourceLocalID {
			return a.SourceLocalID < b.SourceLocalID
		}
		if a.DisplayOrder != b.DisplayOrder {
			return a.DisplayOrder < b.DisplayOrder
		}
		return a.TargetLocalID < b.TargetLocalID
	})

	return Envelope{
		PresetInfo: PresetInfo{Name: w.Name, Description: w.Description, Difficulty: w.DifficultyLevel, EstimatedTime: w.EstimatedDuration},
		Workflow: WorkflowDoc{
			Name:                w.Name,
			Description:         w.Description,
			HasMultipleOutcomes: w.HasMultipleOutcomes,
			EstimatedDuration:   w.EstimatedDuration,
			DifficultyLevel:     w.DifficultyLevel,
			Steps:               steps,
			Outcomes:            outcomes,
			Connections:         conns,
		},
		RequiredResources: requiredResourcesOf(w),
		Metadata: Metadata{
			FormatVersion:      FormatVersion,
			ExportedAt:         exportedAt,
			OriginalWorkflowID: originalWorkflowID,
		},
	}
}

func stepToDoc(s *graph.Step) StepDoc {
	doc := StepDoc{
		LocalID:           s.ID,
		Name:              s.Name,
		Instructions:      s.Instructions,
		DisplayOrder:      s.DisplayOrder,
		StepType:          s.StepType,
		EstimatedDuration: s.EstimatedDuration,
		ParentLocalID:     s.ParentStepID,
		IsMilestone:       s.IsMilestone,
		IsDecisionPoint:   s.IsDecisionPoint,
		IsOutcome:         s.IsOutcome,
		ConditionLogic:    s.ConditionLogic,
	}
	for _, r := range s.Resources {
		doc.Resources = append(doc.Resources, ResourceDoc{
			ResourceKind:    r.ResourceKind,
			MaterialID:      r.MaterialID,
			ToolID:          r.ToolID,
			DocumentationID: r.DocumentationID,
			Quantity:        r.Quantity,
			Unit:            r.Unit,
			IsOptional:      r.IsOptional,
		})
	}
	opts := append([]*graph.DecisionOption(nil), s.DecisionOptions...)
	sort.Slice(opts, func(i, j int) bool { return opts[i].DisplayOrder < opts[j].DisplayOrder })
	for _, d := range opts {
		doc.DecisionOptions = append(doc.DecisionOptions, DecisionOptDoc{
			OptionText:   d.OptionText,
			ResultAction: d.ResultAction,
			DisplayOrder: d.DisplayOrder,
			IsDefault:    d.IsDefault,
		})
	}
	return doc
}

func requiredResourcesOf(w *graph.Workflow) RequiredResources {
	var rr RequiredResources
	seenMaterial := map[string]bool{}
	seenTool := map[string]bool{}
	seenDoc := map[string]bool{}
	for _, s := range w.Steps {
		for _, r := range s.Resources {
			switch r.ResourceKind {
			case graph.ResourceMaterial:
				if r.MaterialID != nil && !seenMaterial[*r.MaterialID] {
					seenMaterial[*r.MaterialID] = true
					rr.Materials = append(rr.Materials, *r.MaterialID)
				}
			case graph.ResourceTool:
				if r.ToolID != nil && !seenTool[*r.ToolID] {
					seenTool[*r.ToolID] = true
					rr.Tools = append(rr.Tools, *r.ToolID)
				}
			case graph.ResourceDocumentation:
				if r.DocumentationID != nil && !seenDoc[*r.DocumentationID] {
					seenDoc[*r.DocumentationID] = true
					rr.Documentation = append(rr.Documentation, *r.DocumentationID)
				}
			}
		}
	}
	return rr
}
