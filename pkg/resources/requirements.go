// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package resources

import "workflowforge/pkg/graph"

// Requirement is an aggregated material or tool need across a workflow's
// steps (§4.7's AnalyzeRequirements). Documentation resources are not
// reservable against the oracle and are omitted.
type Requirement struct {
	Kind     graph.ResourceKind // ResourceMaterial or ResourceTool
	RefID    string
	Quantity float64 // summed quantity for materials; summed usage minutes for tools
	Required bool    // true if any referencing StepResource has IsOptional=false
	StepIDs  []string
}

// AnalyzeRequirements sums per-materialId quantities and per-toolId usage
// minutes across every Step's resources, tagging each aggregate required
// when at least one referencing StepResource is non-optional.
func AnalyzeRequirements(w *graph.Workflow) []Requirement {
	index := make(map[string]*Requirement)
	var order []string

	get := func(kind graph.ResourceKind, refID string) *Requirement {
		key := string(kind) + ":" + refID
		req, ok := index[key]
		if !ok {
			req = &Requirement{Kind: kind, RefID: refID}
			index[key] = req
			order = append(order, key)
		}
		return req
	}

	for _, s := range w.Steps {
		for _, r := range s.Resources {
			switch r.ResourceKind {
			case graph.ResourceMaterial:
				if r.MaterialID == nil {
					continue
				}
				req := get(graph.ResourceMaterial, *r.MaterialID)
				if r.Quantity != nil {
					req.Quantity += *r.Quantity
				}
				if !r.IsOptional {
					req.Required = true
				}
				req.StepIDs = append(req.StepIDs, s.ID)
			case graph.ResourceTool:
				if r.ToolID == nil {
					continue
				}
				req := get(graph.ResourceTool, *r.ToolID)
				if s.EstimatedDuration != nil {
					req.Quantity += float64(*s.EstimatedDuration)
				}
				if !r.IsOptional {
					req.Required = true
				}
				req.StepIDs = append(req.StepIDs, s.ID)
			case graph.ResourceDocumentation:
				// not reservable; surfaced only via PrepareStep.
			}
		}
	}

	out := make([]Requirement, 0, len(order))
	for _, key := range order {
		out = append(out, *index[key])
	}
	return out
}
