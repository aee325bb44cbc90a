// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package graph

import (
	"fmt"

	"workflowforge/pkg/errs"
)

// Report is the structured result of Validate: separate error and warning
// buckets so callers can distinguish a hard validation failure from
// advisory findings.
type Report struct {
	Errors   []errs.FieldError
	Warnings []string
}

// OK reports whether the workflow has no validation errors (warnings do not
// block anything).
func (r Report) OK() bool { return len(r.Errors) == 0 }

// Validate checks structural invariants (I1, I2) unconditionally and
// publication-readiness invariants (I3, I4 — cycle-freedom and
// reachability) when forPublication is true, matching §4.1's distinction
// between a draft (may violate I3/I4) and a workflow about to be published.
// It also reports warnings: orphan steps, non-outcome steps with no
// outgoing connection, and multiple default connections from one source.
func Validate(w *Workflow, forPublication bool) Report {
	var report Report

	stepByID := make(map[string]*Step, len(w.Steps))
	for _, s := range w.Steps {
		stepByID[s.ID] = s
	}

	// I1: every Connection's source and target share workflowId.
	for _, c := range w.Connections {
		src, srcOK := stepByID[c.SourceStepID]
		tgt, tgtOK := stepByID[c.TargetStepID]
		if !srcOK || !tgtOK {
			report.Errors = append(report.Errors, errs.FieldError{
				Path:    fmt.Sprintf("connection[%s]", c.ID),
				Message: "source or target step not found in workflow",
			})
			continue
		}
		if src.WorkflowID != w.ID || tgt.WorkflowID != w.ID {
			report.Errors = append(report.Errors, errs.FieldError{
				Path:    fmt.Sprintf("connection[%s]", c.ID),
				Message: "source and target must belong to the same workflow",
			})
		}
		// I2: no self-loops. NewConnection already rejects this, but
		// Validate also covers graphs assembled without the constructor
		// (e.g. decoded from storage or an import envelope).
		if c.SourceStepID == c.TargetStepID {
			report.Errors = append(report.Errors, errs.FieldError{
				Path:    fmt.Sprintf("connection[%s]", c.ID),
				Message: "self-loop connections are not permitted",
			})
		}
	}

	// Warning: multiple isDefault connections from one source.
	defaultCount := make(map[string]int)
	for _, c := range w.Connections {
		if c.IsDefault {
			defaultCount[c.SourceStepID]++
		}
	}
	for stepID, n := range defaultCount {
		if n > 1 {
			report.Warnings = append(report.Warnings, fmt.Sprintf("step %s has %d default connections, expected at most 1", stepID, n))
		}
	}

	adjacency := buildAdjacency(w)

	// Warning: non-outcome steps without outgoing edges (this becomes a
	// hard error under forPublication, checked again below against I4).
	for _, s := range w.Steps {
		if len(adjacency[s.ID]) == 0 && !s.IsOutcome {
			report.Warnings = append(report.Warnings, fmt.Sprintf("step %s has no outgoing connections and is not an outcome", s.Name))
		}
	}

	// Warning: orphan steps not reachable from the initial set (a hard
	// error under forPublication, checked again below against I4).
	initial := InitialSteps(w)
	reachable := bfsReachable(adjacency, initial)
	for _, s := range w.Steps {
		if !reachable[s.ID] {
			report.Warnings = append(report.Warnings, fmt.Sprintf("step %s is not reachable from any initial step", s.Name))
		}
	}

	if !forPublication {
		return report
	}

	// I3: no directed cycle.
	if cycle := detectCycle(w, adjacency); cycle != nil {
		report.Errors = append(report.Errors, errs.FieldError{
			Path:    "connections",
			Message: fmt.Sprintf("cycle detected: %v", cycle),
		})
	}

	// I4: every non-outcome step reachable from the initial set; every step
	// without outgoing connections must be an outcome.
	for _, s := range w.Steps {
		if !reachable[s.ID] {
			report.Errors = append(report.Errors, errs.FieldError{
				Path:    fmt.Sprintf("step[%s]", s.ID),
				Message: fmt.Sprintf("step %q is not reachable from any initial step", s.Name),
			})
		}
		if len(adjacency[s.ID]) == 0 && !s.IsOutcome {
			report.Errors = append(report.Errors, errs.FieldError{
				Path:    fmt.Sprintf("step[%s]", s.ID),
				Message: fmt.Sprintf("step %q has no outgoing connections but is not marked as an outcome", s.Name),
			})
		}
	}

	return report
}

// InitialSteps returns w's steps with no incoming Connection and no
// ParentStepID, falling back to the step with the smallest DisplayOrder
// when that set is empty (§4.3).
func InitialSteps(w *Workflow) []*Step {
	var initial []*Step
	for _, s := range w.Steps {
		if s.ParentStepID != nil {
			continue
		}
		if len(w.IncomingConnections(s.ID)) == 0 {
			initial = append(initial, s)
		}
	}
	if len(initial) > 0 {
		return initial
	}
	if len(w.Steps) == 0 {
		return nil
	}
	smallest := w.Steps[0]
	for _, s := range w.Steps[1:] {
		if s.DisplayOrder < smallest.DisplayOrder {
			smallest = s
		}
	}
	return []*Step{smallest}
}

func buildAdjacency(w *Workflow) map[string][]string {
	adj := make(map[string][]string, len(w.Steps))
	for _, s := range w.Steps {
		adj[s.ID] = nil
	}
	for _, c := range w.Connections {
		adj[c.SourceStepID] = append(adj[c.SourceStepID], c.TargetStepID)
	}
	return adj
}

func bfsReachable(adjacency map[string][]string, from []*Step) map[string]bool {
	visited := make(map[string]bool, len(adjacency))
	queue := make([]string, 0, len(from))
	for _, s := range from {
		if !visited[s.ID] {
			visited[s.ID] = true
			queue = append(queue, s.ID)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[cur] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return visited
}

// detectCycle runs DFS with a recursion stack and returns the first cycle
// found as an ordered slice of step IDs closing on itself, or nil.
func detectCycle(w *Workflow, adjacency map[string][]string) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(w.Steps))
	parent := make(map[string]string, len(w.Steps))

	var cycle []string
	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		for _, next := range adjacency[id] {
			switch color[next] {
			case white:
				parent[next] = id
				if visit(next) {
					return true
				}
			case gray:
				cycle = []string{next}
				for cur := id; cur != next; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, next)
				reverse(cycle)
				return true
			}
		}
		color[id] = black
		return false
	}

	for _, s := range w.Steps {
		if color[s.ID] == white {
			if visit(s.ID) {
				return cycle
			}
		}
	}
	return nil
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
