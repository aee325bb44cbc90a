// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package engine

import (
	"workflowforge/pkg/graph"
	"workflowforge/pkg/repository"
)

// Progress is the on-demand progress summary of §4.5.8: the ratio of
// completed to visited steps, plus an estimated remaining duration when
// both the workflow's estimatedDuration and the execution's elapsed time
// are known.
type Progress struct {
	VisitedSteps       int
	CompletedSteps     int
	Ratio              float64
	ElapsedMinutes     int
	EstimatedRemaining *int
}

// GetProgress computes a Progress snapshot for execution against w, given
// its loaded StepExecutions.
func (e *Engine) GetProgress(w *graph.Workflow, execution *repository.Execution, stepExecs []*repository.StepExecution) Progress {
	visited := len(stepExecs)
	completed := 0
	for _, se := range stepExecs {
		if se.Status == repository.StepExecCompleted {
			completed++
		}
	}

	ratio := 0.0
	if visited > 0 {
		ratio = float64(completed) / float64(visited)
	}

	endedAt := e.now()
	if execution.CompletedAt != nil {
		endedAt = *execution.CompletedAt
	}
	elapsed := int(endedAt.Sub(execution.StartedAt).Minutes())

	p := Progress{
		VisitedSteps:   visited,
		CompletedSteps: completed,
		Ratio:          ratio,
		ElapsedMinutes: elapsed,
	}

	if w.EstimatedDuration != nil {
		remaining := *w.EstimatedDuration - elapsed
		if remaining < 0 {
			remaining = 0
		}
		remaining = int(float64(remaining) * (1 - ratio))
		if remaining < 0 {
			remaining = 0
		}
		p.EstimatedRemaining = &remaining
	}

	return p
}
