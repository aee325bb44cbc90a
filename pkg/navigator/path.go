// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package navigator

import (
	"workflowforge/pkg/graph"
	"workflowforge/pkg/graphalgo"
)

// OptimalPathResult is the chosen path to an outcome step, with the
// difficulty score supplemented from the original system's
// _calculate_path_difficulty.
type OptimalPathResult struct {
	OutcomeStepID string
	Path          graphalgo.Path
	Difficulty    int
}

// decisionBonusPerStep and difficultyCap mirror the weighting the original
// navigation service applies when scoring path difficulty: each decision
// point traversed adds friction, capped so a long branchy path never
// dwarfs hop count as the primary signal.
const (
	decisionBonusPerStep = 2
	difficultyCap        = 100
)

// OptimalPath computes the shortest path from fromStepID to every outcome
// step and returns the best by hop count, tie-broken by ascending summed
// estimatedDuration (§4.6). The returned Difficulty additionally scores the
// chosen path by length plus a bonus per decision step traversed.
func OptimalPath(w *graph.Workflow, fromStepID string) (OptimalPathResult, bool) {
	var best OptimalPathResult
	found := false

	for _, outcome := range outcomeSteps(w) {
		path, ok := graphalgo.ShortestPath(w, fromStepID, outcome.ID)
		if !ok {
			continue
		}
		if !found || path.Hops < best.Path.Hops ||
			(path.Hops == best.Path.Hops && path.TotalDuration < best.Path.TotalDuration) {
			best = OptimalPathResult{OutcomeStepID: outcome.ID, Path: path}
			found = true
		}
	}

	if !found {
		return OptimalPathResult{}, false
	}

	best.Difficulty = difficultyOf(w, best.Path)
	return best, true
}

func outcomeSteps(w *graph.Workflow) []*graph.Step {
	var out []*graph.Step
	for _, s := range w.Steps {
		if s.IsOutcome {
			out = append(out, s)
		}
	}
	return out
}

func difficultyOf(w *graph.Workflow, path graphalgo.Path) int {
	score := len(path.StepIDs)
	for _, id := range path.StepIDs {
		if s := w.StepByID(id); s != nil && s.IsDecisionPoint {
			score += decisionBonusPerStep
		}
	}
	if score > difficultyCap {
		score = difficultyCap
	}
	return score
}
