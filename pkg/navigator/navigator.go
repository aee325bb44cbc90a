// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package navigator implements next-step selection, decision dispatch
// support, interactive guidance, and optimal-path computation (C6). It
// consults pkg/graphalgo for routing and pkg/condition for guard
// evaluation; it holds no execution state of its own.
package navigator

import (
	"workflowforge/pkg/condition"
	"workflowforge/pkg/graph"
	"workflowforge/pkg/graphalgo"
	"workflowforge/pkg/logging"
	"workflowforge/pkg/value"
)

// Navigator implements C6.
type Navigator struct {
	log logging.Logger
}

// New builds a Navigator.
func New(log logging.Logger) *Navigator {
	if log == nil {
		log = logging.NewLogger(false)
	}
	return &Navigator{log: log}
}

// NextStepSelection implements §4.6's NextStepSelection: it queries the
// outgoing connections of the just-completed step in deterministic order,
// evaluates each guard condition against (executionData, last), and
// returns the ordered set of connections to promote. The engine promotes
// the first result as the new current step; subsequent parallel-type
// connections become additional ready StepExecutions.
func (n *Navigator) NextStepSelection(w *graph.Workflow, completedStep *graph.Step, executionData, lastStepData value.Map) []*graph.Connection {
	ctx := condition.Context{Ctx: executionData, Last: lastStepData}
	return graphalgo.NextSteps(w, completedStep.ID, ctx, n.log)
}
