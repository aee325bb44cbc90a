// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package resources

import (
	"context"

	"workflowforge/pkg/graph"
)

// Shortfall names one requirement the oracle cannot currently satisfy.
type Shortfall struct {
	Kind     graph.ResourceKind
	RefID    string
	Required bool
	OnHand   float64
	Needed   float64
}

// Readiness is a read-only projection of how prepared a workflow is to
// start, supplementing §4.7 with the original system's execution-readiness
// check: a 0-100 score plus blocking vs. optional shortfalls.
type Readiness struct {
	Score     int
	Blocking  []Shortfall
	Advisory  []Shortfall
}

// CheckReadiness probes the oracle's current availability for every
// requirement in w without reserving anything, splitting shortfalls into
// blocking (required) and advisory (optional) per the original
// check_execution_readiness behavior. It does not affect Start's own
// strict/warn decision, which always re-checks at reservation time.
func CheckReadiness(ctx context.Context, c *Coordinator, w *graph.Workflow) (Readiness, error) {
	requirements := AnalyzeRequirements(w)
	if len(requirements) == 0 {
		return Readiness{Score: 100}, nil
	}

	var blocking, advisory []Shortfall
	for _, req := range requirements {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		var available bool
		var onHand float64
		var err error
		switch req.Kind {
		case graph.ResourceMaterial:
			available, onHand, err = c.oracle.CheckMaterial(callCtx, req.RefID, req.Quantity)
		case graph.ResourceTool:
			available, err = c.oracle.CheckTool(callCtx, req.RefID, int(req.Quantity))
			onHand = 0
		}
		cancel()
		if err != nil {
			// Treat an oracle failure during a read-only readiness probe
			// as a shortfall rather than aborting the whole projection.
			available = false
		}
		if available {
			continue
		}
		shortfall := Shortfall{Kind: req.Kind, RefID: req.RefID, Required: req.Required, OnHand: onHand, Needed: req.Quantity}
		if req.Required {
			blocking = append(blocking, shortfall)
		} else {
			advisory = append(advisory, shortfall)
		}
	}

	satisfied := len(requirements) - len(blocking) - len(advisory)
	score := (satisfied * 100) / len(requirements)
	// Each blocking shortfall costs a further 10 points beyond its share of
	// the satisfied ratio, clamped at 0, mirroring _calculate_readiness_score's
	// required-resource bias.
	if len(blocking) > 0 {
		score -= 10 * len(blocking)
		if score < 0 {
			score = 0
		}
	}

	return Readiness{Score: score, Blocking: blocking, Advisory: advisory}, nil
}
