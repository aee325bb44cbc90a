// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package engine

import (
	"workflowforge/pkg/errs"
	"workflowforge/pkg/repository"
)

// allowedTransitions encodes the lifecycle graph of §4.5.1: (none)->active
// on Start, active<->paused, and active->{completed,cancelled,failed}, plus
// paused->cancelled. Terminal states permit no further transitions (I6).
var allowedTransitions = map[repository.ExecutionStatus]map[repository.ExecutionStatus]bool{
	repository.ExecutionActive: {
		repository.ExecutionPaused:    true,
		repository.ExecutionCancelled: true,
		repository.ExecutionCompleted: true,
		repository.ExecutionFailed:    true,
	},
	repository.ExecutionPaused: {
		repository.ExecutionActive:    true,
		repository.ExecutionCancelled: true,
	},
}

// checkTransition returns InvalidStateTransition unless from->to is in the
// allowed graph.
func checkTransition(from, to repository.ExecutionStatus) error {
	if from.Terminal() {
		return errs.Newf(errs.InvalidStateTransition, "execution is already in terminal status %q", from)
	}
	if allowedTransitions[from][to] {
		return nil
	}
	return errs.Newf(errs.InvalidStateTransition, "cannot transition execution from %q to %q", from, to)
}
