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
	"errors"
	"time"

	"workflowforge/pkg/errs"
	"workflowforge/pkg/graph"
	"workflowforge/pkg/logging"
	"workflowforge/pkg/value"
)

// Policy controls whether Reserve blocks Start when a required resource is
// unavailable (strict) or proceeds with a warning (warn), §4.5.2.
type Policy string

const (
	PolicyStrict Policy = "strict"
	PolicyWarn   Policy = "warn"
)

// ReservationRecord is one held (or attempted) reservation, the shape
// stored in Execution.ExecutionData["reservations"].
type ReservationRecord struct {
	Kind     graph.ResourceKind
	RefID    string
	Quantity float64
	Token    string
	StepIDs  []string
}

// Coordinator implements the resource reservation protocol (C7) against an
// injected Oracle.
type Coordinator struct {
	oracle  Oracle
	timeout time.Duration
	log     logging.Logger
}

// NewCoordinator builds a Coordinator. timeout bounds every individual
// oracle call (§5, default 5s is the caller's responsibility to supply).
func NewCoordinator(oracle Oracle, timeout time.Duration, log logging.Logger) *Coordinator {
	if log == nil {
		log = logging.NewLogger(false)
	}
	return &Coordinator{oracle: oracle, timeout: timeout, log: log}
}

// Reserve requests a reservation for every requirement aggregated from w.
// On a Timeout/ExternalUnavailable oracle failure, or a NotAvailable
// failure on a required requirement under PolicyStrict, all reservations
// made so far in this call are released and the call fails. Under
// PolicyWarn, or for an optional requirement, an unavailable resource is
// recorded as a warning and simply not reserved.
func (c *Coordinator) Reserve(ctx context.Context, w *graph.Workflow, policy Policy) ([]ReservationRecord, []string, error) {
	requirements := AnalyzeRequirements(w)

	var held []ReservationRecord
	var warnings []string

	rollback := func() {
		for _, r := range held {
			c.releaseOne(context.Background(), r)
		}
	}

	for _, req := range requirements {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		record, unavailable, err := c.reserveOne(callCtx, req)
		cancel()

		if err != nil {
			rollback()
			return nil, nil, err
		}

		if unavailable {
			if req.Required && policy == PolicyStrict {
				rollback()
				return nil, nil, errs.Newf(errs.Unreserved, "required %s %s is unavailable", req.Kind, req.RefID)
			}
			warnings = append(warnings, "insufficient "+string(req.Kind)+" "+req.RefID+"; continuing under warn policy")
			continue
		}

		held = append(held, record)
	}

	return held, warnings, nil
}

// reserveOne checks then reserves a single requirement. unavailable=true
// means the check failed (NotAvailable); err is non-nil only for
// Timeout/Unknown oracle failures, which callers treat as fatal for the
// whole Reserve call.
func (c *Coordinator) reserveOne(ctx context.Context, req Requirement) (record ReservationRecord, unavailable bool, err error) {
	switch req.Kind {
	case graph.ResourceMaterial:
		available, _, checkErr := c.oracle.CheckMaterial(ctx, req.RefID, req.Quantity)
		if oerr := asOracleErr(checkErr); oerr != nil {
			if oerr.Kind == NotAvailable {
				return ReservationRecord{}, true, nil
			}
			return ReservationRecord{}, false, translateOracleErr(oerr)
		}
		if !available {
			return ReservationRecord{}, true, nil
		}
		token, reserveErr := c.oracle.ReserveMaterial(ctx, req.RefID, req.Quantity)
		if oerr := asOracleErr(reserveErr); oerr != nil {
			if oerr.Kind == NotAvailable {
				return ReservationRecord{}, true, nil
			}
			return ReservationRecord{}, false, translateOracleErr(oerr)
		}
		return ReservationRecord{Kind: req.Kind, RefID: req.RefID, Quantity: req.Quantity, Token: token, StepIDs: req.StepIDs}, false, nil

	case graph.ResourceTool:
		durationMinutes := int(req.Quantity)
		available, checkErr := c.oracle.CheckTool(ctx, req.RefID, durationMinutes)
		if oerr := asOracleErr(checkErr); oerr != nil {
			if oerr.Kind == NotAvailable {
				return ReservationRecord{}, true, nil
			}
			return ReservationRecord{}, false, translateOracleErr(oerr)
		}
		if !available {
			return ReservationRecord{}, true, nil
		}
		token, reserveErr := c.oracle.ReserveTool(ctx, req.RefID, durationMinutes)
		if oerr := asOracleErr(reserveErr); oerr != nil {
			if oerr.Kind == NotAvailable {
				return ReservationRecord{}, true, nil
			}
			return ReservationRecord{}, false, translateOracleErr(oerr)
		}
		return ReservationRecord{Kind: req.Kind, RefID: req.RefID, Quantity: req.Quantity, Token: token, StepIDs: req.StepIDs}, false, nil

	default:
		return ReservationRecord{}, false, nil
	}
}

func (c *Coordinator) releaseOne(ctx context.Context, r ReservationRecord) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var err error
	switch r.Kind {
	case graph.ResourceMaterial:
		err = c.oracle.ReleaseMaterial(callCtx, r.Token)
	case graph.ResourceTool:
		err = c.oracle.ReleaseTool(callCtx, r.Token)
	}
	if err != nil {
		c.log.Warn("failed to release reservation", logging.NewField("token", r.Token), logging.NewField("error", err.Error()))
	}
}

// Release releases every held reservation, continuing on individual
// failures and aggregating them into one error (R3: re-issuing Release on
// an already-released execution is a no-op since ReleaseMaterial/Tool are
// idempotent at the oracle).
func (c *Coordinator) Release(ctx context.Context, reservations []ReservationRecord) error {
	var releaseErrs []error
	for _, r := range reservations {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		var err error
		switch r.Kind {
		case graph.ResourceMaterial:
			err = c.oracle.ReleaseMaterial(callCtx, r.Token)
		case graph.ResourceTool:
			err = c.oracle.ReleaseTool(callCtx, r.Token)
		}
		cancel()
		if err != nil {
			releaseErrs = append(releaseErrs, err)
		}
	}
	return errors.Join(releaseErrs...)
}

// PrepareStep returns the reservation records attached to step, for UI
// preparation views (§4.7).
func PrepareStep(reservations []ReservationRecord, step *graph.Step) []ReservationRecord {
	var out []ReservationRecord
	for _, r := range reservations {
		for _, stepID := range r.StepIDs {
			if stepID == step.ID {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// RecordUsage attaches a planned-vs-actual usage record onto a
// StepExecution's stepData. It does not release reservations; release
// happens once, whole-execution, in Release.
func RecordUsage(stepData value.Map, resourceRefID string, planned, actual float64) value.Map {
	usage := value.Map{
		"refId":   value.String(resourceRefID),
		"planned": value.Number(planned),
		"actual":  value.Number(actual),
	}
	existing, _ := stepData.Get("resourceUsage")
	list, _ := existing.AsList()
	list = append(list, value.Of(usage))
	return stepData.Set("resourceUsage", value.List(list))
}

func asOracleErr(err error) *OracleError {
	var oe *OracleError
	if errors.As(err, &oe) {
		return oe
	}
	if err != nil {
		return &OracleError{Kind: Unknown, Message: err.Error()}
	}
	return nil
}

func translateOracleErr(oerr *OracleError) error {
	switch oerr.Kind {
	case Timeout:
		return errs.Wrap(errs.Timeout, oerr, "inventory oracle call timed out")
	default:
		return errs.Wrap(errs.ExternalUnavailable, oerr, "inventory oracle call failed")
	}
}
