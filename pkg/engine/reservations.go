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
	"workflowforge/pkg/resources"
	"workflowforge/pkg/value"
)

// reservationsToValue serializes held reservations into the
// Execution.ExecutionData["reservations"] shape, a list of records so it
// round-trips cleanly through the opaque value.Map/JSON boundary (§9).
func reservationsToValue(held []resources.ReservationRecord) value.Value {
	items := make([]value.Value, len(held))
	for i, r := range held {
		stepIDs := make([]value.Value, len(r.StepIDs))
		for j, id := range r.StepIDs {
			stepIDs[j] = value.String(id)
		}
		items[i] = value.Of(value.Map{
			"kind":     value.String(string(r.Kind)),
			"refId":    value.String(r.RefID),
			"quantity": value.Number(r.Quantity),
			"token":    value.String(r.Token),
			"stepIds":  value.List(stepIDs),
		})
	}
	return value.List(items)
}

// reservationsFromExecutionData reads back reservations previously stored
// by reservationsToValue, used by Release/Cancel/Fail/Complete.
func reservationsFromExecutionData(data value.Map) []resources.ReservationRecord {
	v, ok := data.Get("reservations")
	if !ok {
		return nil
	}
	items, ok := v.AsList()
	if !ok {
		return nil
	}
	out := make([]resources.ReservationRecord, 0, len(items))
	for _, item := range items {
		m, ok := item.AsMap()
		if !ok {
			continue
		}
		kindVal, _ := m.Get("kind")
		refVal, _ := m.Get("refId")
		qtyVal, _ := m.Get("quantity")
		tokenVal, _ := m.Get("token")
		kind, _ := kindVal.AsString()
		ref, _ := refVal.AsString()
		qty, _ := qtyVal.AsNumber()
		token, _ := tokenVal.AsString()

		var stepIDs []string
		if stepsVal, ok := m.Get("stepIds"); ok {
			if list, ok := stepsVal.AsList(); ok {
				for _, s := range list {
					if str, ok := s.AsString(); ok {
						stepIDs = append(stepIDs, str)
					}
				}
			}
		}
		out = append(out, resources.ReservationRecord{
			Kind:     graph.ResourceKind(kind),
			RefID:    ref,
			Quantity: qty,
			Token:    token,
			StepIDs:  stepIDs,
		})
	}
	return out
}
