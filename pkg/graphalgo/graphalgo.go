// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package graphalgo implements the runtime graph algorithms used for
// routing a live Execution: connection ordering with condition evaluation,
// reachability, cycle detection, and shortest-path search (C3). It operates
// on immutable graph.Workflow snapshots; callers may memoize per-definition
// since nothing here mutates its input.
package graphalgo

import (
	"sort"

	"workflowforge/pkg/condition"
	"workflowforge/pkg/graph"
	"workflowforge/pkg/logging"
)

// OrderConnections sorts a copy of conns by (isDefault desc, displayOrder
// asc, id asc), the deterministic order §4.3 and §4.6 both require.
func OrderConnections(conns []*graph.Connection) []*graph.Connection {
	out := make([]*graph.Connection, len(conns))
	copy(out, conns)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.IsDefault != b.IsDefault {
			return a.IsDefault
		}
		if a.DisplayOrder != b.DisplayOrder {
			return a.DisplayOrder < b.DisplayOrder
		}
		return a.ID < b.ID
	})
	return out
}

// NextSteps evaluates the outgoing connections of stepID in deterministic
// order against ctx, returning the non-default connections whose guard
// condition holds (or is absent). Evaluation errors downgrade the edge to
// false and are logged, per §4.4/§7. If none match and a default connection
// exists among the candidates, the default is returned as a fallback, per
// §4.3/§4.6.
func NextSteps(w *graph.Workflow, stepID string, ctx condition.Context, log logging.Logger) []*graph.Connection {
	ordered := OrderConnections(w.OutgoingConnections(stepID))

	var matched []*graph.Connection
	var defaultConn *graph.Connection
	for _, c := range ordered {
		if c.IsDefault {
			if defaultConn == nil {
				defaultConn = c
			}
			continue
		}
		if c.Condition == nil || *c.Condition == "" {
			matched = append(matched, c)
			continue
		}
		ok, err := condition.Evaluate(*c.Condition, ctx)
		if err != nil {
			if log != nil {
				log.Warn("condition evaluation failed, treating edge as false",
					logging.NewField("connection", c.ID), logging.NewField("error", err.Error()))
			}
			continue
		}
		if ok {
			matched = append(matched, c)
		}
	}

	if len(matched) == 0 && defaultConn != nil {
		matched = append(matched, defaultConn)
	}
	return matched
}

// Reachable returns the set of step IDs reachable via Connection edges from
// w's initial steps (graph.InitialSteps), ignoring conditions: this is the
// structural reachability used for orphan detection and the I4 publication
// check, matching §4.3's "BFS from initial set".
func Reachable(w *graph.Workflow) map[string]bool {
	adjacency := adjacencyOf(w)
	visited := make(map[string]bool, len(w.Steps))
	var queue []string
	for _, s := range graph.InitialSteps(w) {
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

// OrphanSteps returns steps not reachable from the initial set.
func OrphanSteps(w *graph.Workflow) []*graph.Step {
	reachable := Reachable(w)
	var orphans []*graph.Step
	for _, s := range w.Steps {
		if !reachable[s.ID] {
			orphans = append(orphans, s)
		}
	}
	return orphans
}

// DetectCycle runs DFS with a recursion stack over w's Connection edges and
// returns the first cycle found as an ordered, self-closing slice of step
// IDs, or nil if the graph is acyclic.
func DetectCycle(w *graph.Workflow) []string {
	adjacency := adjacencyOf(w)
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
				reverseStrings(cycle)
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

// Path is one shortest-path result from ShortestPath: the ordered step IDs
// from source to target inclusive, its hop count, and tie-break metrics.
type Path struct {
	StepIDs          []string
	Hops             int
	TotalDuration    int
	DefaultHopCount  int
}

// ShortestPath finds the minimum-hop path from sourceStepID to
// targetStepID over the unweighted Connection set, breaking ties first by
// ascending summed estimatedDuration, then by the count of default
// connections traversed (§4.3). Returns ok=false if no path exists.
func ShortestPath(w *graph.Workflow, sourceStepID, targetStepID string) (Path, bool) {
	if sourceStepID == targetStepID {
		return Path{StepIDs: []string{sourceStepID}, Hops: 0}, true
	}

	type frontierEntry struct {
		stepID string
		path   []string
	}

	visited := map[string]bool{sourceStepID: true}
	queue := []frontierEntry{{stepID: sourceStepID, path: []string{sourceStepID}}}

	var candidates [][]string
	minHops := -1

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if minHops >= 0 && len(cur.path)-1 > minHops {
			continue
		}

		for _, c := range OrderConnections(w.OutgoingConnections(cur.stepID)) {
			if visited[c.TargetStepID] && c.TargetStepID != targetStepID {
				continue
			}
			nextPath := append(append([]string{}, cur.path...), c.TargetStepID)
			if c.TargetStepID == targetStepID {
				hops := len(nextPath) - 1
				if minHops == -1 || hops < minHops {
					minHops = hops
					candidates = nil
				}
				if hops == minHops {
					candidates = append(candidates, nextPath)
				}
				continue
			}
			if !visited[c.TargetStepID] {
				visited[c.TargetStepID] = true
				queue = append(queue, frontierEntry{stepID: c.TargetStepID, path: nextPath})
			}
		}
	}

	if len(candidates) == 0 {
		return Path{}, false
	}

	best := candidates[0]
	bestDuration := pathDuration(w, best)
	bestDefaults := pathDefaultCount(w, best)
	for _, cand := range candidates[1:] {
		dur := pathDuration(w, cand)
		defaults := pathDefaultCount(w, cand)
		if dur < bestDuration || (dur == bestDuration && defaults > bestDefaults) {
			best = cand
			bestDuration = dur
			bestDefaults = defaults
		}
	}

	return Path{
		StepIDs:         best,
		Hops:            len(best) - 1,
		TotalDuration:   bestDuration,
		DefaultHopCount: bestDefaults,
	}, true
}

func pathDuration(w *graph.Workflow, stepIDs []string) int {
	total := 0
	for _, id := range stepIDs {
		if s := w.StepByID(id); s != nil && s.EstimatedDuration != nil {
			total += *s.EstimatedDuration
		}
	}
	return total
}

func pathDefaultCount(w *graph.Workflow, stepIDs []string) int {
	count := 0
	for i := 0; i+1 < len(stepIDs); i++ {
		for _, c := range w.OutgoingConnections(stepIDs[i]) {
			if c.TargetStepID == stepIDs[i+1] && c.IsDefault {
				count++
				break
			}
		}
	}
	return count
}

func adjacencyOf(w *graph.Workflow) map[string][]string {
	adj := make(map[string][]string, len(w.Steps))
	for _, s := range w.Steps {
		adj[s.ID] = nil
	}
	for _, c := range w.Connections {
		adj[c.SourceStepID] = append(adj[c.SourceStepID], c.TargetStepID)
	}
	return adj
}

func reverseStrings(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
