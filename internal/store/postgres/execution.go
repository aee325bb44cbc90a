// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"workflowforge/pkg/errs"
	"workflowforge/pkg/repository"
	"workflowforge/pkg/value"
)

func (q *queries) LoadExecution(ctx context.Context, id string, opts repository.ExecutionLoadOptions) (*repository.Execution, []*repository.StepExecution, []*repository.NavigationEvent, error) {
	e := &repository.Execution{}
	var dataJSON []byte
	err := q.db.QueryRow(ctx, `
		SELECT id, workflow_id, started_by, status, started_at, completed_at,
		       selected_outcome_id, current_step_id, execution_data, total_duration_minutes, version
		FROM executions WHERE id = $1`, id,
	).Scan(&e.ID, &e.WorkflowID, &e.StartedBy, &e.Status, &e.StartedAt, &e.CompletedAt,
		&e.SelectedOutcomeID, &e.CurrentStepID, &dataJSON, &e.TotalDurationMinutes, &e.Version)
	if err != nil {
		return nil, nil, nil, errs.Newf(errs.NotFound, "execution %q: %v", id, err)
	}
	e.ExecutionData = unmarshalMap(dataJSON)

	var stepExecs []*repository.StepExecution
	if opts.IncludeStepExecutions {
		stepExecs, err = q.loadStepExecutions(ctx, id)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	var events []*repository.NavigationEvent
	if opts.RecentNavigationEvents != 0 {
		events, err = q.loadNavigationEvents(ctx, id, opts.RecentNavigationEvents)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	return e, stepExecs, events, nil
}

func (q *queries) loadStepExecutions(ctx context.Context, executionID string) ([]*repository.StepExecution, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, execution_id, step_id, status, started_at, completed_at,
		       actual_duration_minutes, step_data
		FROM step_executions WHERE execution_id = $1`, executionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: load step executions: %w", err)
	}
	defer rows.Close()

	var out []*repository.StepExecution
	for rows.Next() {
		se := &repository.StepExecution{}
		var dataJSON []byte
		if err := rows.Scan(&se.ID, &se.ExecutionID, &se.StepID, &se.Status, &se.StartedAt,
			&se.CompletedAt, &se.ActualDurationMinutes, &dataJSON); err != nil {
			return nil, fmt.Errorf("postgres: scan step execution: %w", err)
		}
		se.StepData = unmarshalMap(dataJSON)
		out = append(out, se)
	}
	return out, rows.Err()
}

func (q *queries) loadNavigationEvents(ctx context.Context, executionID string, limit int) ([]*repository.NavigationEvent, error) {
	sql := `SELECT id, execution_id, step_id, action_type, action_data, "timestamp"
	        FROM navigation_events WHERE execution_id = $1 ORDER BY sequence`
	args := []any{executionID}
	if limit > 0 {
		sql += ` DESC LIMIT $2`
		args = append(args, limit)
	}
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: load navigation events: %w", err)
	}
	defer rows.Close()

	var out []*repository.NavigationEvent
	for rows.Next() {
		ev := &repository.NavigationEvent{}
		var dataJSON []byte
		if err := rows.Scan(&ev.ID, &ev.ExecutionID, &ev.StepID, &ev.ActionType, &dataJSON, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan navigation event: %w", err)
		}
		ev.ActionData = unmarshalMap(dataJSON)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if limit > 0 {
		reverseEvents(out)
	}
	return out, nil
}

func reverseEvents(evs []*repository.NavigationEvent) {
	for i, j := 0, len(evs)-1; i < j; i, j = i+1, j-1 {
		evs[i], evs[j] = evs[j], evs[i]
	}
}

func (q *queries) CreateExecution(ctx context.Context, e *repository.Execution) error {
	dataJSON, err := marshalMap(e.ExecutionData)
	if err != nil {
		return err
	}
	_, err = q.db.Exec(ctx, `
		INSERT INTO executions (id, workflow_id, started_by, status, started_at, completed_at,
		                         selected_outcome_id, current_step_id, execution_data,
		                         total_duration_minutes, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		e.ID, e.WorkflowID, e.StartedBy, e.Status, e.StartedAt, e.CompletedAt,
		e.SelectedOutcomeID, e.CurrentStepID, dataJSON, e.TotalDurationMinutes, e.Version)
	if err != nil {
		return fmt.Errorf("postgres: create execution: %w", err)
	}
	return nil
}

// UpdateExecution writes e back with optimistic concurrency (§4.2, §5):
// the update only applies to the row matching e.Version, then increments
// the stored version; a zero rows-affected result is reported as
// errs.Conflict so the engine can retry.
func (q *queries) UpdateExecution(ctx context.Context, e *repository.Execution) error {
	dataJSON, err := marshalMap(e.ExecutionData)
	if err != nil {
		return err
	}
	tag, err := q.db.Exec(ctx, `
		UPDATE executions SET
			status=$1, completed_at=$2, selected_outcome_id=$3, current_step_id=$4,
			execution_data=$5, total_duration_minutes=$6, version=version+1
		WHERE id=$7 AND version=$8`,
		e.Status, e.CompletedAt, e.SelectedOutcomeID, e.CurrentStepID, dataJSON,
		e.TotalDurationMinutes, e.ID, e.Version)
	if err != nil {
		return fmt.Errorf("postgres: update execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.Newf(errs.Conflict, "execution %q: version %d is stale", e.ID, e.Version)
	}
	e.Version++
	return nil
}

func (q *queries) UpsertStepExecution(ctx context.Context, se *repository.StepExecution) error {
	dataJSON, err := marshalMap(se.StepData)
	if err != nil {
		return err
	}
	_, err = q.db.Exec(ctx, `
		INSERT INTO step_executions (id, execution_id, step_id, status, started_at, completed_at,
		                              actual_duration_minutes, step_data)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (execution_id, step_id) DO UPDATE SET
			status=$4, started_at=$5, completed_at=$6, actual_duration_minutes=$7, step_data=$8`,
		se.ID, se.ExecutionID, se.StepID, se.Status, se.StartedAt, se.CompletedAt,
		se.ActualDurationMinutes, dataJSON)
	if err != nil {
		return fmt.Errorf("postgres: upsert step execution: %w", err)
	}
	return nil
}

func (q *queries) AppendNavigation(ctx context.Context, ev *repository.NavigationEvent) error {
	dataJSON, err := marshalMap(ev.ActionData)
	if err != nil {
		return err
	}
	_, err = q.db.Exec(ctx, `
		INSERT INTO navigation_events (id, execution_id, step_id, action_type, action_data, "timestamp")
		VALUES ($1,$2,$3,$4,$5,$6)`,
		ev.ID, ev.ExecutionID, ev.StepID, ev.ActionType, dataJSON, ev.Timestamp)
	if err != nil {
		return fmt.Errorf("postgres: append navigation event: %w", err)
	}
	return nil
}

func (q *queries) ListActiveExecutions(ctx context.Context, filter repository.ActiveExecutionFilter) ([]*repository.Execution, error) {
	sql := `
		SELECT id, workflow_id, started_by, status, started_at, completed_at,
		       selected_outcome_id, current_step_id, execution_data, total_duration_minutes, version
		FROM executions WHERE status NOT IN ($1,$2,$3)`
	args := []any{repository.ExecutionCompleted, repository.ExecutionCancelled, repository.ExecutionFailed}

	if filter.WorkflowID != nil {
		args = append(args, *filter.WorkflowID)
		sql += fmt.Sprintf(" AND workflow_id = $%d", len(args))
	}
	if filter.StartedBy != nil {
		args = append(args, *filter.StartedBy)
		sql += fmt.Sprintf(" AND started_by = $%d", len(args))
	}

	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active executions: %w", err)
	}
	defer rows.Close()

	var out []*repository.Execution
	for rows.Next() {
		e := &repository.Execution{}
		var dataJSON []byte
		if err := rows.Scan(&e.ID, &e.WorkflowID, &e.StartedBy, &e.Status, &e.StartedAt,
			&e.CompletedAt, &e.SelectedOutcomeID, &e.CurrentStepID, &dataJSON,
			&e.TotalDurationMinutes, &e.Version); err != nil {
			return nil, fmt.Errorf("postgres: scan execution: %w", err)
		}
		e.ExecutionData = unmarshalMap(dataJSON)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (q *queries) ExecutionStatistics(ctx context.Context, workflowID string) (repository.ExecutionStatistics, error) {
	stats := repository.ExecutionStatistics{WorkflowID: workflowID}

	err := q.db.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE status = $2),
		       COALESCE(avg(total_duration_minutes) FILTER (WHERE status = $2), 0)
		FROM executions WHERE workflow_id = $1`,
		workflowID, repository.ExecutionCompleted,
	).Scan(&stats.Count, &stats.Completions, &stats.MeanDurationMinutes)
	if err != nil {
		return repository.ExecutionStatistics{}, fmt.Errorf("postgres: execution statistics: %w", err)
	}

	var topOutcome *string
	err = q.db.QueryRow(ctx, `
		SELECT selected_outcome_id FROM executions
		WHERE workflow_id = $1 AND selected_outcome_id IS NOT NULL
		GROUP BY selected_outcome_id
		ORDER BY count(*) DESC LIMIT 1`, workflowID,
	).Scan(&topOutcome)
	if err == nil {
		stats.TopOutcomeID = topOutcome
	}

	return stats, nil
}

func marshalMap(m value.Map) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("postgres: marshal data: %w", err)
	}
	return data, nil
}

func unmarshalMap(data []byte) value.Map {
	if len(data) == 0 {
		return nil
	}
	var m value.Map
	_ = json.Unmarshal(data, &m)
	return m
}
