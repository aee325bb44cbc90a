// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package inventory provides a minimal in-memory Inventory Oracle
// (resources.Oracle) for operating workflowforge without a real
// materials/tools backend wired in — the CLI's default when no external
// oracle is configured. A production deployment replaces this with an
// adapter over its own inventory system.
package inventory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"workflowforge/pkg/resources"
)

// Memory is a trivial Oracle: every material and tool is always available,
// reservations are tracked only so Release can be verified idempotent, and
// name resolution matches nothing (numeric IDs are always required, same
// as a catalog with no registered names yet).
type Memory struct {
	mu           sync.Mutex
	reservations map[string]bool
}

// NewMemory builds a Memory oracle.
func NewMemory() *Memory {
	return &Memory{reservations: make(map[string]bool)}
}

var _ resources.Oracle = (*Memory)(nil)

func (m *Memory) CheckMaterial(context.Context, string, float64) (bool, float64, error) {
	return true, 1 << 20, nil
}

func (m *Memory) ReserveMaterial(context.Context, string, float64) (string, error) {
	return m.reserve(), nil
}

func (m *Memory) ReleaseMaterial(_ context.Context, token string) error {
	return m.release(token)
}

func (m *Memory) CheckTool(context.Context, string, int) (bool, error) {
	return true, nil
}

func (m *Memory) ReserveTool(context.Context, string, int) (string, error) {
	return m.reserve(), nil
}

func (m *Memory) ReleaseTool(_ context.Context, token string) error {
	return m.release(token)
}

func (m *Memory) FindMaterial(context.Context, string) (string, bool, error) {
	return "", false, nil
}

func (m *Memory) FindTool(context.Context, string) (string, bool, error) {
	return "", false, nil
}

func (m *Memory) reserve() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	token := uuid.NewString()
	m.reservations[token] = true
	return token
}

func (m *Memory) release(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reservations, token)
	return nil
}
