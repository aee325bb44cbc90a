// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package inventory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflowforge/internal/inventory"
)

func TestMemory_ReserveThenReleaseIsIdempotent(t *testing.T) {
	m := inventory.NewMemory()
	ctx := context.Background()

	available, _, err := m.CheckMaterial(ctx, "mat-1", 10)
	require.NoError(t, err)
	assert.True(t, available)

	token, err := m.ReserveMaterial(ctx, "mat-1", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	require.NoError(t, m.ReleaseMaterial(ctx, token))
	require.NoError(t, m.ReleaseMaterial(ctx, token))
}

func TestMemory_FindMaterialAndFindToolAlwaysMiss(t *testing.T) {
	m := inventory.NewMemory()
	ctx := context.Background()

	_, found, err := m.FindMaterial(ctx, "flour")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = m.FindTool(ctx, "mixer")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemory_ToolAlwaysAvailable(t *testing.T) {
	m := inventory.NewMemory()
	ctx := context.Background()

	available, err := m.CheckTool(ctx, "tool-1", 30)
	require.NoError(t, err)
	assert.True(t, available)

	token, err := m.ReserveTool(ctx, "tool-1", 30)
	require.NoError(t, err)
	require.NoError(t, m.ReleaseTool(ctx, token))
}
