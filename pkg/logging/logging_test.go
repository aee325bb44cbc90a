// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := &loggerImpl{level: LevelInfo, out: &buf, errOut: &buf}

	logger.Debug("debug message")
	assert.Empty(t, buf.String(), "debug should be suppressed at Info level")

	buf.Reset()
	logger.Info("info message")
	assert.Contains(t, buf.String(), "INFO")

	buf.Reset()
	logger.Warn("warn message")
	assert.Contains(t, buf.String(), "WARN")

	buf.Reset()
	logger.Error("error message")
	assert.Contains(t, buf.String(), "ERROR")
}

func TestLogger_Verbose(t *testing.T) {
	var buf bytes.Buffer
	logger := &loggerImpl{level: LevelDebug, out: &buf, errOut: &buf}

	logger.Debug("debug message")
	assert.Contains(t, buf.String(), "DEBUG")
}

func TestLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	var logger Logger = &loggerImpl{level: LevelInfo, out: &buf, errOut: &buf}

	logger = logger.WithFields(NewField("executionId", "exec-1"), NewField("workflowId", "wf-1"))
	logger.Info("starting execution")

	output := buf.String()
	assert.Contains(t, output, "executionId=exec-1")
	assert.Contains(t, output, "workflowId=wf-1")
}

func TestNewLogger(t *testing.T) {
	require.NotNil(t, NewLogger(false))
	require.NotNil(t, NewLogger(true))
}

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.level.String())
	}
}
