/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package checks

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chainguard.dev/mergegate/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRunner(t *testing.T) {
	tests := []struct {
		name       string
		check      policy.Check
		wantStatus Status
		wantInLog  string
	}{{
		name:       "passing command",
		check:      policy.Check{Name: "unit", Run: "true"},
		wantStatus: StatusPass,
	}, {
		name:       "failing command",
		check:      policy.Check{Name: "unit", Run: "echo boom; exit 1"},
		wantStatus: StatusFail,
		wantInLog:  "boom",
	}, {
		name:       "no command configured",
		check:      policy.Check{Name: "unit"},
		wantStatus: StatusError,
		wantInLog:  "no command",
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &CommandRunner{}
			result := runner.Run(context.Background(), tt.check, t.TempDir())

			assert.Equal(t, "unit", result.Name)
			assert.Equal(t, tt.wantStatus, result.Status)
			if tt.wantInLog != "" {
				assert.Contains(t, result.Log, tt.wantInLog)
			}
		})
	}
}

func TestCommandRunnerTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	runner := &CommandRunner{}
	result := runner.Run(ctx, policy.Check{Name: "slow", Run: "sleep 30"}, t.TempDir())

	assert.Equal(t, StatusTimeout, result.Status)
	assert.False(t, result.Passed())
}

func TestCommandRunnerPersistsLog(t *testing.T) {
	logDir := t.TempDir()
	runner := &CommandRunner{LogDir: logDir}

	result := runner.Run(context.Background(), policy.Check{Name: "unit", Run: "echo hello"}, t.TempDir())

	require.Equal(t, StatusPass, result.Status)
	require.NotEmpty(t, result.LogRef)
	assert.Equal(t, logDir, filepath.Dir(result.LogRef))
	assert.Contains(t, result.Log, "hello")
}

func TestRegistryLookup(t *testing.T) {
	dedicated := RunnerFunc(func(ctx context.Context, check policy.Check, dir string) Result {
		return Result{Name: check.Name, Status: StatusPass}
	})

	t.Run("dedicated over default", func(t *testing.T) {
		reg := NewRegistry(&CommandRunner{})
		reg.Register("lint", dedicated)

		runner, ok := reg.Lookup("lint")
		require.True(t, ok)
		assert.IsType(t, RunnerFunc(nil), runner)
	})

	t.Run("default fallback", func(t *testing.T) {
		reg := NewRegistry(&CommandRunner{})

		runner, ok := reg.Lookup("unheard-of")
		require.True(t, ok)
		assert.IsType(t, &CommandRunner{}, runner)
	})

	t.Run("no runner available", func(t *testing.T) {
		reg := NewRegistry(nil)

		_, ok := reg.Lookup("unheard-of")
		assert.False(t, ok)
	})
}

func TestTail(t *testing.T) {
	assert.Equal(t, "short", tail("short", 100))
	assert.Equal(t, "cde", tail("abcde", 3))

	long := strings.Repeat("x", maxLogBytes+10)
	assert.Len(t, tail(long, maxLogBytes), maxLogBytes)
}
