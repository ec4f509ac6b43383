/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package checks

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"chainguard.dev/mergegate/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passRunner() Runner {
	return RunnerFunc(func(ctx context.Context, check policy.Check, dir string) Result {
		return Result{Name: check.Name, Status: StatusPass}
	})
}

func TestPoolRunAll(t *testing.T) {
	cfg := policy.Default()
	cfg.RequiredChecks = []policy.Check{
		{Name: "unit"},
		{Name: "lint"},
		{Name: "typecheck"},
	}

	pool := NewPool(4, NewRegistry(passRunner()))
	results := pool.RunAll(context.Background(), cfg, cfg.RequiredChecks, t.TempDir())

	require.Len(t, results, 3)
	// Results are sorted by check name regardless of completion order.
	assert.Equal(t, "lint", results[0].Name)
	assert.Equal(t, "typecheck", results[1].Name)
	assert.Equal(t, "unit", results[2].Name)
	for _, r := range results {
		assert.True(t, r.Passed())
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	var running, peak atomic.Int64
	slow := RunnerFunc(func(ctx context.Context, check policy.Check, dir string) Result {
		cur := running.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return Result{Name: check.Name, Status: StatusPass}
	})

	cfg := policy.Default()
	cfg.RequiredChecks = []policy.Check{
		{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}, {Name: "e"},
	}

	pool := NewPool(2, NewRegistry(slow))
	results := pool.RunAll(context.Background(), cfg, cfg.RequiredChecks, t.TempDir())

	require.Len(t, results, 5)
	assert.LessOrEqual(t, peak.Load(), int64(2))
}

func TestPoolCapturesPanic(t *testing.T) {
	reg := NewRegistry(passRunner())
	reg.Register("explosive", RunnerFunc(func(ctx context.Context, check policy.Check, dir string) Result {
		panic("kaboom")
	}))

	cfg := policy.Default()
	cfg.RequiredChecks = []policy.Check{{Name: "explosive"}, {Name: "unit"}}

	pool := NewPool(2, reg)
	results := pool.RunAll(context.Background(), cfg, cfg.RequiredChecks, t.TempDir())

	require.Len(t, results, 2)
	assert.Equal(t, StatusError, results[0].Status)
	assert.Contains(t, results[0].Log, "kaboom")
	assert.Equal(t, StatusPass, results[1].Status)
}

func TestPoolUnregisteredCheck(t *testing.T) {
	cfg := policy.Default()
	cfg.RequiredChecks = []policy.Check{{Name: "mystery"}}

	pool := NewPool(1, NewRegistry(nil))
	results := pool.RunAll(context.Background(), cfg, cfg.RequiredChecks, t.TempDir())

	require.Len(t, results, 1)
	assert.Equal(t, StatusError, results[0].Status)
	assert.Contains(t, results[0].Log, "not present in runner registry")
}

func TestPoolFixesMissingResultName(t *testing.T) {
	reg := NewRegistry(RunnerFunc(func(ctx context.Context, check policy.Check, dir string) Result {
		// Sloppy runner that forgets to stamp the name.
		return Result{Status: StatusPass}
	}))

	cfg := policy.Default()
	cfg.RequiredChecks = []policy.Check{{Name: "unit"}}

	pool := NewPool(1, reg)
	results := pool.RunAll(context.Background(), cfg, cfg.RequiredChecks, t.TempDir())

	require.Len(t, results, 1)
	assert.Equal(t, "unit", results[0].Name)
}

func TestPoolAppliesPerCheckTimeout(t *testing.T) {
	var sawDeadline atomic.Bool
	reg := NewRegistry(RunnerFunc(func(ctx context.Context, check policy.Check, dir string) Result {
		if _, ok := ctx.Deadline(); ok {
			sawDeadline.Store(true)
		}
		select {
		case <-ctx.Done():
			return Result{Name: check.Name, Status: StatusTimeout}
		case <-time.After(10 * time.Second):
			return Result{Name: check.Name, Status: StatusPass}
		}
	}))

	cfg := policy.Default()
	cfg.CheckTimeout = policy.Duration(20 * time.Millisecond)
	cfg.RequiredChecks = []policy.Check{{Name: "unit"}}

	pool := NewPool(1, reg)
	results := pool.RunAll(context.Background(), cfg, cfg.RequiredChecks, t.TempDir())

	require.Len(t, results, 1)
	assert.Equal(t, StatusTimeout, results[0].Status)
	assert.True(t, sawDeadline.Load())
}

func TestPoolCancelledWhileQueued(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var once sync.Once
	blocker := RunnerFunc(func(runCtx context.Context, check policy.Check, dir string) Result {
		// First admitted check holds the only slot and cancels the
		// session, stranding the queued check on the semaphore.
		once.Do(cancel)
		<-runCtx.Done()
		return Result{Name: check.Name, Status: StatusTimeout}
	})

	cfg := policy.Default()
	cfg.RequiredChecks = []policy.Check{{Name: "a"}, {Name: "b"}}

	pool := NewPool(1, NewRegistry(blocker))
	results := pool.RunAll(ctx, cfg, cfg.RequiredChecks, t.TempDir())

	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, StatusTimeout, r.Status)
	}
}
