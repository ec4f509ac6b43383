/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package checks

import (
	"context"
	"fmt"
	"sort"
	"time"

	"chainguard.dev/mergegate/policy"
	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Pool executes checks through a bounded worker pool shared across
// sessions. When the pool is saturated, new check invocations queue on the
// semaphore rather than spawning unbounded concurrency.
type Pool struct {
	sem      *semaphore.Weighted
	registry *Registry
}

// NewPool creates a pool admitting at most size concurrent check
// executions.
func NewPool(size int64, registry *Registry) *Pool {
	return &Pool{
		sem:      semaphore.NewWeighted(size),
		registry: registry,
	}
}

// RunAll executes the given checks concurrently against the sandbox
// directory and returns one Result per check, sorted by check name.
//
// RunAll is a fan-out/fan-in barrier: it returns only once every check has
// a result. It never returns partial results and never propagates runner
// faults; a panicking or misregistered runner yields an error-status
// Result, which downstream classification treats as infrastructure.
func (p *Pool) RunAll(ctx context.Context, cfg policy.Config, toRun []policy.Check, dir string) []Result {
	results := make([]Result, len(toRun))

	var g errgroup.Group
	for i, check := range toRun {
		g.Go(func() error {
			results[i] = p.runOne(ctx, cfg, check, dir)
			return nil
		})
	}
	// Workers never return errors; faults are captured as results.
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results
}

func (p *Pool) runOne(ctx context.Context, cfg policy.Config, check policy.Check, dir string) (result Result) {
	start := time.Now()

	// Capture runner faults rather than letting them unwind the session.
	defer func() {
		if r := recover(); r != nil {
			clog.FromContext(ctx).With("check", check.Name).
				With("panic", fmt.Sprint(r)).
				Error("Check runner panicked")
			result = Result{
				Name:     check.Name,
				Status:   StatusError,
				Duration: time.Since(start),
				Log:      fmt.Sprintf("runner panic: %v", r),
			}
		}
	}()

	// Admission control: queue until the pool has capacity.
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return Result{
			Name:     check.Name,
			Status:   StatusTimeout,
			Duration: time.Since(start),
			Log:      fmt.Sprintf("cancelled while queued: %v", err),
		}
	}
	defer p.sem.Release(1)

	runner, ok := p.registry.Lookup(check.Name)
	if !ok {
		// Treated as an environment problem: the policy requires a check
		// this runner deployment does not provide.
		return Result{
			Name:     check.Name,
			Status:   StatusError,
			Duration: time.Since(start),
			Log:      fmt.Sprintf("check %q not present in runner registry", check.Name),
		}
	}

	checkCtx := ctx
	if timeout := cfg.TimeoutFor(check.Name); timeout > 0 {
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result = runner.Run(checkCtx, check, dir)
	if result.Name == "" {
		result.Name = check.Name
	}
	return result
}
