/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package checks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"chainguard.dev/mergegate/policy"
	"github.com/chainguard-dev/clog"
)

// Runner executes one named verification check against a candidate sandbox
// directory. Implementations must respect context cancellation and must be
// safely retryable: running the same check against the same sandbox twice
// is allowed and must not compound state.
type Runner interface {
	Run(ctx context.Context, check policy.Check, dir string) Result
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, check policy.Check, dir string) Result

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, check policy.Check, dir string) Result {
	return f(ctx, check, dir)
}

// CommandRunner executes a check's command in the sandbox directory via the
// shell. The caller supplies the deadline through the context.
type CommandRunner struct {
	// LogDir, when set, receives one log file per execution.
	LogDir string
}

// Run implements Runner.
func (r *CommandRunner) Run(ctx context.Context, check policy.Check, dir string) Result {
	log := clog.FromContext(ctx).With("check", check.Name)
	start := time.Now()

	if check.Run == "" {
		return Result{
			Name:     check.Name,
			Status:   StatusError,
			Duration: time.Since(start),
			Log:      "check has no command configured",
		}
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", check.Run)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	duration := time.Since(start)

	result := Result{
		Name:     check.Name,
		Duration: duration,
		Log:      tail(string(output), maxLogBytes),
		LogRef:   r.persistLog(ctx, check.Name, output),
	}

	switch {
	case err == nil:
		result.Status = StatusPass
	case ctx.Err() != nil:
		// Deadline or session cancellation; never attributed to the change.
		result.Status = StatusTimeout
		log.With("duration", duration).Warn("Check timed out")
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.Status = StatusFail
		} else {
			// The command could not be started at all.
			result.Status = StatusError
			result.Log = tail(fmt.Sprintf("%s\n%v", output, err), maxLogBytes)
		}
	}

	log.With("status", result.Status).With("duration", duration).Debug("Check finished")
	return result
}

func (r *CommandRunner) persistLog(ctx context.Context, checkName string, output []byte) string {
	if r.LogDir == "" {
		return ""
	}
	path := filepath.Join(r.LogDir, fmt.Sprintf("%s-%d.log", checkName, time.Now().UnixNano()))
	if err := os.WriteFile(path, output, 0o600); err != nil {
		clog.FromContext(ctx).With("check", checkName).
			With("error", err.Error()).
			Warn("Failed to persist check log")
		return ""
	}
	return path
}
