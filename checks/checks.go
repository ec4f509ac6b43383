/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package checks

import (
	"time"
)

// maxLogBytes bounds the log tail carried inline on a Result.
const maxLogBytes = 16 * 1024

// Status is the terminal status of one check execution.
type Status string

const (
	// StatusPass means the check accepted the candidate change.
	StatusPass Status = "pass"
	// StatusFail means the check ran to completion and rejected it.
	StatusFail Status = "fail"
	// StatusError means the check could not run to completion.
	StatusError Status = "error"
	// StatusTimeout means the check exceeded its deadline or was
	// cancelled by the session budget.
	StatusTimeout Status = "timeout"
)

// Result records one check execution. Results are immutable once recorded.
type Result struct {
	// Name is the check name from the policy.
	Name string `json:"name"`
	// Status is the terminal status.
	Status Status `json:"status"`
	// Duration is the wall-clock execution time.
	Duration time.Duration `json:"duration"`
	// Log is a bounded tail of the check's combined output, used as
	// classification evidence.
	Log string `json:"log,omitempty"`
	// LogRef is the path of the full log file, when log persistence is
	// configured.
	LogRef string `json:"log_ref,omitempty"`
}

// Passed reports whether the check accepted the change.
func (r Result) Passed() bool {
	return r.Status == StatusPass
}

// tail returns the last n bytes of s.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
