/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package classify

import "fmt"

// Class is a failure taxonomy class. Every check failure observed by the
// verifier loop is mapped to exactly one Class before the loop decides
// between repair, retry, and terminal failure.
type Class string

const (
	// TestFailure indicates a failing test in the candidate change.
	TestFailure Class = "test_failure"
	// LintFailure indicates a style or lint violation.
	LintFailure Class = "lint_failure"
	// TypeFailure indicates a type or compile error.
	TypeFailure Class = "type_failure"
	// SecretLeak indicates a credential or secret detected in the change.
	// SecretLeak is always fatal and never subject to repair.
	SecretLeak Class = "secret_leak"
	// PolicyViolation indicates a failure that does not match any more
	// specific class but is attributable to the change itself.
	PolicyViolation Class = "policy_violation"
	// FlakyInfra indicates a transient execution-environment failure
	// rather than a defect in the candidate change.
	FlakyInfra Class = "flaky_infra"
	// ApplyConflict indicates the materialized patch could not be applied
	// to the repository snapshot.
	ApplyConflict Class = "apply_conflict"
	// PlanGenerationFailed indicates the planner could not produce a valid
	// plan within its internal retry cap. It is an internal defect, not a
	// verification failure, and never consumes repair budget.
	PlanGenerationFailed Class = "plan_generation_failed"
)

// Classes enumerates every taxonomy class in reporting order.
func Classes() []Class {
	return []Class{
		TestFailure,
		LintFailure,
		TypeFailure,
		SecretLeak,
		PolicyViolation,
		FlakyInfra,
		ApplyConflict,
		PlanGenerationFailed,
	}
}

// ParseClass validates a raw class string, typically one returned by a
// generative classification capability.
func ParseClass(s string) (Class, error) {
	c := Class(s)
	switch c {
	case TestFailure, LintFailure, TypeFailure, SecretLeak,
		PolicyViolation, FlakyInfra, ApplyConflict, PlanGenerationFailed:
		return c, nil
	}
	return "", fmt.Errorf("unknown failure class %q", s)
}

// CodeAttributable reports whether the class represents a defect in the
// candidate change. Code-attributable failures consume repair budget.
func (c Class) CodeAttributable() bool {
	switch c {
	case TestFailure, LintFailure, TypeFailure, PolicyViolation, ApplyConflict:
		return true
	}
	return false
}

// Infra reports whether the class represents a transient infrastructure
// failure, retried with backoff without consuming repair budget.
func (c Class) Infra() bool {
	return c == FlakyInfra
}

// AlwaysFatal reports whether the class short-circuits the session to
// FAIL_FATAL regardless of remaining budget. Only SecretLeak is
// unconditionally fatal; policies may designate additional non-waivable
// classes.
func (c Class) AlwaysFatal() bool {
	return c == SecretLeak
}

// FailureRecord captures one classified check failure. Records are immutable
// once appended to a verification attempt.
type FailureRecord struct {
	CheckName string `json:"check_name"`
	Class     Class  `json:"class"`
	// Evidence holds the raw failure output the classification was derived
	// from, truncated to a bounded prefix.
	Evidence string `json:"evidence,omitempty"`
}
