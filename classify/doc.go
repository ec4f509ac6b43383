/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package classify defines the failure taxonomy shared by the verifier loop
// and the mergeability gate, and maps raw check failures into it.
//
// The taxonomy partitions failures into three behavioral groups:
//
//   - code-attributable (test_failure, lint_failure, type_failure,
//     policy_violation, apply_conflict): repairable, each repair cycle
//     consuming attempt budget;
//   - infrastructure (flaky_infra): retried with exponential backoff
//     without consuming attempt budget;
//   - fatal (secret_leak, plus policy-configured non-waivable classes):
//     short-circuit the session immediately.
//
// plan_generation_failed is reserved for planner-internal defects and is
// produced by the verifier loop directly rather than by the classifier.
package classify
