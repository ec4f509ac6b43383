/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package verifier implements the verification loop: an explicit state
// machine (PLAN, APPLY, CHECK, CLASSIFY, then REPAIR or a terminal state)
// that drives a change plan through the policy's required checks across
// bounded repair iterations.
//
// Budget accounting lives in the Session: repair attempts are consumed
// only by REPAIR transitions on code-attributable failures, infra retries
// are bounded separately and backed off exponentially, and a wall-clock
// deadline cancels the whole session cooperatively. Non-waivable failure
// classes short-circuit to FAIL_FATAL in the same iteration regardless of
// remaining budget.
//
// The loop's terminal Record is the sole input, with the policy, to the
// mergeability gate.
package verifier
