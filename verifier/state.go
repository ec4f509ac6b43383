/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package verifier

// State is one state of the verification state machine.
type State string

const (
	// StatePlan invokes the patch planner to produce a plan version.
	StatePlan State = "PLAN"
	// StateApply materializes the plan into a candidate sandbox.
	StateApply State = "APPLY"
	// StateCheck fans out the policy's required checks.
	StateCheck State = "CHECK"
	// StateClassify derives failure records from the check results.
	StateClassify State = "CLASSIFY"
	// StateRepair feeds failure records back into planning, consuming one
	// repair attempt.
	StateRepair State = "REPAIR"

	// StatePass is the terminal state where every required check passed.
	StatePass State = "PASS"
	// StateFailBudget is the terminal state where a budget (repair
	// attempts, infra retries, or wall clock) ran out.
	StateFailBudget State = "FAIL_BUDGET"
	// StateFailFatal is the terminal state forced by a non-waivable
	// failure or a planner defect, regardless of remaining budget.
	StateFailFatal State = "FAIL_FATAL"
)

// Terminal reports whether the state ends the session.
func (s State) Terminal() bool {
	switch s {
	case StatePass, StateFailBudget, StateFailFatal:
		return true
	}
	return false
}

// BudgetCause distinguishes which budget forced a FAIL_BUDGET terminal.
type BudgetCause string

const (
	// CauseAttemptsExhausted means code-attributable failures consumed the
	// repair budget.
	CauseAttemptsExhausted BudgetCause = "attempts_exhausted"
	// CauseInfraExhausted means infrastructure retries ran out before the
	// environment recovered. The change itself was never proven defective.
	CauseInfraExhausted BudgetCause = "infra_exhausted"
	// CauseWallClockExhausted means the session deadline expired.
	CauseWallClockExhausted BudgetCause = "wall_clock_exhausted"
)
