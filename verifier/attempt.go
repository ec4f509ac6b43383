/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package verifier

import (
	"time"

	"chainguard.dev/mergegate/checks"
	"chainguard.dev/mergegate/classify"
)

// Attempt records one verification iteration. Attempts are appended to the
// session history before the loop transitions and are never mutated
// afterward.
type Attempt struct {
	// Iteration is the 1-based iteration index.
	Iteration int `json:"iteration"`
	// PatchVersion is the plan version the iteration verified.
	PatchVersion int `json:"patch_version"`
	// Files lists the paths the iteration's patch touched, sorted. Empty
	// when the patch never materialized.
	Files []string `json:"files,omitempty"`
	// Results holds the final check results of the iteration, sorted by
	// check name. Results of checks re-run on infra retries replace the
	// earlier error results.
	Results []checks.Result `json:"results,omitempty"`
	// Failures holds the classified failure records, sorted by check name.
	Failures []classify.FailureRecord `json:"failures,omitempty"`
	// InfraRetries is the number of infra retry rounds the iteration
	// consumed. Infra retries never consume the repair budget.
	InfraRetries int `json:"infra_retries,omitempty"`
	// Outcome is the transition taken after the attempt was recorded.
	Outcome State `json:"outcome"`
}

// Record is the terminal verification record of one session. It is the
// sole input, together with the policy, to the mergeability gate.
type Record struct {
	// Terminal is the state the session ended in.
	Terminal State `json:"terminal"`
	// BudgetCause is set when Terminal is FAIL_BUDGET.
	BudgetCause BudgetCause `json:"budget_cause,omitempty"`
	// FatalClass is the failure class that forced FAIL_FATAL, when
	// Terminal is FAIL_FATAL.
	FatalClass classify.Class `json:"fatal_class,omitempty"`
	// Attempts is the append-only iteration history.
	Attempts []Attempt `json:"attempts"`
	// AttemptsConsumed counts repair-budget consumption. Only REPAIR
	// transitions consume the budget; infra retries and fatal
	// short-circuits never do.
	AttemptsConsumed int `json:"attempts_consumed"`
	// InfraRetries is the total infra retry count across the session.
	InfraRetries int `json:"infra_retries"`
	// States is the full state trace, in order. Identical inputs and
	// seed produce an identical trace.
	States []State `json:"states"`
	// Elapsed is the session wall-clock duration.
	Elapsed time.Duration `json:"elapsed"`
}

// Failures returns every failure record across all attempts, in attempt
// order and sorted by check name within an attempt.
func (r *Record) Failures() []classify.FailureRecord {
	var out []classify.FailureRecord
	for _, a := range r.Attempts {
		out = append(out, a.Failures...)
	}
	return out
}

// TaxonomyCounts tallies failure records by class across all attempts.
func (r *Record) TaxonomyCounts() map[classify.Class]int {
	counts := make(map[classify.Class]int)
	for _, f := range r.Failures() {
		counts[f.Class]++
	}
	return counts
}
