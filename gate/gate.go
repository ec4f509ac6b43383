/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package gate

import (
	"fmt"
	"sort"

	"chainguard.dev/mergegate/classify"
	"chainguard.dev/mergegate/policy"
	"chainguard.dev/mergegate/verifier"
)

// Outcome is the merge decision for one session.
type Outcome string

const (
	// MergeReady means the change satisfied the mergeability policy.
	MergeReady Outcome = "MERGE_READY"
	// NotMergeable means verification ended in a failed terminal state.
	NotMergeable Outcome = "NOT_MERGEABLE"
)

// Group collects every failure of one taxonomy class across the session,
// with one recommended next action for the class.
type Group struct {
	Class classify.Class `json:"class"`
	// Checks lists the distinct failing check names, sorted.
	Checks []string `json:"checks"`
	// Count is the total number of failure records in the class.
	Count int `json:"count"`
	// Action is the recommended next step for this class of failure.
	Action string `json:"action"`
}

// FailureReport explains a NOT_MERGEABLE decision.
type FailureReport struct {
	// Terminal is the loop state the session ended in.
	Terminal verifier.State `json:"terminal"`
	// BudgetCause distinguishes infra exhaustion from code exhaustion on
	// FAIL_BUDGET terminals.
	BudgetCause verifier.BudgetCause `json:"budget_cause,omitempty"`
	// FatalClass names the class that forced a FAIL_FATAL terminal.
	FatalClass classify.Class `json:"fatal_class,omitempty"`
	// Groups holds every failure across all attempts, grouped by class in
	// taxonomy order.
	Groups []Group `json:"groups"`
}

// Decision is the terminal merge decision of one session. Each session has
// exactly one.
type Decision struct {
	Outcome Outcome        `json:"outcome"`
	Report  *FailureReport `json:"report,omitempty"`
}

// Decide converts a terminal verification record into a merge decision.
//
// Decide is pure: it has no side effects, and identical records with an
// identical policy always produce an identical decision. PR creation on
// MERGE_READY belongs to the VCS collaborator, never here.
func Decide(record *verifier.Record, cfg policy.Config) (Decision, error) {
	if record == nil || !record.Terminal.Terminal() {
		return Decision{}, fmt.Errorf("record is not terminal")
	}

	if record.Terminal == verifier.StatePass {
		return Decision{Outcome: MergeReady}, nil
	}

	return Decision{
		Outcome: NotMergeable,
		Report: &FailureReport{
			Terminal:    record.Terminal,
			BudgetCause: record.BudgetCause,
			FatalClass:  record.FatalClass,
			Groups:      groupFailures(record.Failures()),
		},
	}, nil
}

// groupFailures buckets failure records by class, in taxonomy order, with
// check names deduplicated and sorted.
func groupFailures(failures []classify.FailureRecord) []Group {
	byClass := make(map[classify.Class][]classify.FailureRecord)
	for _, f := range failures {
		byClass[f.Class] = append(byClass[f.Class], f)
	}

	var groups []Group
	for _, class := range classify.Classes() {
		records := byClass[class]
		if len(records) == 0 {
			continue
		}
		seen := make(map[string]bool)
		var names []string
		for _, r := range records {
			if !seen[r.CheckName] {
				seen[r.CheckName] = true
				names = append(names, r.CheckName)
			}
		}
		sort.Strings(names)
		groups = append(groups, Group{
			Class:  class,
			Checks: names,
			Count:  len(records),
			Action: recommendedAction(class, names),
		})
	}
	return groups
}

// recommendedAction returns the one next action suggested for a failure
// class.
func recommendedAction(class classify.Class, checks []string) string {
	switch class {
	case classify.TestFailure:
		return fmt.Sprintf("add or strengthen test coverage for %s", joinChecks(checks))
	case classify.LintFailure:
		return fmt.Sprintf("fix style violations reported by %s", joinChecks(checks))
	case classify.TypeFailure:
		return fmt.Sprintf("fix type or build errors reported by %s", joinChecks(checks))
	case classify.SecretLeak:
		return "rotate the exposed credential and remove it from the change"
	case classify.PolicyViolation:
		return "manual review required"
	case classify.FlakyInfra:
		return "investigate check infrastructure; failures were not attributed to the change"
	case classify.ApplyConflict:
		return "regenerate the change against the current repository snapshot"
	case classify.PlanGenerationFailed:
		return "inspect the planner transcript; plan generation is an internal defect"
	default:
		return "manual review required"
	}
}

func joinChecks(checks []string) string {
	switch len(checks) {
	case 0:
		return "the failing checks"
	case 1:
		return checks[0]
	default:
		out := checks[0]
		for _, c := range checks[1:] {
			out += ", " + c
		}
		return out
	}
}
