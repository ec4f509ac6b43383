/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package classify

import (
	"context"
	"strings"

	"github.com/chainguard-dev/clog"
)

// maxEvidenceBytes bounds the raw evidence carried in a FailureRecord so
// that attempt history and reports stay small.
const maxEvidenceBytes = 4096

// Outcome is the raw status of a check execution as seen by the classifier.
type Outcome string

const (
	// OutcomeFail means the check ran to completion and rejected the change.
	OutcomeFail Outcome = "fail"
	// OutcomeError means the check could not run to completion.
	OutcomeError Outcome = "error"
	// OutcomeTimeout means the check exceeded its deadline or was cancelled.
	OutcomeTimeout Outcome = "timeout"
)

// FallbackFunc is an optional generative classification capability consulted
// when the rule table cannot determine a class from the check name alone.
// It returns one of the taxonomy class strings.
type FallbackFunc func(ctx context.Context, checkName, evidence string) (string, error)

// Classifier maps raw check failures into the failure taxonomy.
//
// Classification is resolved in order: execution outcome (errors and
// timeouts are infrastructure, never code), check-name rules, evidence
// rules, the optional generative fallback, and finally PolicyViolation.
type Classifier struct {
	// Fallback, when non-nil, is consulted for failures the static rules
	// cannot place. A fallback error is not fatal; classification falls
	// through to PolicyViolation.
	Fallback FallbackFunc
}

// nameRules map a substring of the check name to a class. First match wins;
// order matters because "typecheck" contains "check".
var nameRules = []struct {
	substr string
	class  Class
}{
	{"secret", SecretLeak},
	{"gitleaks", SecretLeak},
	{"trufflehog", SecretLeak},
	{"typecheck", TypeFailure},
	{"types", TypeFailure},
	{"compile", TypeFailure},
	{"build", TypeFailure},
	{"lint", LintFailure},
	{"fmt", LintFailure},
	{"vet", LintFailure},
	{"style", LintFailure},
	{"test", TestFailure},
	{"unit", TestFailure},
	{"e2e", TestFailure},
	{"integration", TestFailure},
}

// evidenceInfraMarkers are log substrings that indicate an environment
// problem rather than a defect in the change, even when the check itself
// reported a plain failure.
var evidenceInfraMarkers = []string{
	"connection refused",
	"connection reset",
	"temporary failure in name resolution",
	"no space left on device",
	"i/o timeout",
	"context deadline exceeded",
	"sandbox unavailable",
	"429 too many requests",
	"503 service unavailable",
}

// Record classifies a single failing check execution into a FailureRecord.
func (c *Classifier) Record(ctx context.Context, checkName string, outcome Outcome, evidence string) FailureRecord {
	return FailureRecord{
		CheckName: checkName,
		Class:     c.class(ctx, checkName, outcome, evidence),
		Evidence:  truncate(evidence, maxEvidenceBytes),
	}
}

func (c *Classifier) class(ctx context.Context, checkName string, outcome Outcome, evidence string) Class {
	// Errors and timeouts are execution-environment failures. A cancelled
	// or crashed check never counts against the change.
	if outcome == OutcomeError || outcome == OutcomeTimeout {
		return FlakyInfra
	}

	lowerName := strings.ToLower(checkName)
	for _, rule := range nameRules {
		if strings.Contains(lowerName, rule.substr) {
			return rule.class
		}
	}

	lowerEvidence := strings.ToLower(evidence)
	for _, marker := range evidenceInfraMarkers {
		if strings.Contains(lowerEvidence, marker) {
			return FlakyInfra
		}
	}

	if c.Fallback != nil {
		raw, err := c.Fallback(ctx, checkName, evidence)
		if err == nil {
			if class, perr := ParseClass(raw); perr == nil {
				return class
			}
			clog.FromContext(ctx).With("check", checkName).
				With("class", raw).
				Warn("Fallback classifier returned unknown class")
		} else {
			clog.FromContext(ctx).With("check", checkName).
				With("error", err.Error()).
				Warn("Fallback classification failed")
		}
	}

	return PolicyViolation
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
