/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package mergegate composes the verifier loop and the mergeability gate
// into the single run operation exposed to callers.
package mergegate

import (
	"context"
	"fmt"
	"time"

	"chainguard.dev/mergegate/classify"
	"chainguard.dev/mergegate/gate"
	"chainguard.dev/mergegate/plan"
	"chainguard.dev/mergegate/verifier"
)

// Report is the JSON-serializable outcome of one session.
type Report struct {
	// Decision is the merge decision, with a failure report when the
	// change is not mergeable.
	Decision gate.Decision `json:"decision"`
	// Attempts is the full verification attempt history.
	Attempts []verifier.Attempt `json:"attempts"`
	// FailureTaxonomyCounts tallies every classified failure by class.
	FailureTaxonomyCounts map[classify.Class]int `json:"failure_taxonomy_counts"`
	// Elapsed is the session wall-clock duration.
	Elapsed time.Duration `json:"elapsed"`
}

// Run drives one verification session to its terminal state and gates the
// result. It returns an error only for internal faults; verification
// outcomes, mergeable or not, are expressed through the Report.
func Run(ctx context.Context, v *verifier.Verifier, req plan.ChangeRequest) (*Report, error) {
	record, err := v.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	decision, err := gate.Decide(record, v.Policy)
	if err != nil {
		return nil, fmt.Errorf("gating session: %w", err)
	}
	return &Report{
		Decision:              decision,
		Attempts:              record.Attempts,
		FailureTaxonomyCounts: record.TaxonomyCounts(),
		Elapsed:               record.Elapsed,
	}, nil
}
