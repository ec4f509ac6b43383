/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package capability

import (
	"context"
	"encoding/json"

	"chainguard.dev/mergegate/classify"
)

// PlanRequest carries everything a generative capability needs to propose a
// change plan. All fields participate in the transcript digest, so identical
// requests replay to identical responses.
type PlanRequest struct {
	// Issue is the change-request text.
	Issue string `json:"issue"`
	// ContextJSON is the serialized repository context.
	ContextJSON json.RawMessage `json:"context"`
	// ResponseSchema is the JSON schema the response must conform to.
	ResponseSchema json.RawMessage `json:"response_schema,omitempty"`
	// PriorFailures lists classified failures from the previous iteration
	// on repair cycles. Empty on the first iteration.
	PriorFailures []classify.FailureRecord `json:"prior_failures,omitempty"`
	// Seed makes generation reproducible. Identical seed and inputs must
	// produce an identical plan under replay.
	Seed int64 `json:"seed"`
	// Version is the plan version being requested, starting at 1.
	Version int `json:"version"`
}

// Generative is the plan/classify capability contract. Implementations must
// be safe for concurrent use and must support deterministic replay from a
// recorded transcript.
type Generative interface {
	// GeneratePlan returns the raw JSON of a proposed change plan.
	GeneratePlan(ctx context.Context, req PlanRequest) (json.RawMessage, error)
	// ClassifyFailure maps raw failure evidence to a taxonomy class name.
	ClassifyFailure(ctx context.Context, checkName, evidence string) (string, error)
}
