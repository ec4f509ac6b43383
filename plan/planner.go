/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package plan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chainguard.dev/mergegate/capability"
	"chainguard.dev/mergegate/classify"
	"chainguard.dev/mergegate/repocontext"
	"github.com/chainguard-dev/clog"
)

// ErrGenerationFailed marks planner exhaustion: no valid plan could be
// produced within the internal retry cap. It is an internal defect,
// distinct from the session's repair budget.
var ErrGenerationFailed = errors.New("plan generation failed")

// Planner produces versioned change plans through a generative capability.
type Planner struct {
	// Capability generates plan candidates.
	Capability capability.Generative
	// RetryCap bounds internal retries after an invalid or failed
	// generation before giving up. 0 means a single try.
	RetryCap int
	// Seed anchors generation. Identical seed and inputs reproduce an
	// identical plan under transcript replay.
	Seed int64
}

// Plan generates the next plan version. On repair cycles, prior carries the
// classified failures from the previous attempt.
func (p *Planner) Plan(ctx context.Context, req ChangeRequest, rc *repocontext.Context, prior []classify.FailureRecord, version int, requiredChecks []string) (*ChangePlan, error) {
	log := clog.FromContext(ctx)

	contextJSON, err := json.Marshal(rc)
	if err != nil {
		return nil, fmt.Errorf("encoding context: %w", err)
	}
	schema, err := Schema()
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= p.RetryCap; attempt++ {
		capReq := capability.PlanRequest{
			Issue:          req.Issue,
			ContextJSON:    contextJSON,
			ResponseSchema: schema,
			PriorFailures:  prior,
			// Derive the seed from the internal attempt so that a
			// retried generation explores a different sample while the
			// whole sequence stays reproducible.
			Seed:    p.Seed + int64(attempt),
			Version: version,
		}

		raw, err := p.Capability.GeneratePlan(ctx, capReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			log.With("version", version).
				With("attempt", attempt+1).
				With("error", err.Error()).
				Warn("Plan generation call failed")
			continue
		}

		candidate := &ChangePlan{}
		if err := json.Unmarshal(raw, candidate); err != nil {
			lastErr = fmt.Errorf("%w: decoding plan: %v", ErrInvalid, err)
			log.With("version", version).With("attempt", attempt+1).
				Warn("Generated plan is not valid JSON")
			continue
		}
		candidate.Version = version

		if err := Validate(candidate, rc, requiredChecks); err != nil {
			lastErr = err
			log.With("version", version).
				With("attempt", attempt+1).
				With("error", err.Error()).
				Warn("Generated plan rejected by validation")
			continue
		}
		return candidate, nil
	}

	return nil, fmt.Errorf("%w after %d tries: %w", ErrGenerationFailed, p.RetryCap+1, lastErr)
}
