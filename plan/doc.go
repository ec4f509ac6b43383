/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package plan defines change requests and versioned change plans, and the
// planner that produces them through a generative capability.
//
// A plan is an ordered list of proposed edits plus a checklist mapping each
// requirement to the check that verifies it. Plans referencing files absent
// from the repository context, or with an empty checklist, are rejected as
// invalid and regenerated within a small internal retry cap; exhaustion
// surfaces as ErrGenerationFailed, which the verifier loop treats as a
// fatal internal defect rather than a repairable verification failure.
package plan
