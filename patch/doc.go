/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package patch materializes a change plan against a repository snapshot.
//
// Materialize stages the snapshot into a per-iteration sandbox directory,
// applies the plan's edits, and produces a unified diff of the result.
// Edits that contradict the snapshot (modifying or deleting a missing
// file, creating an existing one) fail with ErrApplyConflict, which the
// verifier treats as a code-attributable failure.
package patch
