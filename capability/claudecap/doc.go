/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package claudecap implements the generative plan/classify capability on
// the Anthropic API.
//
// Transient API errors (rate limits, overload, gateway failures) are
// retried with exponential backoff. Responses are parsed with the shared
// markdown-fence JSON extraction, so models that wrap output in code fences
// still round-trip. Wrap a Capability in capability.NewRecorder to capture
// transcripts for deterministic replay.
package claudecap
