/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package backoff provides exponential backoff with jitter for retrying
// transient failures.
//
// It is shared by the verifier loop (infrastructure-level check retries that
// must not consume the repair budget) and by the generative capability
// clients (model API rate limits and overload errors). Callers supply an
// isRetryable predicate so that permanent failures return immediately.
package backoff
