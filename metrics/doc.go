/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package metrics exposes Prometheus instrumentation for verification
// sessions: session and attempt counters, infra retry totals, failure
// counts by taxonomy class, and a check duration histogram.
package metrics
