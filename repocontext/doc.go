/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package repocontext derives a bounded, relevance-ranked summary of a
// repository for a change request.
//
// The builder scores every candidate file by path-term overlap with the
// request text, recent-churn recency, and ownership overlap, then selects
// the top entries under the policy's context budget. Ties are broken by
// path lexical order so that identical inputs always yield an identical
// context. When nothing scores above the minimum relevance threshold, the
// builder returns a minimal context carrying an explicit NotFound signal
// rather than an error.
package repocontext
