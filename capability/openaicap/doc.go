/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package openaicap implements the generative plan/classify capability on
// the OpenAI chat completions API.
//
// It mirrors claudecap, with one difference: OpenAI accepts the plan
// request's seed as a native sampling parameter, so seeded generation is
// best-effort reproducible even before transcript replay.
package openaicap
