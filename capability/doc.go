/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package capability defines the generative plan/classify contract and its
// record-and-replay transcript support.
//
// Nondeterministic components (model-backed planning and classification)
// sit behind the Generative interface, which accepts an explicit seed.
// NewRecorder wraps a live capability and records every call keyed by a
// digest of the request; NewReplayer answers the same requests from the
// recorded transcript, giving tests deterministic, provider-neutral
// reproducibility.
//
// Live implementations live in the claudecap and openaicap subpackages.
package capability
