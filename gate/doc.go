/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package gate turns a terminal verification record into the merge
// decision. Decide is a pure function; the resulting FailureReport groups
// every classified failure by taxonomy class with one recommended action
// per class, in a deterministic order.
package gate
