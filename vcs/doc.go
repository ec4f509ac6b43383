/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package vcs opens pull requests for verified changes. The PRCreator
// contract is invoked only after the mergeability gate returns
// MERGE_READY; verification itself never talks to the forge.
package vcs
