/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package checks executes policy-required verification checks against a
// materialized candidate working tree.
//
// Execution is mediated by a Registry mapping check names to Runner
// implementations and a bounded Pool providing fan-out/fan-in with
// admission control. Check outcomes are reported as Results carrying a
// coarse status (pass, fail, error, timeout) and a bounded log excerpt;
// interpretation of non-pass statuses is left to the caller.
package checks
