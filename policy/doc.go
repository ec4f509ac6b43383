/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package policy loads and validates the mergeability policy artifact: the
// required check set, the non-waivable failure classes, and the session
// budgets (repair attempts, wall clock, infrastructure retries).
//
// Policies are YAML files:
//
//	required_checks:
//	  - name: unit-tests
//	    run: go test ./...
//	    timeout: 5m
//	  - name: secret-scan
//	    run: gitleaks detect --no-banner
//	non_waivable: [policy_violation]
//	max_attempts: 3
//	max_wall_clock: 30m
//	max_infra_retries: 3
//
// A loaded Config is immutable for the lifetime of a verification session.
package policy
