/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package vcs

import "context"

// Proposal carries everything needed to open a pull request for a verified
// change. The head branch must already hold the change.
type Proposal struct {
	// Owner and Repo identify the target repository.
	Owner string
	Repo  string
	// Head is the branch holding the verified change; Base is the branch
	// the PR targets.
	Head string
	Base string
	// Issue is the original change-request text.
	Issue string
	// Summary is the plan summary of the released version.
	Summary string
	// Files lists the touched paths.
	Files []string
	// Attempts is the number of verification iterations the session used.
	Attempts int
	// Labels are applied to the created PR.
	Labels []string
	// Draft opens the PR as a draft.
	Draft bool
}

// PRCreator opens a pull request for a verified change. It is invoked only
// after a MERGE_READY decision.
type PRCreator interface {
	// CreatePR opens the pull request and returns its URL.
	CreatePR(ctx context.Context, p Proposal) (string, error)
}
