/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package plan

import (
	"errors"
	"fmt"

	"chainguard.dev/mergegate/repocontext"
)

// ChangeRequest describes the change a session is asked to produce. It is
// immutable once a session starts.
type ChangeRequest struct {
	// Issue is the free-form change request text.
	Issue string `json:"issue"`
	// Repo identifies the target repository.
	Repo string `json:"repo"`
	// PolicyRef names the mergeability policy governing the session.
	PolicyRef string `json:"policy_ref,omitempty"`
}

// EditOp is the kind of a proposed edit.
type EditOp string

const (
	// OpCreate adds a new file.
	OpCreate EditOp = "create"
	// OpModify replaces the content of an existing file.
	OpModify EditOp = "modify"
	// OpDelete removes an existing file.
	OpDelete EditOp = "delete"
)

// Edit is one proposed file change.
type Edit struct {
	Op   EditOp `json:"op" jsonschema:"enum=create,enum=modify,enum=delete"`
	Path string `json:"path"`
	// Content is the full post-edit file content. Unused for delete.
	Content string `json:"content,omitempty"`
}

// ChecklistItem maps one requirement of the change to the check that
// verifies it.
type ChecklistItem struct {
	Requirement string `json:"requirement"`
	// Check names a required check from the policy.
	Check string `json:"check"`
}

// ChangePlan is one versioned plan proposal. Plans are never mutated: each
// repair cycle produces a new version.
type ChangePlan struct {
	Version   int             `json:"version"`
	Summary   string          `json:"summary,omitempty"`
	Edits     []Edit          `json:"edits"`
	Checklist []ChecklistItem `json:"checklist"`
}

// ErrInvalid marks a plan rejected by validation. Invalid plans trigger a
// bounded internal planner retry, never a repair cycle.
var ErrInvalid = errors.New("invalid plan")

// Validate rejects plans that reference files absent from the repository
// context (other than declared new files), carry an empty checklist, or
// name checks outside the required set.
func Validate(p *ChangePlan, rc *repocontext.Context, requiredChecks []string) error {
	if len(p.Edits) == 0 {
		return fmt.Errorf("%w: no edits proposed", ErrInvalid)
	}
	if len(p.Checklist) == 0 {
		return fmt.Errorf("%w: empty checklist", ErrInvalid)
	}

	seen := make(map[string]bool, len(p.Edits))
	for _, e := range p.Edits {
		if e.Path == "" {
			return fmt.Errorf("%w: edit with empty path", ErrInvalid)
		}
		if seen[e.Path] {
			return fmt.Errorf("%w: duplicate edit for %s", ErrInvalid, e.Path)
		}
		seen[e.Path] = true

		switch e.Op {
		case OpCreate:
			// New files need not be in context.
		case OpModify, OpDelete:
			if !rc.Has(e.Path) {
				return fmt.Errorf("%w: %s edit references %s, absent from context", ErrInvalid, e.Op, e.Path)
			}
		default:
			return fmt.Errorf("%w: unknown edit op %q", ErrInvalid, e.Op)
		}
	}

	known := make(map[string]bool, len(requiredChecks))
	for _, name := range requiredChecks {
		known[name] = true
	}
	for _, item := range p.Checklist {
		if item.Check == "" {
			return fmt.Errorf("%w: checklist item %q names no check", ErrInvalid, item.Requirement)
		}
		if !known[item.Check] {
			return fmt.Errorf("%w: checklist references unknown check %q", ErrInvalid, item.Check)
		}
	}
	return nil
}
