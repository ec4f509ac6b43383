/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package patch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"chainguard.dev/mergegate/plan"
	"chainguard.dev/mergegate/repocontext"
	"github.com/waigani/diffparser"
)

// ErrApplyConflict marks a plan whose edits cannot be applied to the
// snapshot: modifying or deleting a file that does not exist, or creating
// one that already does. The verifier classifies it apply_conflict and it
// consumes a repair attempt.
var ErrApplyConflict = errors.New("apply conflict")

// Patch is the materialized form of one plan version. A patch is owned by
// the iteration that produced it and is never reused across iterations.
type Patch struct {
	// Version is the plan version the patch was derived from.
	Version int `json:"version"`
	// Dir is the sandbox directory holding the patched tree.
	Dir string `json:"-"`
	// Diff is the unified diff between the snapshot and the patched tree.
	Diff string `json:"diff,omitempty"`
	// Files lists the touched paths, sorted.
	Files []string `json:"files"`
}

// Materialize stages the snapshot into a fresh directory under baseDir and
// applies the plan's edits, returning the resulting patch. The sandbox
// directory is left in place for check execution; callers own its cleanup.
func Materialize(src repocontext.Source, p *plan.ChangePlan, baseDir string) (*Patch, error) {
	dir, err := os.MkdirTemp(baseDir, fmt.Sprintf("patch-v%d-", p.Version))
	if err != nil {
		return nil, fmt.Errorf("creating sandbox: %w", err)
	}
	if err := src.Export(dir); err != nil {
		return nil, fmt.Errorf("staging snapshot: %w", err)
	}

	var diff strings.Builder
	files := make([]string, 0, len(p.Edits))
	for _, edit := range p.Edits {
		target := filepath.Join(dir, filepath.FromSlash(edit.Path))
		if !strings.HasPrefix(target, dir+string(os.PathSeparator)) {
			return nil, fmt.Errorf("%w: edit path %q escapes the sandbox", ErrApplyConflict, edit.Path)
		}
		before, statErr := os.ReadFile(target)
		exists := statErr == nil

		switch edit.Op {
		case plan.OpCreate:
			if exists {
				return nil, fmt.Errorf("%w: create of existing file %s", ErrApplyConflict, edit.Path)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return nil, fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
			}
			if err := os.WriteFile(target, []byte(edit.Content), 0o644); err != nil {
				return nil, fmt.Errorf("writing %s: %w", edit.Path, err)
			}
			writeFileDiff(&diff, edit.Op, edit.Path, "", edit.Content)

		case plan.OpModify:
			if !exists {
				return nil, fmt.Errorf("%w: modify of missing file %s", ErrApplyConflict, edit.Path)
			}
			if err := os.WriteFile(target, []byte(edit.Content), 0o644); err != nil {
				return nil, fmt.Errorf("writing %s: %w", edit.Path, err)
			}
			writeFileDiff(&diff, edit.Op, edit.Path, string(before), edit.Content)

		case plan.OpDelete:
			if !exists {
				return nil, fmt.Errorf("%w: delete of missing file %s", ErrApplyConflict, edit.Path)
			}
			if err := os.Remove(target); err != nil {
				return nil, fmt.Errorf("deleting %s: %w", edit.Path, err)
			}
			writeFileDiff(&diff, edit.Op, edit.Path, string(before), "")

		default:
			return nil, fmt.Errorf("%w: unknown edit op %q", ErrApplyConflict, edit.Op)
		}
		files = append(files, edit.Path)
	}
	sort.Strings(files)

	// A malformed diff here is a bug in diff generation, not in the plan.
	if _, err := diffparser.Parse(diff.String()); err != nil {
		return nil, fmt.Errorf("generated diff does not parse: %w", err)
	}

	return &Patch{
		Version: p.Version,
		Dir:     dir,
		Diff:    diff.String(),
		Files:   files,
	}, nil
}

// Stat summarizes a patch's diff using the parsed hunks: files touched,
// lines added, lines removed.
func (p *Patch) Stat() (files, added, removed int, err error) {
	parsed, err := diffparser.Parse(p.Diff)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("parsing diff: %w", err)
	}
	for _, f := range parsed.Files {
		files++
		for _, hunk := range f.Hunks {
			for _, line := range hunk.WholeRange.Lines {
				switch line.Mode {
				case diffparser.ADDED:
					added++
				case diffparser.REMOVED:
					removed++
				}
			}
		}
	}
	return files, added, removed, nil
}

// writeFileDiff appends a whole-file unified diff for one edit. Hunks cover
// the entire file; that keeps generation trivial and deterministic while
// remaining valid unified-diff syntax. Each file starts with a git-style
// header line, which diffparser requires to delimit files.
func writeFileDiff(b *strings.Builder, op plan.EditOp, path, before, after string) {
	oldName, newName := "a/"+path, "b/"+path
	if op == plan.OpCreate {
		oldName = "/dev/null"
	}
	if op == plan.OpDelete {
		newName = "/dev/null"
	}
	oldLines := splitLines(before)
	newLines := splitLines(after)

	oldStart := 1
	if len(oldLines) == 0 {
		oldStart = 0
	}
	newStart := 1
	if len(newLines) == 0 {
		newStart = 0
	}

	fmt.Fprintf(b, "diff --git a/%s b/%s\n", path, path)
	fmt.Fprintf(b, "--- %s\n", oldName)
	fmt.Fprintf(b, "+++ %s\n", newName)
	fmt.Fprintf(b, "@@ -%d,%d +%d,%d @@\n", oldStart, len(oldLines), newStart, len(newLines))
	for _, line := range oldLines {
		b.WriteString("-")
		b.WriteString(line)
		b.WriteString("\n")
	}
	for _, line := range newLines {
		b.WriteString("+")
		b.WriteString(line)
		b.WriteString("\n")
	}
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}
