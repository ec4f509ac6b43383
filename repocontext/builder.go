/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package repocontext

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"chainguard.dev/mergegate/policy"
	"github.com/chainguard-dev/clog"
)

// Scoring weights. Term overlap dominates; churn and ownership refine.
const (
	termWeight      = 0.6
	churnWeight     = 0.25
	ownershipWeight = 0.15
)

// Entry is one file selected into the context.
type Entry struct {
	Path string `json:"path"`
	// Score is the relevance score the entry was selected with.
	Score float64 `json:"score"`
	// Owners lists the owning teams or users, when an ownership map is
	// available.
	Owners []string `json:"owners,omitempty"`
	// FailureHints carries recent CI failure summaries recorded against
	// this path.
	FailureHints []string `json:"failure_hints,omitempty"`
	// Excerpt is a bounded prefix of the file content.
	Excerpt string `json:"excerpt,omitempty"`
}

// Context is the bounded repository summary handed to the patch planner.
// It is immutable for the lifetime of a session.
type Context struct {
	Entries []Entry `json:"entries"`
	// NotFound is set when no file scored above the policy's minimum
	// relevance threshold. It is a signal, not an error.
	NotFound bool `json:"not_found,omitempty"`
	// TotalBytes is the number of excerpt bytes included.
	TotalBytes int `json:"total_bytes"`
}

// Has reports whether the context contains the given path.
func (c *Context) Has(path string) bool {
	for _, e := range c.Entries {
		if e.Path == path {
			return true
		}
	}
	return false
}

// Paths returns the selected paths in ranked order.
func (c *Context) Paths() []string {
	paths := make([]string, 0, len(c.Entries))
	for _, e := range c.Entries {
		paths = append(paths, e.Path)
	}
	return paths
}

// Builder derives a Context from a Source. All inputs are read-only; the
// same inputs always produce the same Context.
type Builder struct {
	Source Source
	// Owners is optional; without it the ownership component scores zero.
	Owners *Owners
	// RecentFailures maps paths to recent CI failure hints. Optional.
	RecentFailures map[string][]string
	// Budget bounds the context size.
	Budget policy.ContextBudget
	// Now anchors churn recency. Tests pin it for reproducibility; the
	// zero value means time.Now at Build.
	Now time.Time
}

// LoadRecentFailures reads a recent-failure hints file: a JSON object
// mapping path to a list of hint strings. A missing file is not an error.
func LoadRecentFailures(path string) (map[string][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading failure hints %s: %w", path, err)
	}
	hints := make(map[string][]string)
	if err := json.Unmarshal(raw, &hints); err != nil {
		return nil, fmt.Errorf("parsing failure hints %s: %w", path, err)
	}
	return hints, nil
}

type scored struct {
	path  string
	score float64
}

// Build derives the context for the given change-request text.
func (b *Builder) Build(ctx context.Context, request string) (*Context, error) {
	log := clog.FromContext(ctx)

	files, err := b.Source.Files()
	if err != nil {
		return nil, fmt.Errorf("listing snapshot files: %w", err)
	}

	now := b.Now
	if now.IsZero() {
		now = time.Now()
	}
	requestTerms := tokenize(request)

	candidates := make([]scored, 0, len(files))
	for _, path := range files {
		term := termOverlap(requestTerms, tokenize(path))
		owner := termOverlap(requestTerms, ownerTerms(b.Owners.Match(path)))
		// Churn refines relevance among files the request already touches;
		// it never establishes relevance on its own.
		score := 0.0
		if term > 0 || owner > 0 {
			score = termWeight*term +
				churnWeight*churnRecency(now, b.Source.LastModified(path)) +
				ownershipWeight*owner
		}
		candidates = append(candidates, scored{path: path, score: score})
	}

	// Highest score first; ties broken by path lexical order so identical
	// inputs always select identical entries.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].path < candidates[j].path
	})

	out := &Context{}
	perFileCap := b.Budget.MaxBytes
	if b.Budget.MaxFiles > 0 {
		perFileCap = b.Budget.MaxBytes / b.Budget.MaxFiles
	}
	for _, cand := range candidates {
		if cand.score < b.Budget.MinRelevance {
			break
		}
		if b.Budget.MaxFiles > 0 && len(out.Entries) >= b.Budget.MaxFiles {
			break
		}
		excerpt := ""
		if perFileCap > 0 && out.TotalBytes < b.Budget.MaxBytes {
			content, err := b.Source.Read(cand.path)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", cand.path, err)
			}
			remaining := b.Budget.MaxBytes - out.TotalBytes
			excerpt = string(content[:min(len(content), min(perFileCap, remaining))])
		}
		out.Entries = append(out.Entries, Entry{
			Path:         cand.path,
			Score:        cand.score,
			Owners:       b.Owners.Match(cand.path),
			FailureHints: b.RecentFailures[cand.path],
			Excerpt:      excerpt,
		})
		out.TotalBytes += len(excerpt)
	}

	if len(out.Entries) == 0 {
		out.NotFound = true
		log.With("request_terms", len(requestTerms)).
			Info("No file scored above the relevance threshold")
	}
	return out, nil
}

var termSplit = regexp.MustCompile(`[^a-z0-9]+`)

// tokenize lowercases and splits text on non-alphanumeric runs, dropping
// short tokens that carry no signal.
func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, tok := range termSplit.Split(strings.ToLower(text), -1) {
		if len(tok) >= 3 {
			tokens[tok] = true
		}
	}
	return tokens
}

// termOverlap is the fraction of candidate tokens present in the request.
func termOverlap(request, candidate map[string]bool) float64 {
	if len(candidate) == 0 {
		return 0
	}
	hits := 0
	for tok := range candidate {
		if request[tok] {
			hits++
		}
	}
	return float64(hits) / float64(len(candidate))
}

// churnRecency decays from 1 for files changed now toward 0 for untouched
// or ancient files, with a 30-day half-life style falloff.
func churnRecency(now, modified time.Time) float64 {
	if modified.IsZero() || modified.After(now) {
		return 0
	}
	ageDays := now.Sub(modified).Hours() / 24
	return 1 / (1 + ageDays/30)
}

func ownerTerms(owners []string) map[string]bool {
	if len(owners) == 0 {
		return nil
	}
	return tokenize(strings.Join(owners, " "))
}
