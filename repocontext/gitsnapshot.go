/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package repocontext

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// maxChurnCommits bounds how far back the churn index looks. Older history
// has negligible effect on recency scoring.
const maxChurnCommits = 200

// GitSnapshot is a Source backed by the HEAD commit of a local git clone.
// Content is read from the commit tree, not the working directory, so a
// dirty worktree cannot leak into the context.
type GitSnapshot struct {
	repo *git.Repository
	tree *object.Tree

	churnOnce sync.Once
	churn     map[string]time.Time
	churnErr  error
}

// OpenGitSnapshot opens the repository at dir and pins the snapshot to its
// current HEAD commit.
func OpenGitSnapshot(dir string) (*GitSnapshot, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return nil, fmt.Errorf("opening repository %s: %w", dir, err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("loading HEAD commit: %w", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("loading HEAD tree: %w", err)
	}
	return &GitSnapshot{repo: repo, tree: tree}, nil
}

// Files implements Source.
func (s *GitSnapshot) Files() ([]string, error) {
	var paths []string
	if err := s.tree.Files().ForEach(func(f *object.File) error {
		paths = append(paths, f.Name)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("walking tree: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Read implements Source.
func (s *GitSnapshot) Read(path string) ([]byte, error) {
	f, err := s.tree.File(path)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return nil, fmt.Errorf("%s: %w", path, os.ErrNotExist)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	content, err := f.Contents()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return []byte(content), nil
}

// LastModified implements Source. The churn index is built lazily from the
// commit log, bounded to the most recent commits.
func (s *GitSnapshot) LastModified(path string) time.Time {
	s.churnOnce.Do(s.buildChurn)
	if s.churnErr != nil {
		return time.Time{}
	}
	return s.churn[path]
}

func (s *GitSnapshot) buildChurn() {
	s.churn = make(map[string]time.Time)
	iter, err := s.repo.Log(&git.LogOptions{})
	if err != nil {
		s.churnErr = err
		return
	}
	defer iter.Close()

	seen := 0
	s.churnErr = iter.ForEach(func(c *object.Commit) error {
		if seen >= maxChurnCommits {
			return io.EOF
		}
		seen++
		stats, err := c.Stats()
		if err != nil {
			// Merge commits and truncated histories can fail stats;
			// skip rather than abort the whole index.
			return nil
		}
		for _, st := range stats {
			// Newest-first iteration: first sighting is the most
			// recent change.
			if _, ok := s.churn[st.Name]; !ok {
				s.churn[st.Name] = c.Committer.When
			}
		}
		return nil
	})
	if errors.Is(s.churnErr, io.EOF) {
		s.churnErr = nil
	}
}

// Export implements Source by writing the snapshot tree to dir.
func (s *GitSnapshot) Export(dir string) error {
	return s.tree.Files().ForEach(func(f *object.File) error {
		dst := filepath.Join(dir, filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
		}
		content, err := f.Contents()
		if err != nil {
			return fmt.Errorf("reading %s: %w", f.Name, err)
		}
		mode := os.FileMode(0o644)
		if f.Mode == filemode.Executable {
			mode = 0o755
		}
		if err := os.WriteFile(dst, []byte(content), mode); err != nil {
			return fmt.Errorf("writing %s: %w", dst, err)
		}
		return nil
	})
}
