/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package repocontext

import (
	"bufio"
	"io"
	"path"
	"strings"
)

// ownerRule is one CODEOWNERS pattern with its owners, in file order.
type ownerRule struct {
	pattern string
	owners  []string
}

// Owners maps repository paths to their owning teams or users, in the
// CODEOWNERS manner: later rules take precedence over earlier ones.
type Owners struct {
	rules []ownerRule
}

// ParseOwners reads CODEOWNERS-format content: one pattern per line followed
// by whitespace-separated owner handles, with #-comments and blank lines
// ignored.
func ParseOwners(r io.Reader) (*Owners, error) {
	o := &Owners{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		o.rules = append(o.rules, ownerRule{pattern: fields[0], owners: fields[1:]})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return o, nil
}

// Match returns the owners for the given path, or nil when no rule matches.
func (o *Owners) Match(p string) []string {
	if o == nil {
		return nil
	}
	var matched []string
	for _, rule := range o.rules {
		if matchOwnerPattern(rule.pattern, p) {
			matched = rule.owners
		}
	}
	return matched
}

// matchOwnerPattern implements the subset of CODEOWNERS matching the builder
// needs: directory prefixes ("docs/"), extension globs ("*.go"), anchored
// paths ("/cmd/..."), and exact paths.
func matchOwnerPattern(pattern, p string) bool {
	pattern = strings.TrimPrefix(pattern, "/")
	if strings.HasSuffix(pattern, "/") {
		return strings.HasPrefix(p, pattern)
	}
	if strings.HasPrefix(pattern, "*.") {
		ok, _ := path.Match(pattern, path.Base(p))
		return ok
	}
	if pattern == p {
		return true
	}
	return strings.HasPrefix(p, pattern+"/")
}
