/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package checks

import "sync"

// Registry resolves check names to runners. A default runner handles every
// check without a dedicated entry; with no default, unregistered checks
// surface as error results, which classify as infrastructure failures.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Runner
	defRun Runner
}

// NewRegistry creates a registry with the given default runner. The default
// may be nil, in which case only explicitly registered checks can run.
func NewRegistry(defaultRunner Runner) *Registry {
	return &Registry{
		byName: make(map[string]Runner),
		defRun: defaultRunner,
	}
}

// Register installs a dedicated runner for the named check.
func (r *Registry) Register(name string, runner Runner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[name] = runner
}

// Lookup resolves the runner for a check name. The second return is false
// when no runner (dedicated or default) is available.
func (r *Registry) Lookup(name string) (Runner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if runner, ok := r.byName[name]; ok {
		return runner, true
	}
	if r.defRun != nil {
		return r.defRun, true
	}
	return nil, false
}
