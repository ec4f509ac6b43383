/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package policy

import (
	"errors"
	"fmt"
	"os"
	"time"

	"chainguard.dev/mergegate/classify"
	"gopkg.in/yaml.v3"
)

// Check declares one required verification check.
type Check struct {
	// Name identifies the check. It is the key used for classification,
	// reporting, and registry lookup, and must be unique within a policy.
	Name string `yaml:"name" json:"name"`
	// Run is the command executed in the candidate sandbox. Empty when the
	// check is provided programmatically through the runner registry.
	Run string `yaml:"run,omitempty" json:"run,omitempty"`
	// Timeout overrides the policy-wide default check timeout.
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// ContextBudget bounds the repository context derived for a change request.
type ContextBudget struct {
	// MaxBytes caps the total size of file content summarized into context.
	MaxBytes int `yaml:"max_bytes" json:"max_bytes"`
	// MaxFiles caps the number of files selected into context.
	MaxFiles int `yaml:"max_files" json:"max_files"`
	// MinRelevance is the minimum score a file must reach to be selected.
	// When no file reaches it, the builder returns a minimal context with
	// an explicit not-found signal.
	MinRelevance float64 `yaml:"min_relevance" json:"min_relevance"`
}

// Config is the mergeability policy artifact. It enumerates the required
// check set, the non-waivable failure classes, and the session budgets.
// A Config is immutable for the lifetime of a session.
type Config struct {
	// RequiredChecks is the set of checks that must all pass for a change
	// to be merge-ready.
	RequiredChecks []Check `yaml:"required_checks" json:"required_checks"`
	// NonWaivable lists failure classes that short-circuit the session to
	// a fatal terminal state, bypassing repair. secret_leak is implicitly
	// non-waivable and need not be listed.
	NonWaivable []classify.Class `yaml:"non_waivable,omitempty" json:"non_waivable,omitempty"`

	// MaxAttempts is the repair budget: the number of code-attributable
	// failure cycles a session may consume.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
	// MaxWallClock is the session-wide wall-clock budget.
	MaxWallClock Duration `yaml:"max_wall_clock" json:"max_wall_clock"`
	// MaxInfraRetries bounds per-iteration retries of checks that failed
	// for infrastructure reasons. Infra retries never consume MaxAttempts.
	MaxInfraRetries int `yaml:"max_infra_retries" json:"max_infra_retries"`
	// CheckTimeout is the default per-check timeout.
	CheckTimeout Duration `yaml:"check_timeout,omitempty" json:"check_timeout,omitempty"`
	// PlannerRetryCap bounds internal planner retries on invalid plans
	// before the session aborts with plan_generation_failed.
	PlannerRetryCap int `yaml:"planner_retry_cap,omitempty" json:"planner_retry_cap,omitempty"`

	// InfraBackoff configures the exponential backoff applied between
	// infrastructure retries.
	InfraBackoff Backoff `yaml:"infra_backoff,omitempty" json:"infra_backoff,omitempty"`

	// Context bounds the repository context handed to the planner.
	Context ContextBudget `yaml:"context,omitempty" json:"context,omitempty"`
}

// Default returns a policy with conservative budgets. Callers still need to
// populate RequiredChecks.
func Default() Config {
	return Config{
		MaxAttempts:     3,
		MaxWallClock:    Duration(30 * time.Minute),
		MaxInfraRetries: 3,
		CheckTimeout:    Duration(10 * time.Minute),
		PlannerRetryCap: 2,
		InfraBackoff: Backoff{
			BaseBackoff: Duration(2 * time.Second),
			MaxBackoff:  Duration(2 * time.Minute),
			MaxJitter:   Duration(time.Second),
		},
		Context: ContextBudget{
			MaxBytes:     64 * 1024,
			MaxFiles:     20,
			MinRelevance: 0.05,
		},
	}
}

// Load reads and validates a policy artifact from a YAML file. Omitted
// budgets take the Default() values.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading policy %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes and validates a policy artifact from YAML bytes.
func Parse(raw []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing policy: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the policy for internal consistency.
func (c Config) Validate() error {
	if len(c.RequiredChecks) == 0 {
		return errors.New("policy must require at least one check")
	}
	seen := make(map[string]bool, len(c.RequiredChecks))
	for _, check := range c.RequiredChecks {
		if check.Name == "" {
			return errors.New("required check with empty name")
		}
		if seen[check.Name] {
			return fmt.Errorf("duplicate required check %q", check.Name)
		}
		seen[check.Name] = true
	}
	for _, class := range c.NonWaivable {
		if _, err := classify.ParseClass(string(class)); err != nil {
			return fmt.Errorf("non_waivable: %w", err)
		}
	}
	if c.MaxAttempts < 1 {
		return errors.New("max_attempts must be at least 1")
	}
	if c.MaxWallClock <= 0 {
		return errors.New("max_wall_clock must be positive")
	}
	if c.MaxInfraRetries < 0 {
		return errors.New("max_infra_retries cannot be negative")
	}
	if c.PlannerRetryCap < 0 {
		return errors.New("planner_retry_cap cannot be negative")
	}
	if err := c.InfraBackoff.Config().Validate(); err != nil {
		return fmt.Errorf("infra_backoff: %w", err)
	}
	if c.Context.MaxBytes < 0 || c.Context.MaxFiles < 0 {
		return errors.New("context budget cannot be negative")
	}
	return nil
}

// CheckNames returns the required check names in policy order.
func (c Config) CheckNames() []string {
	names := make([]string, 0, len(c.RequiredChecks))
	for _, check := range c.RequiredChecks {
		names = append(names, check.Name)
	}
	return names
}

// TimeoutFor resolves the effective timeout for the named check.
func (c Config) TimeoutFor(name string) time.Duration {
	for _, check := range c.RequiredChecks {
		if check.Name == name && check.Timeout > 0 {
			return time.Duration(check.Timeout)
		}
	}
	return time.Duration(c.CheckTimeout)
}

// IsNonWaivable reports whether failures of the given class bypass repair
// and force a fatal terminal state.
func (c Config) IsNonWaivable(class classify.Class) bool {
	if class.AlwaysFatal() {
		return true
	}
	for _, nw := range c.NonWaivable {
		if nw == class {
			return true
		}
	}
	return false
}
