/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package policy

import (
	"fmt"
	"time"

	"chainguard.dev/mergegate/backoff"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30m"
// as well as integer nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err == nil {
		parsed, perr := time.ParseDuration(raw)
		if perr != nil {
			return fmt.Errorf("parsing duration %q: %w", raw, perr)
		}
		*d = Duration(parsed)
		return nil
	}
	var ns int64
	if err := node.Decode(&ns); err != nil {
		return fmt.Errorf("duration must be a string or integer nanoseconds: %w", err)
	}
	*d = Duration(ns)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// MarshalJSON renders the duration in time.Duration string form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", time.Duration(d).String())), nil
}

// UnmarshalJSON accepts a time.Duration string.
func (d *Duration) UnmarshalJSON(raw []byte) error {
	s := string(raw)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("duration must be a quoted string, got %s", s)
	}
	parsed, err := time.ParseDuration(s[1 : len(s)-1])
	if err != nil {
		return fmt.Errorf("parsing duration %s: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Backoff is the YAML-facing shape of a backoff.Config, using human-readable
// durations. The retry bound lives on the enclosing policy as
// MaxInfraRetries rather than here.
type Backoff struct {
	BaseBackoff Duration `yaml:"base_backoff,omitempty" json:"base_backoff,omitempty"`
	MaxBackoff  Duration `yaml:"max_backoff,omitempty" json:"max_backoff,omitempty"`
	MaxJitter   Duration `yaml:"max_jitter,omitempty" json:"max_jitter,omitempty"`
}

// Config converts to the runtime backoff configuration. The retry bound is
// supplied by the caller since the policy tracks it separately.
func (b Backoff) Config() backoff.Config {
	return backoff.Config{
		BaseBackoff: time.Duration(b.BaseBackoff),
		MaxBackoff:  time.Duration(b.MaxBackoff),
		MaxJitter:   time.Duration(b.MaxJitter),
	}
}
