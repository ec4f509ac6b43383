/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package verifier

import (
	"time"

	"chainguard.dev/mergegate/policy"
)

// Session carries the mutable budget state of one verification run. All
// budget accounting goes through the session; no component reads ambient
// state. attemptsRemaining never increases and never goes negative.
type Session struct {
	cfg   policy.Config
	now   func() time.Time
	start time.Time

	attemptsRemaining int
	infraRetries      int

	attempts []Attempt
	states   []State
}

// NewSession starts a session clock against the given policy. now is the
// clock; tests pin it.
func NewSession(cfg policy.Config, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	return &Session{
		cfg:               cfg,
		now:               now,
		start:             now(),
		attemptsRemaining: cfg.MaxAttempts,
	}
}

// AttemptsRemaining returns the unconsumed repair budget.
func (s *Session) AttemptsRemaining() int {
	return s.attemptsRemaining
}

// Deadline returns the absolute session deadline.
func (s *Session) Deadline() time.Time {
	return s.start.Add(time.Duration(s.cfg.MaxWallClock))
}

// Expired reports whether the wall-clock budget has run out.
func (s *Session) Expired() bool {
	return !s.now().Before(s.Deadline())
}

// Elapsed returns the wall-clock time the session has consumed.
func (s *Session) Elapsed() time.Duration {
	return s.now().Sub(s.start)
}

// consumeAttempt spends one repair attempt. It must only be called when
// budget remains.
func (s *Session) consumeAttempt() {
	if s.attemptsRemaining > 0 {
		s.attemptsRemaining--
	}
}

// countInfraRetry accumulates the session-wide infra retry total.
func (s *Session) countInfraRetry(rounds int) {
	s.infraRetries += rounds
}

// trace appends a state to the session's state trace.
func (s *Session) trace(state State) {
	s.states = append(s.states, state)
}

// record appends one attempt to the history. The attempt is immutable from
// this point on.
func (s *Session) record(a Attempt) {
	s.attempts = append(s.attempts, a)
}

// finish seals the session into its terminal record.
func (s *Session) finish(terminal State, budgetCause BudgetCause, fatal fatalCause) *Record {
	s.trace(terminal)
	return &Record{
		Terminal:         terminal,
		BudgetCause:      budgetCause,
		FatalClass:       fatal.class,
		Attempts:         s.attempts,
		AttemptsConsumed: s.cfg.MaxAttempts - s.attemptsRemaining,
		InfraRetries:     s.infraRetries,
		States:           s.states,
		Elapsed:          s.Elapsed(),
	}
}
