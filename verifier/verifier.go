/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package verifier

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"chainguard.dev/mergegate/checks"
	"chainguard.dev/mergegate/classify"
	"chainguard.dev/mergegate/metrics"
	"chainguard.dev/mergegate/patch"
	"chainguard.dev/mergegate/plan"
	"chainguard.dev/mergegate/policy"
	"chainguard.dev/mergegate/repocontext"
	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const tracerName = "chainguard.dev/mergegate/verifier"

// fatalCause carries the failure class that forced FAIL_FATAL. The zero
// value means the terminal was not fatal.
type fatalCause struct {
	class classify.Class
}

// Verifier coordinates the planner, the check pool, and the classifier
// across bounded repair iterations. One Verifier runs one session at a
// time; distinct sessions use distinct Verifier values sharing the Source
// and Pool.
type Verifier struct {
	Policy     policy.Config
	Source     repocontext.Source
	Builder    *repocontext.Builder
	Planner    *plan.Planner
	Pool       *checks.Pool
	Classifier *classify.Classifier
	// WorkDir receives one sandbox directory per iteration. Empty means
	// the system temp directory. Sandboxes persist until the process
	// exits so that check log references stay resolvable.
	WorkDir string
	// Now is the session clock. Tests pin it.
	Now func() time.Time
}

// Run drives one session to a terminal state and returns its record.
//
// Run returns an error only for internal faults (snapshot or capability
// transport breakage); every verification outcome, including fatal ones,
// is expressed through the Record.
func (v *Verifier) Run(ctx context.Context, req plan.ChangeRequest) (*Record, error) {
	cfg := v.Policy
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	tr := otel.Tracer(tracerName)
	ctx, span := tr.Start(ctx, "verifier.session", oteltrace.WithAttributes(
		attribute.String("repo", req.Repo),
		attribute.Int("max_attempts", cfg.MaxAttempts),
	))
	defer span.End()

	session := NewSession(cfg, v.Now)
	ctx, cancel := context.WithDeadline(ctx, session.Deadline())
	defer cancel()

	log := clog.FromContext(ctx).With("repo", req.Repo)

	// The context is built once; it is immutable for the session.
	rc, err := v.Builder.Build(ctx, req.Issue)
	if err != nil {
		return nil, fmt.Errorf("building repo context: %w", err)
	}

	var prior []classify.FailureRecord
	for iteration := 1; ; iteration++ {
		version := iteration

		session.trace(StatePlan)
		p, err := v.Planner.Plan(ctx, req, rc, prior, version, cfg.CheckNames())
		if err != nil {
			if ctx.Err() != nil {
				log.Warn("Session deadline expired during planning")
				return v.seal(session, StateFailBudget, CauseWallClockExhausted, fatalCause{}), nil
			}
			if errors.Is(err, plan.ErrGenerationFailed) {
				failure := classify.FailureRecord{
					CheckName: "planner",
					Class:     classify.PlanGenerationFailed,
					Evidence:  err.Error(),
				}
				v.recordAttempt(session, Attempt{
					Iteration:    iteration,
					PatchVersion: version,
					Failures:     []classify.FailureRecord{failure},
					Outcome:      StateFailFatal,
				})
				return v.seal(session, StateFailFatal, "", fatalCause{classify.PlanGenerationFailed}), nil
			}
			return nil, fmt.Errorf("planning iteration %d: %w", iteration, err)
		}

		session.trace(StateApply)
		pt, err := patch.Materialize(v.Source, p, v.WorkDir)
		if err != nil {
			if !errors.Is(err, patch.ErrApplyConflict) {
				return nil, fmt.Errorf("materializing iteration %d: %w", iteration, err)
			}
			failures := []classify.FailureRecord{{
				CheckName: "apply",
				Class:     classify.ApplyConflict,
				Evidence:  err.Error(),
			}}
			next, budgetCause, fatal := v.decide(session, failures, false)
			v.recordAttempt(session, Attempt{
				Iteration:    iteration,
				PatchVersion: version,
				Failures:     failures,
				Outcome:      next,
			})
			if next.Terminal() {
				return v.seal(session, next, budgetCause, fatal), nil
			}
			session.trace(StateRepair)
			session.consumeAttempt()
			prior = failures
			continue
		}

		session.trace(StateCheck)
		checkCtx, checkSpan := tr.Start(ctx, "verifier.check_fanout", oteltrace.WithAttributes(
			attribute.Int("iteration", iteration),
			attribute.Int("checks", len(cfg.RequiredChecks)),
		))
		results, failures, retries, infraExhausted := v.runChecks(checkCtx, session, pt.Dir)
		checkSpan.End()
		session.trace(StateClassify)
		session.countInfraRetry(retries)
		metrics.RecordInfraRetries(retries)

		next, budgetCause, fatal := v.decide(session, failures, infraExhausted)
		v.recordAttempt(session, Attempt{
			Iteration:    iteration,
			PatchVersion: version,
			Files:        pt.Files,
			Results:      results,
			Failures:     failures,
			InfraRetries: retries,
			Outcome:      next,
		})
		log.With("iteration", iteration).
			With("failures", len(failures)).
			With("infra_retries", retries).
			With("outcome", string(next)).
			Info("Iteration finished")

		if next.Terminal() {
			return v.seal(session, next, budgetCause, fatal), nil
		}
		session.trace(StateRepair)
		session.consumeAttempt()
		prior = failures
	}
}

// runChecks executes the required checks against the sandbox, retrying
// only checks that failed for infrastructure reasons, with exponential
// backoff, up to the policy's infra retry budget. Infra retries never
// touch the repair budget. It returns the final merged results and
// failure records, both sorted by check name.
func (v *Verifier) runChecks(ctx context.Context, session *Session, dir string) (results []checks.Result, failures []classify.FailureRecord, retries int, infraExhausted bool) {
	cfg := session.cfg
	bcfg := cfg.InfraBackoff.Config()
	log := clog.FromContext(ctx)

	final := make(map[string]checks.Result, len(cfg.RequiredChecks))
	toRun := cfg.RequiredChecks
	for {
		for _, r := range v.Pool.RunAll(ctx, cfg, toRun, dir) {
			final[r.Name] = r
			metrics.RecordCheck(r.Name, string(r.Status), r.Duration)
		}

		results = results[:0]
		for _, name := range cfg.CheckNames() {
			if r, ok := final[name]; ok {
				results = append(results, r)
			}
		}
		sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

		failures = failures[:0]
		var infraChecks []policy.Check
		fatalSeen := false
		for _, r := range results {
			if r.Passed() {
				continue
			}
			record := v.Classifier.Record(ctx, r.Name, outcomeFor(r.Status), r.Log)
			failures = append(failures, record)
			switch {
			case cfg.IsNonWaivable(record.Class):
				fatalSeen = true
			case record.Class.Infra():
				infraChecks = append(infraChecks, checkByName(cfg, r.Name))
			}
		}

		// A non-waivable failure short-circuits; retrying infra checks
		// cannot change the outcome.
		if fatalSeen || len(infraChecks) == 0 {
			return results, failures, retries, false
		}
		if retries >= cfg.MaxInfraRetries || ctx.Err() != nil {
			return results, failures, retries, true
		}

		delay := bcfg.Delay(retries)
		log.With("checks", len(infraChecks)).
			With("retry", retries+1).
			With("delay", delay).
			Warn("Retrying checks after infrastructure failure")
		if !sleepContext(ctx, delay) {
			return results, failures, retries, true
		}
		retries++
		toRun = infraChecks
	}
}

// decide applies the transition rules for one classified iteration.
// Precedence: non-waivable failures are fatal regardless of budget, then
// infra exhaustion, then pass, then the wall-clock and attempt budgets.
func (v *Verifier) decide(session *Session, failures []classify.FailureRecord, infraExhausted bool) (State, BudgetCause, fatalCause) {
	for _, f := range failures {
		if session.cfg.IsNonWaivable(f.Class) {
			return StateFailFatal, "", fatalCause{f.Class}
		}
	}
	if infraExhausted {
		return StateFailBudget, CauseInfraExhausted, fatalCause{}
	}
	if len(failures) == 0 {
		return StatePass, "", fatalCause{}
	}
	if session.Expired() {
		return StateFailBudget, CauseWallClockExhausted, fatalCause{}
	}
	if session.AttemptsRemaining() == 0 {
		return StateFailBudget, CauseAttemptsExhausted, fatalCause{}
	}
	return StateRepair, "", fatalCause{}
}

func (v *Verifier) recordAttempt(session *Session, a Attempt) {
	session.record(a)
	metrics.RecordAttempt(string(a.Outcome))
	for _, f := range a.Failures {
		metrics.RecordFailure(string(f.Class))
	}
}

func (v *Verifier) seal(session *Session, terminal State, budgetCause BudgetCause, fatal fatalCause) *Record {
	record := session.finish(terminal, budgetCause, fatal)
	metrics.RecordSession(string(terminal))
	return record
}

// outcomeFor maps a check status to the classifier's view of it.
func outcomeFor(s checks.Status) classify.Outcome {
	switch s {
	case checks.StatusError:
		return classify.OutcomeError
	case checks.StatusTimeout:
		return classify.OutcomeTimeout
	default:
		return classify.OutcomeFail
	}
}

func checkByName(cfg policy.Config, name string) policy.Check {
	for _, c := range cfg.RequiredChecks {
		if c.Name == name {
			return c
		}
	}
	return policy.Check{Name: name}
}

// sleepContext waits for d or until the context is cancelled, reporting
// whether the full delay elapsed.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
