/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"chainguard.dev/mergegate/capability"
	"chainguard.dev/mergegate/checks"
	"chainguard.dev/mergegate/classify"
	"chainguard.dev/mergegate/plan"
	"chainguard.dev/mergegate/policy"
	"chainguard.dev/mergegate/repocontext"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSource is an in-memory snapshot for loop tests.
type memSource struct {
	files map[string]string
}

func (m *memSource) Files() ([]string, error) {
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	return paths, nil
}

func (m *memSource) Read(path string) ([]byte, error) {
	content, ok := m.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return []byte(content), nil
}

func (m *memSource) LastModified(string) time.Time { return time.Time{} }

func (m *memSource) Export(dir string) error {
	for path, content := range m.files {
		target := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// scriptedCapability replays a fixed sequence of plan payloads, repeating
// the last one once the script runs out.
type scriptedCapability struct {
	plans []json.RawMessage
	calls atomic.Int64
}

func (s *scriptedCapability) GeneratePlan(context.Context, capability.PlanRequest) (json.RawMessage, error) {
	n := int(s.calls.Add(1)) - 1
	if n >= len(s.plans) {
		n = len(s.plans) - 1
	}
	return s.plans[n], nil
}

func (s *scriptedCapability) ClassifyFailure(context.Context, string, string) (string, error) {
	return "", errors.New("not scripted")
}

func planJSON(t *testing.T, p plan.ChangePlan) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return raw
}

func createPlan(t *testing.T, path, checkName string) json.RawMessage {
	t.Helper()
	return planJSON(t, plan.ChangePlan{
		Summary: "add " + path,
		Edits:   []plan.Edit{{Op: plan.OpCreate, Path: path, Content: "content\n"}},
		Checklist: []plan.ChecklistItem{
			{Requirement: "change is covered", Check: checkName},
		},
	})
}

func testPolicy(checkNames ...string) policy.Config {
	cfg := policy.Default()
	cfg.InfraBackoff = policy.Backoff{
		BaseBackoff: policy.Duration(time.Millisecond),
		MaxBackoff:  policy.Duration(5 * time.Millisecond),
		MaxJitter:   policy.Duration(time.Millisecond),
	}
	for _, name := range checkNames {
		cfg.RequiredChecks = append(cfg.RequiredChecks, policy.Check{Name: name})
	}
	return cfg
}

func newVerifier(t *testing.T, cfg policy.Config, src repocontext.Source, gen capability.Generative, reg *checks.Registry) *Verifier {
	t.Helper()
	return &Verifier{
		Policy:     cfg,
		Source:     src,
		Builder:    &repocontext.Builder{Source: src, Budget: cfg.Context},
		Planner:    &plan.Planner{Capability: gen, RetryCap: cfg.PlannerRetryCap, Seed: 42},
		Pool:       checks.NewPool(4, reg),
		Classifier: &classify.Classifier{},
		WorkDir:    t.TempDir(),
	}
}

func statusRunner(status checks.Status) checks.Runner {
	return checks.RunnerFunc(func(ctx context.Context, check policy.Check, dir string) checks.Result {
		return checks.Result{Name: check.Name, Status: status, Log: "scripted"}
	})
}

// failNTimesRunner fails the first n invocations, then passes.
func failNTimesRunner(n int64, status checks.Status) checks.Runner {
	var calls atomic.Int64
	return checks.RunnerFunc(func(ctx context.Context, check policy.Check, dir string) checks.Result {
		if calls.Add(1) <= n {
			return checks.Result{Name: check.Name, Status: status, Log: "scripted failure"}
		}
		return checks.Result{Name: check.Name, Status: checks.StatusPass}
	})
}

var request = plan.ChangeRequest{Issue: "add greeting output to main", Repo: "example/repo"}

func snapshot() *memSource {
	return &memSource{files: map[string]string{
		"main.go":   "package main\n",
		"README.md": "readme\n",
	}}
}

// Tests fail on the first iteration, pass on the second: the session
// repairs once and ends merge-ready.
func TestRunRepairThenPass(t *testing.T) {
	cfg := testPolicy("tests", "lint")
	cfg.MaxAttempts = 3

	reg := checks.NewRegistry(statusRunner(checks.StatusPass))
	reg.Register("tests", failNTimesRunner(1, checks.StatusFail))

	gen := &scriptedCapability{plans: []json.RawMessage{createPlan(t, "greeting.go", "tests")}}
	v := newVerifier(t, cfg, snapshot(), gen, reg)

	record, err := v.Run(context.Background(), request)
	require.NoError(t, err)

	assert.Equal(t, StatePass, record.Terminal)
	require.Len(t, record.Attempts, 2)
	assert.Equal(t, StateRepair, record.Attempts[0].Outcome)
	assert.Equal(t, StatePass, record.Attempts[1].Outcome)
	assert.Equal(t, 1, record.AttemptsConsumed)
	assert.Equal(t, 0, record.InfraRetries)

	require.Len(t, record.Attempts[0].Failures, 1)
	assert.Equal(t, classify.TestFailure, record.Attempts[0].Failures[0].Class)
	assert.Equal(t, 2, record.Attempts[1].PatchVersion)
}

// A secret leak forces FAIL_FATAL in the same iteration without consuming
// any repair budget.
func TestRunSecretLeakShortCircuit(t *testing.T) {
	cfg := testPolicy("secret-scan", "tests")
	cfg.MaxAttempts = 3

	reg := checks.NewRegistry(statusRunner(checks.StatusPass))
	reg.Register("secret-scan", statusRunner(checks.StatusFail))

	gen := &scriptedCapability{plans: []json.RawMessage{createPlan(t, "greeting.go", "tests")}}
	v := newVerifier(t, cfg, snapshot(), gen, reg)

	record, err := v.Run(context.Background(), request)
	require.NoError(t, err)

	assert.Equal(t, StateFailFatal, record.Terminal)
	assert.Equal(t, classify.SecretLeak, record.FatalClass)
	assert.Equal(t, 0, record.AttemptsConsumed)
	require.Len(t, record.Attempts, 1)
	assert.Equal(t, StateFailFatal, record.Attempts[0].Outcome)
}

// A check that keeps timing out exhausts the infra retry budget and ends
// the session on the infra-exhaustion path, with zero repair attempts
// consumed.
func TestRunInfraExhaustion(t *testing.T) {
	cfg := testPolicy("tests")
	cfg.MaxInfraRetries = 3

	reg := checks.NewRegistry(statusRunner(checks.StatusTimeout))

	gen := &scriptedCapability{plans: []json.RawMessage{createPlan(t, "greeting.go", "tests")}}
	v := newVerifier(t, cfg, snapshot(), gen, reg)

	record, err := v.Run(context.Background(), request)
	require.NoError(t, err)

	assert.Equal(t, StateFailBudget, record.Terminal)
	assert.Equal(t, CauseInfraExhausted, record.BudgetCause)
	assert.Equal(t, 3, record.InfraRetries)
	assert.Equal(t, 0, record.AttemptsConsumed)
	require.Len(t, record.Attempts, 1)
	require.Len(t, record.Attempts[0].Failures, 1)
	assert.Equal(t, classify.FlakyInfra, record.Attempts[0].Failures[0].Class)
}

// A transient infra failure that recovers within the retry budget never
// shows up as a session failure.
func TestRunInfraRecovers(t *testing.T) {
	cfg := testPolicy("tests")
	cfg.MaxInfraRetries = 3

	reg := checks.NewRegistry(failNTimesRunner(2, checks.StatusError))

	gen := &scriptedCapability{plans: []json.RawMessage{createPlan(t, "greeting.go", "tests")}}
	v := newVerifier(t, cfg, snapshot(), gen, reg)

	record, err := v.Run(context.Background(), request)
	require.NoError(t, err)

	assert.Equal(t, StatePass, record.Terminal)
	assert.Equal(t, 2, record.InfraRetries)
	assert.Equal(t, 0, record.AttemptsConsumed)
	require.Len(t, record.Attempts, 1)
	assert.Empty(t, record.Attempts[0].Failures)
}

// A planner that keeps producing plans referencing files absent from the
// context aborts with plan_generation_failed, independent of the repair
// budget.
func TestRunPlanGenerationFailed(t *testing.T) {
	cfg := testPolicy("tests")
	cfg.PlannerRetryCap = 2

	invalid := planJSON(t, plan.ChangePlan{
		Edits:     []plan.Edit{{Op: plan.OpModify, Path: "no/such/file.go", Content: "x"}},
		Checklist: []plan.ChecklistItem{{Requirement: "r", Check: "tests"}},
	})
	gen := &scriptedCapability{plans: []json.RawMessage{invalid}}
	v := newVerifier(t, cfg, snapshot(), gen, checks.NewRegistry(statusRunner(checks.StatusPass)))

	record, err := v.Run(context.Background(), request)
	require.NoError(t, err)

	assert.Equal(t, StateFailFatal, record.Terminal)
	assert.Equal(t, classify.PlanGenerationFailed, record.FatalClass)
	assert.Equal(t, 0, record.AttemptsConsumed)
	// The planner tried 1 + PlannerRetryCap times before giving up.
	assert.Equal(t, int64(3), gen.calls.Load())
}

// A plan that creates a file the snapshot already has is an apply
// conflict: code-attributable, consumes a repair attempt.
func TestRunApplyConflict(t *testing.T) {
	cfg := testPolicy("tests")
	cfg.MaxAttempts = 2

	conflicting := createPlan(t, "main.go", "tests")
	good := createPlan(t, "greeting.go", "tests")
	gen := &scriptedCapability{plans: []json.RawMessage{conflicting, good}}
	v := newVerifier(t, cfg, snapshot(), gen, checks.NewRegistry(statusRunner(checks.StatusPass)))

	record, err := v.Run(context.Background(), request)
	require.NoError(t, err)

	assert.Equal(t, StatePass, record.Terminal)
	assert.Equal(t, 1, record.AttemptsConsumed)
	require.Len(t, record.Attempts, 2)
	require.Len(t, record.Attempts[0].Failures, 1)
	assert.Equal(t, classify.ApplyConflict, record.Attempts[0].Failures[0].Class)
	assert.Empty(t, record.Attempts[0].Results)
}

// Persistent code failures drain the repair budget and end on the
// attempts-exhaustion path. The budget never goes negative.
func TestRunBudgetExhaustion(t *testing.T) {
	cfg := testPolicy("tests")
	cfg.MaxAttempts = 2

	reg := checks.NewRegistry(statusRunner(checks.StatusFail))
	gen := &scriptedCapability{plans: []json.RawMessage{createPlan(t, "greeting.go", "tests")}}
	v := newVerifier(t, cfg, snapshot(), gen, reg)

	record, err := v.Run(context.Background(), request)
	require.NoError(t, err)

	assert.Equal(t, StateFailBudget, record.Terminal)
	assert.Equal(t, CauseAttemptsExhausted, record.BudgetCause)
	assert.Equal(t, 2, record.AttemptsConsumed)
	require.Len(t, record.Attempts, 3)
	assert.Equal(t, StateRepair, record.Attempts[0].Outcome)
	assert.Equal(t, StateRepair, record.Attempts[1].Outcome)
	assert.Equal(t, StateFailBudget, record.Attempts[2].Outcome)
}

// A failing iteration that lands after the wall-clock budget is gone ends
// the session on the wall-clock-exhaustion path before the attempt budget
// is touched.
func TestRunWallClockExhaustion(t *testing.T) {
	cfg := testPolicy("tests")
	cfg.MaxAttempts = 3
	cfg.MaxWallClock = policy.Duration(time.Hour)

	reg := checks.NewRegistry(statusRunner(checks.StatusFail))
	gen := &scriptedCapability{plans: []json.RawMessage{createPlan(t, "greeting.go", "tests")}}
	v := newVerifier(t, cfg, snapshot(), gen, reg)

	// The clock hands out the real start once, then jumps past the
	// deadline, so the first iteration's failure is classified with the
	// wall-clock budget already spent.
	start := time.Now()
	var reads atomic.Int64
	v.Now = func() time.Time {
		if reads.Add(1) == 1 {
			return start
		}
		return start.Add(2 * time.Hour)
	}

	record, err := v.Run(context.Background(), request)
	require.NoError(t, err)

	assert.Equal(t, StateFailBudget, record.Terminal)
	assert.Equal(t, CauseWallClockExhausted, record.BudgetCause)
	assert.Equal(t, 0, record.AttemptsConsumed)
	require.Len(t, record.Attempts, 1)
	assert.Equal(t, StateFailBudget, record.Attempts[0].Outcome)
	require.Len(t, record.Attempts[0].Failures, 1)
	assert.Equal(t, classify.TestFailure, record.Attempts[0].Failures[0].Class)
}

// blockingCapability holds the planning call open until the session
// deadline cancels it.
type blockingCapability struct{}

func (blockingCapability) GeneratePlan(ctx context.Context, _ capability.PlanRequest) (json.RawMessage, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingCapability) ClassifyFailure(context.Context, string, string) (string, error) {
	return "", errors.New("not scripted")
}

// A wall clock that runs out mid-planning ends the session on the
// wall-clock-exhaustion path without recording an attempt.
func TestRunWallClockExpiresDuringPlanning(t *testing.T) {
	cfg := testPolicy("tests")
	cfg.MaxWallClock = policy.Duration(50 * time.Millisecond)

	v := newVerifier(t, cfg, snapshot(), blockingCapability{}, checks.NewRegistry(statusRunner(checks.StatusPass)))

	record, err := v.Run(context.Background(), request)
	require.NoError(t, err)

	assert.Equal(t, StateFailBudget, record.Terminal)
	assert.Equal(t, CauseWallClockExhausted, record.BudgetCause)
	assert.Equal(t, 0, record.AttemptsConsumed)
	assert.Empty(t, record.Attempts)
	assert.Equal(t, []State{StatePlan, StateFailBudget}, record.States)
}

// Identical inputs and seed produce an identical state trace.
func TestRunDeterministicStateTrace(t *testing.T) {
	run := func() *Record {
		cfg := testPolicy("tests", "lint")
		reg := checks.NewRegistry(statusRunner(checks.StatusPass))
		reg.Register("tests", failNTimesRunner(1, checks.StatusFail))
		gen := &scriptedCapability{plans: []json.RawMessage{createPlan(t, "greeting.go", "tests")}}
		v := newVerifier(t, cfg, snapshot(), gen, reg)

		record, err := v.Run(context.Background(), request)
		require.NoError(t, err)
		return record
	}

	first, second := run(), run()
	if diff := cmp.Diff(first.States, second.States); diff != "" {
		t.Errorf("state trace differs between runs (-first +second):\n%s", diff)
	}
	assert.Equal(t, []State{
		StatePlan, StateApply, StateCheck, StateClassify, StateRepair,
		StatePlan, StateApply, StateCheck, StateClassify,
		StatePass,
	}, first.States)
}

func TestSessionBudgets(t *testing.T) {
	cfg := testPolicy("tests")
	cfg.MaxAttempts = 2
	cfg.MaxWallClock = policy.Duration(time.Hour)

	clock := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	s := NewSession(cfg, func() time.Time { return clock })

	assert.Equal(t, 2, s.AttemptsRemaining())
	assert.False(t, s.Expired())

	s.consumeAttempt()
	s.consumeAttempt()
	assert.Equal(t, 0, s.AttemptsRemaining())
	s.consumeAttempt()
	assert.Equal(t, 0, s.AttemptsRemaining(), "budget never goes negative")

	clock = clock.Add(2 * time.Hour)
	assert.True(t, s.Expired())
	assert.Equal(t, 2*time.Hour, s.Elapsed())
}

func TestRecordTaxonomyCounts(t *testing.T) {
	r := &Record{Attempts: []Attempt{
		{Failures: []classify.FailureRecord{
			{CheckName: "tests", Class: classify.TestFailure},
			{CheckName: "lint", Class: classify.LintFailure},
		}},
		{Failures: []classify.FailureRecord{
			{CheckName: "tests", Class: classify.TestFailure},
		}},
	}}

	assert.Equal(t, map[classify.Class]int{
		classify.TestFailure: 2,
		classify.LintFailure: 1,
	}, r.TaxonomyCounts())
	assert.Len(t, r.Failures(), 3)
}
