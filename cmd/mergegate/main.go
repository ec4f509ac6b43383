/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package main runs one verification session against a local repository
// clone and reports the merge decision.
//
// Exit codes distinguish the three outcome classes: 0 for MERGE_READY,
// 1 for NOT_MERGEABLE, 2 for internal or infrastructure errors.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chainguard.dev/mergegate"
	"chainguard.dev/mergegate/capability"
	"chainguard.dev/mergegate/capability/claudecap"
	"chainguard.dev/mergegate/capability/openaicap"
	"chainguard.dev/mergegate/checks"
	"chainguard.dev/mergegate/classify"
	"chainguard.dev/mergegate/gate"
	"chainguard.dev/mergegate/plan"
	"chainguard.dev/mergegate/policy"
	"chainguard.dev/mergegate/repocontext"
	"chainguard.dev/mergegate/vcs"
	"chainguard.dev/mergegate/verifier"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/chainguard-dev/clog"
	"github.com/openai/openai-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sethvargo/go-envconfig"
)

const (
	exitMergeReady   = 0
	exitNotMergeable = 1
	exitInternal     = 2
)

type config struct {
	RepoPath   string `env:"REPO_PATH,default=."`
	PolicyPath string `env:"POLICY_PATH,default=policy.yaml"`
	Issue      string `env:"ISSUE"`
	IssueFile  string `env:"ISSUE_FILE"`
	Repo       string `env:"REPO,default=local/repo"`

	// Provider selects the generative capability: claude, openai, or
	// replay (requires TRANSCRIPT_PATH).
	Provider         string `env:"PROVIDER,default=claude"`
	Model            string `env:"MODEL"`
	Seed             int64  `env:"SEED,default=1"`
	TranscriptPath   string `env:"TRANSCRIPT_PATH"`
	RecordTranscript bool   `env:"RECORD_TRANSCRIPT,default=false"`

	FailureHintsPath string `env:"FAILURE_HINTS_PATH"`
	CheckLogDir      string `env:"CHECK_LOG_DIR"`
	CheckPoolSize    int64  `env:"CHECK_POOL_SIZE,default=4"`

	OutputJSON  bool `env:"OUTPUT_JSON,default=false"`
	MetricsPort int  `env:"METRICS_PORT,default=0"`

	// PR creation on MERGE_READY. The head branch must already be pushed.
	CreatePR    bool   `env:"CREATE_PR,default=false"`
	GitHubToken string `env:"GITHUB_TOKEN"`
	BaseBranch  string `env:"BASE_BRANCH,default=main"`
	HeadBranch  string `env:"HEAD_BRANCH"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context) int {
	log := clog.FromContext(ctx)

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Errorf("processing config: %v", err)
		return exitInternal
	}

	issue, err := loadIssue(cfg)
	if err != nil {
		log.Errorf("loading change request: %v", err)
		return exitInternal
	}

	pol, err := policy.Load(cfg.PolicyPath)
	if err != nil {
		log.Errorf("loading policy: %v", err)
		return exitInternal
	}

	snapshot, err := repocontext.OpenGitSnapshot(cfg.RepoPath)
	if err != nil {
		log.Errorf("opening repository snapshot: %v", err)
		return exitInternal
	}

	builder, err := buildContextBuilder(cfg, pol, snapshot)
	if err != nil {
		log.Errorf("configuring context builder: %v", err)
		return exitInternal
	}

	gen, recorder, err := buildCapability(cfg, pol)
	if err != nil {
		log.Errorf("configuring capability: %v", err)
		return exitInternal
	}

	if cfg.MetricsPort > 0 {
		go serveMetrics(ctx, cfg.MetricsPort)
	}

	registry := checks.NewRegistry(&checks.CommandRunner{LogDir: cfg.CheckLogDir})
	v := &verifier.Verifier{
		Policy:  pol,
		Source:  snapshot,
		Builder: builder,
		Planner: &plan.Planner{
			Capability: gen,
			RetryCap:   pol.PlannerRetryCap,
			Seed:       cfg.Seed,
		},
		Pool:       checks.NewPool(cfg.CheckPoolSize, registry),
		Classifier: &classify.Classifier{Fallback: gen.ClassifyFailure},
	}

	req := plan.ChangeRequest{Issue: issue, Repo: cfg.Repo, PolicyRef: cfg.PolicyPath}
	report, err := mergegate.Run(ctx, v, req)
	if err != nil {
		log.Errorf("running session: %v", err)
		return exitInternal
	}

	if recorder != nil && cfg.RecordTranscript {
		if err := recorder.Transcript().Save(cfg.TranscriptPath); err != nil {
			log.Errorf("saving transcript: %v", err)
			return exitInternal
		}
	}

	if err := emit(cfg, report); err != nil {
		log.Errorf("writing report: %v", err)
		return exitInternal
	}

	if report.Decision.Outcome != gate.MergeReady {
		return exitNotMergeable
	}
	if cfg.CreatePR {
		if err := openPR(ctx, cfg, issue, report); err != nil {
			log.Errorf("creating pull request: %v", err)
			return exitInternal
		}
	}
	return exitMergeReady
}

func loadIssue(cfg config) (string, error) {
	if cfg.Issue != "" {
		return cfg.Issue, nil
	}
	if cfg.IssueFile == "" {
		return "", fmt.Errorf("one of ISSUE or ISSUE_FILE must be set")
	}
	raw, err := os.ReadFile(cfg.IssueFile)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", cfg.IssueFile, err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func buildContextBuilder(cfg config, pol policy.Config, snapshot *repocontext.GitSnapshot) (*repocontext.Builder, error) {
	builder := &repocontext.Builder{
		Source: snapshot,
		Budget: pol.Context,
	}

	if raw, err := snapshot.Read("CODEOWNERS"); err == nil {
		owners, err := repocontext.ParseOwners(strings.NewReader(string(raw)))
		if err != nil {
			return nil, fmt.Errorf("parsing CODEOWNERS: %w", err)
		}
		builder.Owners = owners
	}

	if cfg.FailureHintsPath != "" {
		hints, err := repocontext.LoadRecentFailures(cfg.FailureHintsPath)
		if err != nil {
			return nil, err
		}
		builder.RecentFailures = hints
	}
	return builder, nil
}

// buildCapability resolves the configured generative provider. The recorder
// is non-nil when the live capability is wrapped for transcript recording.
func buildCapability(cfg config, pol policy.Config) (capability.Generative, *capability.Recorder, error) {
	var live capability.Generative
	switch cfg.Provider {
	case "replay":
		if cfg.TranscriptPath == "" {
			return nil, nil, fmt.Errorf("provider replay requires TRANSCRIPT_PATH")
		}
		transcript, err := capability.LoadTranscript(cfg.TranscriptPath)
		if err != nil {
			return nil, nil, err
		}
		return capability.NewReplayer(transcript), nil, nil
	case "claude":
		var opts []claudecap.Option
		if cfg.Model != "" {
			opts = append(opts, claudecap.WithModel(cfg.Model))
		}
		opts = append(opts, claudecap.WithRetryConfig(pol.InfraBackoff.Config()))
		c, err := claudecap.New(anthropic.NewClient(), opts...)
		if err != nil {
			return nil, nil, err
		}
		live = c
	case "openai":
		var opts []openaicap.Option
		if cfg.Model != "" {
			opts = append(opts, openaicap.WithModel(cfg.Model))
		}
		opts = append(opts, openaicap.WithRetryConfig(pol.InfraBackoff.Config()))
		c, err := openaicap.New(openai.NewClient(), opts...)
		if err != nil {
			return nil, nil, err
		}
		live = c
	default:
		return nil, nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}

	if cfg.RecordTranscript {
		if cfg.TranscriptPath == "" {
			return nil, nil, fmt.Errorf("RECORD_TRANSCRIPT requires TRANSCRIPT_PATH")
		}
		recorder := capability.NewRecorder(live)
		return recorder, recorder, nil
	}
	return live, nil, nil
}

func emit(cfg config, report *mergegate.Report) error {
	if cfg.OutputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return gate.Render(os.Stdout, report.Decision)
}

func openPR(ctx context.Context, cfg config, issue string, report *mergegate.Report) error {
	if cfg.GitHubToken == "" || cfg.HeadBranch == "" {
		return fmt.Errorf("CREATE_PR requires GITHUB_TOKEN and HEAD_BRANCH")
	}
	owner, repo, ok := strings.Cut(cfg.Repo, "/")
	if !ok {
		return fmt.Errorf("REPO must be owner/repo, got %q", cfg.Repo)
	}

	creator, err := vcs.NewGitHub(ctx, cfg.GitHubToken)
	if err != nil {
		return err
	}

	last := report.Attempts[len(report.Attempts)-1]
	summary := issue
	if i := strings.IndexByte(summary, '\n'); i > 0 {
		summary = summary[:i]
	}
	prURL, err := creator.CreatePR(ctx, vcs.Proposal{
		Owner:    owner,
		Repo:     repo,
		Head:     cfg.HeadBranch,
		Base:     cfg.BaseBranch,
		Issue:    issue,
		Summary:  summary,
		Files:    last.Files,
		Attempts: len(report.Attempts),
	})
	if err != nil {
		return err
	}
	clog.FromContext(ctx).With("pr", prURL).Info("Opened pull request")
	return nil
}

func serveMetrics(ctx context.Context, port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		clog.FromContext(ctx).Errorf("metrics server: %v", err)
	}
}
