/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package vcs

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"
	"golang.org/x/oauth2"
)

const defaultTitleTemplate = `{{ .Summary }}`

const defaultBodyTemplate = `## Change

{{ .Issue }}

## Verification

This change passed every required check after {{ .Attempts }} verification
{{- if eq .Attempts 1 }} attempt{{ else }} attempts{{ end }}.

Files touched:
{{ range .Files }}- ` + "`{{ . }}`" + `
{{ end }}`

// GitHub opens pull requests through the GitHub API.
type GitHub struct {
	client    *github.Client
	titleTmpl *template.Template
	bodyTmpl  *template.Template
}

// Option configures a GitHub creator.
type Option func(*GitHub) error

// WithTitleTemplate overrides the PR title template.
func WithTitleTemplate(text string) Option {
	return func(g *GitHub) error {
		tmpl, err := template.New("title").Parse(text)
		if err != nil {
			return fmt.Errorf("parsing title template: %w", err)
		}
		g.titleTmpl = tmpl
		return nil
	}
}

// WithBodyTemplate overrides the PR body template.
func WithBodyTemplate(text string) Option {
	return func(g *GitHub) error {
		tmpl, err := template.New("body").Parse(text)
		if err != nil {
			return fmt.Errorf("parsing body template: %w", err)
		}
		g.bodyTmpl = tmpl
		return nil
	}
}

// NewGitHub creates a PR creator authenticated with the given token.
func NewGitHub(ctx context.Context, token string, opts ...Option) (*GitHub, error) {
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	))
	return newGitHub(github.NewClient(httpClient), opts...)
}

func newGitHub(client *github.Client, opts ...Option) (*GitHub, error) {
	g := &GitHub{
		client:    client,
		titleTmpl: template.Must(template.New("title").Parse(defaultTitleTemplate)),
		bodyTmpl:  template.Must(template.New("body").Parse(defaultBodyTemplate)),
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// CreatePR implements PRCreator.
func (g *GitHub) CreatePR(ctx context.Context, p Proposal) (string, error) {
	log := clog.FromContext(ctx).With("owner", p.Owner).With("repo", p.Repo)

	title, err := g.render(g.titleTmpl, p)
	if err != nil {
		return "", fmt.Errorf("rendering PR title: %w", err)
	}
	if title == "" {
		title = "Verified change"
	}
	body, err := g.render(g.bodyTmpl, p)
	if err != nil {
		return "", fmt.Errorf("rendering PR body: %w", err)
	}

	pr, _, err := g.client.PullRequests.Create(ctx, p.Owner, p.Repo, &github.NewPullRequest{
		Title: github.Ptr(title),
		Body:  github.Ptr(body),
		Head:  github.Ptr(p.Head),
		Base:  github.Ptr(p.Base),
		Draft: github.Ptr(p.Draft),
	})
	if err != nil {
		return "", fmt.Errorf("creating pull request: %w", err)
	}

	if len(p.Labels) > 0 {
		if _, _, err := g.client.Issues.AddLabelsToIssue(ctx, p.Owner, p.Repo, pr.GetNumber(), p.Labels); err != nil {
			return "", fmt.Errorf("adding labels: %w", err)
		}
	}

	log.Infof("Created PR #%d: %s", pr.GetNumber(), pr.GetHTMLURL())
	return pr.GetHTMLURL(), nil
}

func (g *GitHub) render(tmpl *template.Template, p Proposal) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, p); err != nil {
		return "", err
	}
	return strings.TrimSpace(sb.String()), nil
}
