/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package claudecap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chainguard.dev/mergegate/backoff"
	"chainguard.dev/mergegate/capability"
	"chainguard.dev/mergegate/capability/result"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/chainguard-dev/clog"
)

// Capability is a capability.Generative backed by the Anthropic API.
type Capability struct {
	client      anthropic.Client
	modelName   string
	maxTokens   int64
	retryConfig backoff.Config
}

// Option configures a Capability.
type Option func(*Capability) error

// WithModel overrides the model name.
func WithModel(model string) Option {
	return func(c *Capability) error {
		if model == "" {
			return errors.New("model cannot be empty")
		}
		c.modelName = model
		return nil
	}
}

// WithMaxTokens sets the response token cap.
func WithMaxTokens(tokens int64) Option {
	return func(c *Capability) error {
		if tokens <= 0 {
			return fmt.Errorf("max tokens must be positive, got %d", tokens)
		}
		c.maxTokens = tokens
		return nil
	}
}

// WithRetryConfig overrides the retry behavior for transient API errors.
func WithRetryConfig(cfg backoff.Config) Option {
	return func(c *Capability) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		c.retryConfig = cfg
		return nil
	}
}

// New creates a Claude-backed capability.
func New(client anthropic.Client, opts ...Option) (*Capability, error) {
	c := &Capability{
		client:      client,
		modelName:   "claude-sonnet-4-5",
		maxTokens:   8192,
		retryConfig: backoff.DefaultConfig(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}
	return c, nil
}

// GeneratePlan implements capability.Generative.
func (c *Capability) GeneratePlan(ctx context.Context, req capability.PlanRequest) (json.RawMessage, error) {
	prompt, err := capability.PlanPrompt(req)
	if err != nil {
		return nil, err
	}

	text, err := c.complete(ctx, "generate_plan", capability.PlanSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	raw, err := result.ExtractRaw(text)
	if err != nil {
		clog.FromContext(ctx).With("response", text).
			Warn("Plan response was not valid JSON")
		return nil, fmt.Errorf("extracting plan: %w", err)
	}
	return raw, nil
}

// ClassifyFailure implements capability.Generative.
func (c *Capability) ClassifyFailure(ctx context.Context, checkName, evidence string) (string, error) {
	text, err := c.complete(ctx, "classify_failure", capability.ClassifySystemPrompt, capability.ClassifyPrompt(checkName, evidence))
	if err != nil {
		return "", err
	}
	var class string
	class, err = result.Extract[string](text)
	if err != nil {
		return "", fmt.Errorf("extracting class: %w", err)
	}
	return class, nil
}

// complete sends one user message and returns the text content, retrying
// transient API errors with backoff.
func (c *Capability) complete(ctx context.Context, operation, system, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.modelName),
		MaxTokens: c.maxTokens,
		// Deterministic-as-possible sampling; true reproducibility comes
		// from transcript replay.
		Temperature: anthropic.Float(0),
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	message, err := backoff.Retry(ctx, c.retryConfig, operation, isRetryableError, func() (*anthropic.Message, error) {
		return c.client.Messages.New(ctx, params)
	})
	if err != nil {
		return "", fmt.Errorf("calling model: %w", err)
	}

	for _, content := range message.Content {
		if content.Type == "text" && content.Text != "" {
			return content.Text, nil
		}
	}
	return "", errors.New("model returned no text content")
}

// isRetryableError reports whether an Anthropic API error is transient.
// Covers rate limits, overloaded, and server-side gateway errors.
func isRetryableError(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 503, 504, 529:
			return true
		}
	}
	return false
}
