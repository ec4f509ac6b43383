/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package openaicap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chainguard.dev/mergegate/backoff"
	"chainguard.dev/mergegate/capability"
	"chainguard.dev/mergegate/capability/result"
	"github.com/chainguard-dev/clog"
	"github.com/openai/openai-go"
)

// Capability is a capability.Generative backed by the OpenAI API. Unlike
// the Anthropic API, OpenAI accepts the generation seed directly.
type Capability struct {
	client      openai.Client
	modelName   string
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

// New creates an OpenAI-backed capability.
func New(client openai.Client, opts ...Option) (*Capability, error) {
	c := &Capability{
		client:      client,
		modelName:   "gpt-4.1",
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

	text, err := c.complete(ctx, "generate_plan", capability.PlanSystemPrompt, prompt, &req.Seed)
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
	text, err := c.complete(ctx, "classify_failure", capability.ClassifySystemPrompt, capability.ClassifyPrompt(checkName, evidence), nil)
	if err != nil {
		return "", err
	}
	class, err := result.Extract[string](text)
	if err != nil {
		return "", fmt.Errorf("extracting class: %w", err)
	}
	return class, nil
}

func (c *Capability) complete(ctx context.Context, operation, system, prompt string, seed *int64) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.modelName),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0),
	}
	if seed != nil {
		params.Seed = openai.Int(*seed)
	}

	completion, err := backoff.Retry(ctx, c.retryConfig, operation, isRetryableError, func() (*openai.ChatCompletion, error) {
		return c.client.Chat.Completions.New(ctx, params)
	})
	if err != nil {
		return "", fmt.Errorf("calling model: %w", err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", errors.New("model returned no text content")
	}
	return completion.Choices[0].Message.Content, nil
}

// isRetryableError reports whether an OpenAI API error is transient.
func isRetryableError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
	}
	return false
}
