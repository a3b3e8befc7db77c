// Package explain asks the model to describe a threat API response in the
// analyst's language.
package explain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"tdr-agent/internal/config"
	"tdr-agent/internal/langdetect"
	"tdr-agent/internal/llm"
)

var (
	// ErrPromptRequired is returned when a request has no prompt
	ErrPromptRequired = errors.New("no prompt provided")

	// ErrNoCredential is returned when no model API key is configured
	ErrNoCredential = errors.New("AI API key not configured")

	// ErrInvalidFilter is returned when a jq expression does not parse or compile
	ErrInvalidFilter = errors.New("invalid jq expression")
)

// PingReply is what the connectivity check asks the model to say
const PingReply = "AI test successful"

// Request asks for an explanation of one API response
type Request struct {
	Prompt       string         `json:"prompt"`
	ResponseData any            `json:"responseData,omitempty"`
	APIRequest   map[string]any `json:"apiRequest,omitempty"`
	Language     string         `json:"detected_language,omitempty"`

	// Filter is an optional jq expression applied to ResponseData. Its output
	// is appended to the prompt.
	Filter string `json:"filter,omitempty"`
}

// Explainer produces explanations with the configured model
type Explainer struct {
	settings config.ModelConfig
	factory  llm.Factory
	filters  *filterCache
}

// Option configures an Explainer
type Option func(*Explainer)

// WithFactory replaces the model client factory
func WithFactory(f llm.Factory) Option {
	return func(e *Explainer) {
		e.factory = f
	}
}

// New creates an explainer
func New(settings config.ModelConfig, opts ...Option) (*Explainer, error) {
	filters, err := newFilterCache(filterCacheSize)
	if err != nil {
		return nil, err
	}
	e := &Explainer{
		settings: settings,
		factory:  llm.DefaultFactory,
		filters:  filters,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Filter applies a jq expression to data, stopping when ctx is done
func (e *Explainer) Filter(ctx context.Context, expression string, data any) (any, error) {
	return e.filters.apply(ctx, expression, data)
}

// Explain returns the model's explanation for req. The runtime snapshot is
// taken from ctx.
func (e *Explainer) Explain(ctx context.Context, req Request) (string, error) {
	if req.Prompt == "" {
		return "", ErrPromptRequired
	}

	prompt := req.Prompt
	if req.Filter != "" {
		filtered, err := e.Filter(ctx, req.Filter, req.ResponseData)
		if err != nil {
			return "", err
		}
		out, err := json.MarshalIndent(filtered, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode filtered data: %w", err)
		}
		prompt += "\n\nFiltered response data:\n" + string(out)
	}

	lang := langdetect.Tag(req.Language)
	slog.Info("explaining response", "language", lang, "api_request", req.APIRequest, "prompt_length", len(prompt))

	return e.complete(ctx, llm.Request{
		Operation: "ExplainResponse",
		System:    SystemPrompt(lang),
		User:      prompt,
	})
}

// Ping checks that the configured model answers
func (e *Explainer) Ping(ctx context.Context) (string, error) {
	return e.complete(ctx, llm.Request{
		Operation: "Ping",
		System:    "You are a helpful assistant.",
		User:      "Say '" + PingReply + "' and nothing else.",
	})
}

func (e *Explainer) complete(ctx context.Context, req llm.Request) (string, error) {
	rt, _ := config.RuntimeFrom(ctx)
	if !rt.HasModelCredential() {
		return "", ErrNoCredential
	}

	cfg := llm.FromRuntime(rt, e.settings)
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	client, err := e.factory(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("failed to create model client: %w", err)
	}
	text, err := client.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("AI processing failed: %w", err)
	}
	return text, nil
}
