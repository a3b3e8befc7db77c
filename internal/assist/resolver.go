// Package assist resolves queries the rule cascade could not handle by asking
// a language model to pick an endpoint and extract its parameters.
package assist

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"tdr-agent/internal/catalog"
	"tdr-agent/internal/config"
	"tdr-agent/internal/langdetect"
	"tdr-agent/internal/llm"
	"tdr-agent/internal/types"
)

// DefaultConfidence is reported when the model omits one
const DefaultConfidence = 0.8

// Resolution is a model-selected endpoint with its parameters
type Resolution struct {
	Endpoint   string
	Parameters types.Parameters
	Confidence float64
}

// Resolver asks the configured model to resolve a query
type Resolver struct {
	catalog  *catalog.Catalog
	settings config.ModelConfig
	factory  llm.Factory
	schema   *jsonschema.Schema
}

// Option configures a Resolver
type Option func(*Resolver)

// WithFactory replaces the model client factory
func WithFactory(f llm.Factory) Option {
	return func(r *Resolver) {
		r.factory = f
	}
}

// NewResolver creates a resolver over cat
func NewResolver(cat *catalog.Catalog, settings config.ModelConfig, opts ...Option) (*Resolver, error) {
	schema, err := compileReplySchema()
	if err != nil {
		return nil, err
	}
	r := &Resolver{
		catalog:  cat,
		settings: settings,
		factory:  llm.DefaultFactory,
		schema:   schema,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve asks the model for an endpoint. The runtime snapshot is taken from
// ctx. Every failure, including a missing credential, is reported as false.
func (r *Resolver) Resolve(ctx context.Context, query string, lang langdetect.Tag) (*Resolution, bool) {
	rt, ok := config.RuntimeFrom(ctx)
	if !ok || !rt.HasModelCredential() {
		slog.Warn("model API key not configured, skipping model resolution")
		return nil, false
	}

	res, err := r.resolve(ctx, rt, query, lang)
	if err != nil {
		slog.Error("model resolution failed", "query", query, "language", lang, "error", err)
		return nil, false
	}
	slog.Info("model resolution succeeded", "endpoint", res.Endpoint, "parameters", res.Parameters)
	return res, true
}

func (r *Resolver) resolve(ctx context.Context, rt config.Runtime, query string, lang langdetect.Tag) (*Resolution, error) {
	cfg := llm.FromRuntime(rt, r.settings)
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	client, err := r.factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	system, user := BuildPrompt(r.catalog.Endpoints(), query, lang)
	slog.Debug("model resolution request", "language", lang, "model", cfg.Model, "base_url", cfg.BaseURL)

	text, err := client.Complete(ctx, llm.Request{Operation: "ResolveQuery", System: system, User: user})
	if err != nil {
		return nil, err
	}

	rep, err := parseReply(r.schema, text)
	if err != nil {
		return nil, err
	}

	confidence := DefaultConfidence
	if rep.Confidence != nil {
		confidence = *rep.Confidence
	}
	return &Resolution{
		Endpoint:   rep.Endpoint,
		Parameters: normalizeParameters(rep.Parameters),
		Confidence: confidence,
	}, nil
}
