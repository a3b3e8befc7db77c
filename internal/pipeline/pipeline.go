// Package pipeline resolves a natural-language query into a threat API request
// descriptor, trying the rule cascade first and the model second.
package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"tdr-agent/internal/assist"
	"tdr-agent/internal/catalog"
	"tdr-agent/internal/config"
	"tdr-agent/internal/langdetect"
	"tdr-agent/internal/request"
	"tdr-agent/internal/rules"
	"tdr-agent/internal/types"
)

// FailureMessage is returned when neither resolver understands a query
const FailureMessage = "Could not understand the query. Please try rephrasing your request."

var suggestions = []string{
	"Show me the most risky users",
	"List the top 5 risky devices",
	"What were the user threats on 2024-09-03?",
	"Describe risky user user123",
	"Show me the organization's security summary",
	"List the most risky rare process executions",
}

// Suggestions returns the example queries offered after a failure
func Suggestions() []string {
	out := make([]string, len(suggestions))
	copy(out, suggestions)
	return out
}

// ModelResolver is the fallback used when the rule cascade misses
type ModelResolver interface {
	Resolve(ctx context.Context, query string, lang langdetect.Tag) (*assist.Resolution, bool)
}

// RuntimeSource provides the configuration snapshot for one resolution
type RuntimeSource interface {
	Snapshot() config.Runtime
}

// Pipeline resolves queries against a catalog
type Pipeline struct {
	catalog *catalog.Catalog
	rules   *rules.Resolver
	model   ModelResolver
	runtime RuntimeSource
}

// New creates a pipeline. A nil model disables the fallback.
func New(cat *catalog.Catalog, rr *rules.Resolver, model ModelResolver, runtime RuntimeSource) *Pipeline {
	return &Pipeline{
		catalog: cat,
		rules:   rr,
		model:   model,
		runtime: runtime,
	}
}

// Catalog returns the endpoint catalog
func (p *Pipeline) Catalog() *catalog.Catalog {
	return p.catalog
}

// Resolve turns query into a request descriptor or a failure with suggestions.
// The runtime configuration is read once and used for the whole call.
func (p *Pipeline) Resolve(ctx context.Context, query string) types.Result {
	rt, ok := config.RuntimeFrom(ctx)
	if !ok {
		rt = p.runtime.Snapshot()
		ctx = config.WithRuntime(ctx, rt)
	}

	lang := langdetect.Detect(query)
	slog.Info("processing query", "query", query, "language", lang)

	if m, ok := p.rules.Resolve(strings.ToLower(strings.TrimSpace(query))); ok {
		if ep, found := p.catalog.Get(m.Endpoint); found {
			slog.Info("rule-based match found", "endpoint", m.Endpoint, "parameters", m.Parameters)
			return p.success(ep, m.Parameters, query, lang, rt, types.MethodRuleBased, nil)
		}
		slog.Warn("rule-based endpoint not in catalog", "endpoint", m.Endpoint)
	} else {
		slog.Info("rule-based parsing failed, trying model")
	}

	if p.model != nil {
		if res, ok := p.model.Resolve(ctx, query, lang); ok {
			if ep, found := p.catalog.Get(res.Endpoint); found {
				confidence := res.Confidence
				return p.success(ep, res.Parameters, query, lang, rt, types.MethodModel, &confidence)
			}
			slog.Warn("model returned unknown endpoint", "endpoint", res.Endpoint)
		}
	}

	slog.Warn("could not resolve query", "query", query)
	return failure(FailureMessage, lang)
}

func (p *Pipeline) success(ep types.Endpoint, params types.Parameters, query string, lang langdetect.Tag, rt config.Runtime, method types.ProcessingMethod, confidence *float64) types.Result {
	// model output is checked against the full parameter schema; rule output
	// is already bounded by the extractors
	var opts []request.Option
	if method == types.MethodModel {
		opts = append(opts, request.WithSchemaValidation())
	}
	req, err := request.Build(ep, params, rt, opts...)
	if err != nil {
		slog.Warn("failed to build request", "endpoint", ep.Key(), "error", err)
		return failure("Could not build a request for "+ep.Key()+": "+err.Error(), lang)
	}
	return types.Result{
		Endpoint:             ep.Key(),
		Summary:              ep.Summary,
		APIRequest:           &req,
		NaturalLanguageQuery: query,
		ExtractedParameters:  params,
		ProcessingMethod:     method,
		DetectedLanguage:     string(lang),
		Confidence:           confidence,
	}
}

func failure(message string, lang langdetect.Tag) types.Result {
	return types.Result{
		Error:            message,
		Suggestions:      Suggestions(),
		ProcessingMethod: types.MethodFailed,
		DetectedLanguage: string(lang),
	}
}
