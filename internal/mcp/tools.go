package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"tdr-agent/internal/explain"
	"tdr-agent/internal/types"
)

func registerTools(srv *sdkmcp.Server, d *Deps) {
	sdkmcp.AddTool(srv, &sdkmcp.Tool{
		Name:        "resolve_query",
		Description: "Translate a natural-language question about threats into a threat detection API request. Set execute=true to also send the request and return the API response.",
	}, toolResolveQuery(d))

	sdkmcp.AddTool(srv, &sdkmcp.Tool{
		Name:        "list_endpoints",
		Description: "List the threat detection API endpoints queries can resolve to",
	}, toolListEndpoints(d))

	sdkmcp.AddTool(srv, &sdkmcp.Tool{
		Name:        "explain_response",
		Description: "Ask the configured model to explain a threat API response. An optional jq filter narrows the response data first.",
	}, toolExplainResponse(d))
}

// ResolveQueryInput is the input for resolve_query
type ResolveQueryInput struct {
	Query   string `json:"query" jsonschema:"the question, in any supported language"`
	Execute bool   `json:"execute,omitempty" jsonschema:"send the built request to the threat API"`
}

// ResolveQueryOutput is the output for resolve_query
type ResolveQueryOutput struct {
	Result         types.Result `json:"result"`
	ResponseStatus int          `json:"response_status,omitempty"`
	ResponseBody   any          `json:"response_body,omitempty"`
}

func toolResolveQuery(d *Deps) sdkmcp.ToolHandlerFor[ResolveQueryInput, ResolveQueryOutput] {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input ResolveQueryInput) (*sdkmcp.CallToolResult, ResolveQueryOutput, error) {
		query := strings.TrimSpace(input.Query)
		if query == "" {
			return nil, ResolveQueryOutput{}, errors.New("query is required")
		}

		ctx, _ = d.runtimeContext(ctx)
		out := ResolveQueryOutput{Result: d.Pipeline.Resolve(ctx, query)}
		if !input.Execute || !out.Result.OK() || d.Forwarder == nil {
			return nil, out, nil
		}

		resp, err := d.Forwarder.Execute(ctx, *out.Result.APIRequest)
		if err != nil {
			return nil, ResolveQueryOutput{}, fmt.Errorf("executing request: %w", err)
		}
		out.ResponseStatus = resp.Status
		out.ResponseBody = decodeBody(resp.Body)
		return nil, out, nil
	}
}

// decodeBody returns parsed JSON when possible and the raw text otherwise
func decodeBody(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		return v
	}
	return string(body)
}

// ListEndpointsInput is the input for list_endpoints
type ListEndpointsInput struct{}

// EndpointInfo describes one catalog entry
type EndpointInfo struct {
	Key         string   `json:"key"`
	Summary     string   `json:"summary,omitempty"`
	Description string   `json:"description,omitempty"`
	Parameters  []string `json:"parameters,omitempty"`
}

// ListEndpointsOutput is the output for list_endpoints
type ListEndpointsOutput struct {
	Endpoints []EndpointInfo `json:"endpoints"`
}

func toolListEndpoints(d *Deps) sdkmcp.ToolHandlerFor[ListEndpointsInput, ListEndpointsOutput] {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input ListEndpointsInput) (*sdkmcp.CallToolResult, ListEndpointsOutput, error) {
		endpoints := d.Pipeline.Catalog().Endpoints()
		out := ListEndpointsOutput{Endpoints: make([]EndpointInfo, 0, len(endpoints))}
		for _, ep := range endpoints {
			info := EndpointInfo{
				Key:         ep.Key(),
				Summary:     ep.Summary,
				Description: ep.Description,
			}
			for _, p := range ep.Parameters {
				info.Parameters = append(info.Parameters, fmt.Sprintf("%s (%s, %s)", p.Name, p.In, p.Type))
			}
			out.Endpoints = append(out.Endpoints, info)
		}
		return nil, out, nil
	}
}

// ExplainResponseInput is the input for explain_response
type ExplainResponseInput struct {
	Prompt       string `json:"prompt" jsonschema:"what to ask about the response"`
	ResponseData any    `json:"response_data,omitempty" jsonschema:"the API response to explain"`
	Filter       string `json:"filter,omitempty" jsonschema:"jq expression applied to response_data"`
	Language     string `json:"language,omitempty" jsonschema:"language tag for the answer, such as en or zh"`
}

// ExplainResponseOutput is the output for explain_response
type ExplainResponseOutput struct {
	Explanation string `json:"explanation"`
}

func toolExplainResponse(d *Deps) sdkmcp.ToolHandlerFor[ExplainResponseInput, ExplainResponseOutput] {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input ExplainResponseInput) (*sdkmcp.CallToolResult, ExplainResponseOutput, error) {
		if d.Explainer == nil {
			return nil, ExplainResponseOutput{}, errors.New("explanations are not available")
		}

		ctx, _ = d.runtimeContext(ctx)
		text, err := d.Explainer.Explain(ctx, explain.Request{
			Prompt:       input.Prompt,
			ResponseData: input.ResponseData,
			Filter:       input.Filter,
			Language:     input.Language,
		})
		if err != nil {
			return nil, ExplainResponseOutput{}, err
		}
		return nil, ExplainResponseOutput{Explanation: text}, nil
	}
}
