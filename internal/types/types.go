package types

import (
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// Endpoint represents one API operation from the catalog
type Endpoint struct {
	Method      string          `json:"method"`
	Path        string          `json:"path"`
	Summary     string          `json:"summary"`
	Description string          `json:"description"`
	Parameters  []ParameterSpec `json:"parameters"`
	OperationID string          `json:"operation_id,omitempty"`
}

// Key returns the "METHOD /path" catalog key
func (e Endpoint) Key() string {
	return EndpointKey(e.Method, e.Path)
}

// Param returns the declared parameter with the given name
func (e Endpoint) Param(name string) (ParameterSpec, bool) {
	for _, p := range e.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterSpec{}, false
}

// ParameterSpec represents a declared API parameter
type ParameterSpec struct {
	Name     string `json:"name"`
	In       string `json:"in"`
	Type     string `json:"type"`
	Required bool   `json:"required,omitempty"`

	Schema *openapi3.Schema `json:"-"`
}

// Parameters holds values extracted from a query, keyed by parameter name.
// Values are strings, ints or nil from the rule resolver and arbitrary JSON
// scalars from model replies.
type Parameters map[string]any

// APIRequest describes a concrete call against the threat API
type APIRequest struct {
	Method      string            `json:"method" yaml:"method"`
	URL         string            `json:"url" yaml:"url"`
	QueryParams map[string]any    `json:"query_params" yaml:"query_params"`
	PathParams  map[string]any    `json:"path_params" yaml:"path_params"`
	Headers     map[string]string `json:"headers" yaml:"headers"`
	BaseURL     string            `json:"base_url" yaml:"base_url"`
}

// ProcessingMethod records which strategy produced a result
type ProcessingMethod string

const (
	MethodRuleBased ProcessingMethod = "rule_based"
	MethodModel     ProcessingMethod = "openai"
	MethodFailed    ProcessingMethod = "failed"
)

// Result is the single output of query resolution. Exactly one of the
// success fields (Endpoint, APIRequest, ...) or the failure fields (Error,
// Suggestions) is populated, discriminated by ProcessingMethod.
type Result struct {
	Endpoint             string           `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Summary              string           `json:"summary,omitempty" yaml:"summary,omitempty"`
	APIRequest           *APIRequest      `json:"api_request,omitempty" yaml:"api_request,omitempty"`
	NaturalLanguageQuery string           `json:"natural_language_query,omitempty" yaml:"natural_language_query,omitempty"`
	ExtractedParameters  Parameters       `json:"extracted_parameters,omitempty" yaml:"extracted_parameters,omitempty"`
	ProcessingMethod     ProcessingMethod `json:"processing_method" yaml:"processing_method"`
	DetectedLanguage     string           `json:"detected_language,omitempty" yaml:"detected_language,omitempty"`
	Confidence           *float64         `json:"confidence,omitempty" yaml:"confidence,omitempty"`

	Error       string   `json:"error,omitempty" yaml:"error,omitempty"`
	Suggestions []string `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
}

// OK reports whether the result carries a request descriptor
func (r Result) OK() bool {
	return r.ProcessingMethod != MethodFailed && r.APIRequest != nil
}

// EndpointKey builds the catalog key for a method and path
func EndpointKey(method, path string) string {
	return fmt.Sprintf("%s %s", strings.ToUpper(method), path)
}

// SplitEndpointKey parses "GET /threats/users/" into method and path
func SplitEndpointKey(key string) (method, path string, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(key), " ", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return strings.ToUpper(parts[0]), strings.TrimSpace(parts[1]), true
}
