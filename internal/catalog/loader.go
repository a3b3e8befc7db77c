package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"tdr-agent/internal/types"

	"github.com/getkin/kin-openapi/openapi3"
)

// supportedMethods lists the operations the catalog keeps
var supportedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
	http.MethodPatch:  true,
}

// Catalog is the immutable, flattened view of an API description document
type Catalog struct {
	endpoints map[string]types.Endpoint
	keys      []string
}

// Load reads an API description from a file path or an http(s) URL
func Load(ctx context.Context, source string) (*Catalog, error) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		data, err = fetch(ctx, source)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read API description %s: %w", source, err)
	}

	c, err := LoadFromData(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to load API description %s: %w", source, err)
	}
	slog.Info("loaded endpoint catalog", "source", source, "endpoints", c.Len())
	return c, nil
}

// fetch downloads the API description document
func fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// LoadFromData parses a JSON or YAML API description and flattens its paths
func LoadFromData(ctx context.Context, data []byte) (*Catalog, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI doc: %w", err)
	}
	if doc.Paths == nil || doc.Paths.Len() == 0 {
		return nil, fmt.Errorf("API description declares no paths")
	}
	return flatten(doc)
}

// flatten turns path -> method -> operation into "METHOD /path" -> endpoint
func flatten(doc *openapi3.T) (*Catalog, error) {
	c := &Catalog{endpoints: make(map[string]types.Endpoint)}

	for path, pathItem := range doc.Paths.Map() {
		if pathItem == nil {
			continue
		}
		for method, operation := range pathItem.Operations() {
			method = strings.ToUpper(method)
			if !supportedMethods[method] {
				slog.Debug("skipping unsupported operation", "method", method, "path", path)
				continue
			}

			endpoint := types.Endpoint{
				Method:      method,
				Path:        path,
				Summary:     operation.Summary,
				Description: operation.Description,
				OperationID: operation.OperationID,
				Parameters:  mergeParameters(pathItem.Parameters, operation.Parameters),
			}

			key := endpoint.Key()
			if _, exists := c.endpoints[key]; exists {
				return nil, fmt.Errorf("duplicate endpoint key %q", key)
			}
			c.endpoints[key] = endpoint
			c.keys = append(c.keys, key)
		}
	}

	sort.Strings(c.keys)
	return c, nil
}

// mergeParameters keeps operation parameters in declaration order and adds
// path-level parameters the operation does not override
func mergeParameters(pathLevel, opLevel openapi3.Parameters) []types.ParameterSpec {
	params := make([]types.ParameterSpec, 0, len(pathLevel)+len(opLevel))
	seen := make(map[string]bool)

	for _, ref := range opLevel {
		if ref == nil || ref.Value == nil {
			continue
		}
		params = append(params, toParameterSpec(ref.Value))
		seen[ref.Value.In+":"+ref.Value.Name] = true
	}
	for _, ref := range pathLevel {
		if ref == nil || ref.Value == nil || seen[ref.Value.In+":"+ref.Value.Name] {
			continue
		}
		params = append(params, toParameterSpec(ref.Value))
	}
	return params
}

func toParameterSpec(p *openapi3.Parameter) types.ParameterSpec {
	spec := types.ParameterSpec{
		Name:     p.Name,
		In:       p.In,
		Type:     "string",
		Required: p.Required,
	}
	if p.Schema != nil && p.Schema.Value != nil {
		spec.Schema = p.Schema.Value
		if t := p.Schema.Value.Type; t != nil && len(*t) > 0 {
			spec.Type = (*t)[0]
		}
	}
	return spec
}

// Get returns the endpoint registered under key
func (c *Catalog) Get(key string) (types.Endpoint, bool) {
	e, ok := c.endpoints[key]
	return e, ok
}

// Keys returns all endpoint keys in sorted order
func (c *Catalog) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Endpoints returns all endpoints sorted by key
func (c *Catalog) Endpoints() []types.Endpoint {
	out := make([]types.Endpoint, 0, len(c.keys))
	for _, k := range c.keys {
		out = append(out, c.endpoints[k])
	}
	return out
}

// Len returns the number of endpoints
func (c *Catalog) Len() int {
	return len(c.keys)
}
