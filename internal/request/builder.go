// Package request turns a resolved endpoint and its extracted parameters into
// a concrete call descriptor for the threat API.
package request

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"tdr-agent/internal/config"
	"tdr-agent/internal/types"
)

var (
	// ErrInvalidParameter is returned when a value does not satisfy the
	// parameter's declared schema
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrMissingPathParameter is returned when a path placeholder is left unfilled
	ErrMissingPathParameter = errors.New("missing path parameter")
)

var placeholderPattern = regexp.MustCompile(`\{[^{}]+\}`)

// Option configures Build
type Option func(*options)

type options struct {
	validate bool
}

// WithSchemaValidation checks coerced values against the full parameter
// schema (bounds, formats, enums) as well as the declared type
func WithSchemaValidation() Option {
	return func(o *options) {
		o.validate = true
	}
}

// Build creates the request descriptor for ep. The result depends only on its
// arguments. Values are coerced to their declared types; schema constraints
// are only enforced with WithSchemaValidation.
func Build(ep types.Endpoint, params types.Parameters, rt config.Runtime, opts ...Option) (types.APIRequest, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	path := strings.TrimSuffix(ep.Path, "/")

	req := types.APIRequest{
		Method:      ep.Method,
		QueryParams: map[string]any{},
		PathParams:  map[string]any{},
		Headers:     rt.Headers(),
		BaseURL:     rt.APIBaseURL(),
	}

	// sorted so substitution order never depends on map iteration
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := params[name]
		placeholder := "{" + name + "}"
		isPath := strings.Contains(ep.Path, placeholder)

		if value == nil {
			if isPath {
				return types.APIRequest{}, fmt.Errorf("%w: %s", ErrMissingPathParameter, name)
			}
			continue
		}

		if spec, ok := ep.Param(name); ok {
			coerced, err := coerce(spec, value, o.validate)
			if err != nil {
				return types.APIRequest{}, fmt.Errorf("%w: %s: %v", ErrInvalidParameter, name, err)
			}
			value = coerced
		}

		if isPath {
			path = strings.ReplaceAll(path, placeholder, url.PathEscape(fmt.Sprint(value)))
			req.PathParams[name] = value
			continue
		}
		req.QueryParams[name] = value
	}

	if missing := placeholderPattern.FindString(path); missing != "" {
		return types.APIRequest{}, fmt.Errorf("%w: %s", ErrMissingPathParameter, strings.Trim(missing, "{}"))
	}

	req.URL = path
	return req, nil
}

// coerce converts value to the declared parameter type, validating it against
// the parameter schema when validate is set
func coerce(spec types.ParameterSpec, value any, validate bool) (any, error) {
	var out any
	switch spec.Type {
	case openapi3.TypeInteger:
		n, err := toInt(value)
		if err != nil {
			return nil, err
		}
		out = n
	case openapi3.TypeNumber:
		f, err := toFloat(value)
		if err != nil {
			return nil, err
		}
		out = f
	case openapi3.TypeBoolean:
		b, err := toBool(value)
		if err != nil {
			return nil, err
		}
		out = b
	case openapi3.TypeString:
		switch v := value.(type) {
		case string:
			out = v
		case int, int64, float64, bool:
			out = fmt.Sprint(v)
		default:
			return nil, fmt.Errorf("unsupported value %v", value)
		}
	default:
		return value, nil
	}

	if !validate || spec.Schema == nil {
		return out, nil
	}
	if err := spec.Schema.VisitJSON(jsonValue(out)); err != nil {
		return nil, errors.New(schemaReason(err))
	}
	return out, nil
}

// schemaReason reduces a schema error to its one-line reason, dropping the
// schema and value dump
func schemaReason(err error) string {
	var se *openapi3.SchemaError
	if errors.As(err, &se) && se.Reason != "" {
		return se.Reason
	}
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return msg
}

// jsonValue converts ints to the float64 form the schema visitor expects
func jsonValue(v any) any {
	if n, ok := v.(int); ok {
		return float64(n)
	}
	return v
}

func toInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%v is not an integer", v)
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", v)
		}
		return n, nil
	}
	return 0, fmt.Errorf("%v is not an integer", value)
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", v)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%v is not a number", value)
}

func toBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("%q is not a boolean", v)
		}
		return b, nil
	}
	return false, fmt.Errorf("%v is not a boolean", value)
}
