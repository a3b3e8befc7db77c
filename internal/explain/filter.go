package explain

import (
	"context"
	"encoding/json"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/itchyny/gojq"
)

const filterCacheSize = 64

// filterCache keeps compiled jq programs keyed by expression
type filterCache struct {
	cache *lru.Cache[string, *gojq.Code]
}

func newFilterCache(size int) (*filterCache, error) {
	c, err := lru.New[string, *gojq.Code](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create filter cache: %w", err)
	}
	return &filterCache{cache: c}, nil
}

func (f *filterCache) compile(expression string) (*gojq.Code, error) {
	if code, ok := f.cache.Get(expression); ok {
		return code, nil
	}
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to compile: %w", ErrInvalidFilter, err)
	}
	f.cache.Add(expression, code)
	return code, nil
}

// apply runs expression over data. A single output is returned as is,
// several are returned as a slice.
func (f *filterCache) apply(ctx context.Context, expression string, data any) (any, error) {
	code, err := f.compile(expression)
	if err != nil {
		return nil, err
	}

	input, err := plain(data)
	if err != nil {
		return nil, err
	}

	var values []any
	iter := code.RunWithContext(ctx, input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, fmt.Errorf("jq filter failed: %w", err)
		}
		values = append(values, v)
	}

	if len(values) == 1 {
		return values[0], nil
	}
	return values, nil
}

// plain converts data to the generic JSON types gojq accepts
func plain(data any) (any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON data: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("invalid JSON data: %w", err)
	}
	return out, nil
}
