// Package batch resolves sets of queries read from a file.
package batch

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Query is one entry of a query set. Expect optionally names the endpoint
// key the query should resolve to.
type Query struct {
	ID     string `json:"id,omitempty" yaml:"id,omitempty"`
	Query  string `json:"query" yaml:"query"`
	Expect string `json:"expect,omitempty" yaml:"expect,omitempty"`
}

// QuerySet is the file format for batch input
type QuerySet struct {
	Queries []Query `json:"queries" yaml:"queries"`
}

// Load reads a query set. The format follows the extension: .json, .yaml or
// .yml, and anything else is read as one query per line with # comments.
func Load(path string) ([]Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read query file: %w", err)
	}

	var set QuerySet
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &set); err != nil {
			return nil, fmt.Errorf("failed to parse query file: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &set); err != nil {
			return nil, fmt.Errorf("failed to parse query file: %w", err)
		}
	default:
		set.Queries = parseLines(data)
	}

	queries := make([]Query, 0, len(set.Queries))
	for i, q := range set.Queries {
		q.Query = strings.TrimSpace(q.Query)
		if q.Query == "" {
			return nil, fmt.Errorf("query %d is empty", i+1)
		}
		if q.ID == "" {
			q.ID = fmt.Sprintf("q%d", i+1)
		}
		queries = append(queries, q)
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("no queries found in %s", path)
	}
	return queries, nil
}

func parseLines(data []byte) []Query {
	var out []Query
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, Query{Query: line})
	}
	return out
}
