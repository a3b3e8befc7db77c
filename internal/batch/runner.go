package batch

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"tdr-agent/internal/types"
)

// Resolver resolves one query
type Resolver interface {
	Resolve(ctx context.Context, query string) types.Result
}

// Outcome is the result of one batch query
type Outcome struct {
	Query    Query         `json:"query" yaml:"query"`
	Result   types.Result  `json:"result" yaml:"result"`
	Duration time.Duration `json:"duration" yaml:"duration"`

	// Matched is set when the query named an expected endpoint
	Matched *bool `json:"matched,omitempty" yaml:"matched,omitempty"`
}

// Runner resolves query sets with bounded concurrency
type Runner struct {
	resolver Resolver
	workers  int
}

// NewRunner creates a runner using at most workers concurrent resolutions
func NewRunner(resolver Resolver, workers int) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{resolver: resolver, workers: workers}
}

// Run resolves every query. Outcomes keep the input order. It only fails
// when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, queries []Query) ([]Outcome, error) {
	outcomes := make([]Outcome, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, q := range queries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			res := r.resolver.Resolve(gctx, q.Query)
			out := Outcome{Query: q, Result: res, Duration: time.Since(start)}
			if q.Expect != "" {
				matched := res.Endpoint == q.Expect
				out.Matched = &matched
			}
			outcomes[i] = out
			slog.Debug("batch query resolved", "id", q.ID, "method", res.ProcessingMethod, "endpoint", res.Endpoint)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}
