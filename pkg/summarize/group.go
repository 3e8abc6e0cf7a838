package summarize

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ChunkResult is the outcome of one chunk. Exactly one of Summary and Err is
// meaningful.
type ChunkResult struct {
	Index   int
	Summary string
	Err     error
}

// ChunkParams configures RunChunks.
type ChunkParams struct {
	Policy      Policy
	MaxParallel int
}

// RunChunks calls fn for every chunk concurrently and returns one result per
// chunk in chunk order. With FailFast the first failure cancels the context
// passed to the remaining calls.
func RunChunks(
	ctx context.Context,
	chunks []string,
	params ChunkParams,
	fn func(ctx context.Context, chunk string) (string, error),
) []ChunkResult {
	results := make([]ChunkResult, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	if params.MaxParallel > 0 {
		g.SetLimit(params.MaxParallel)
	}

	for i, chunk := range chunks {
		g.Go(func() error {
			results[i].Index = i
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			summary, err := fn(gctx, chunk)
			if err != nil {
				results[i].Err = fmt.Errorf("chunk %d: %w", i, err)
				if params.Policy == FailFast {
					return results[i].Err
				}
				return nil
			}
			results[i].Summary = summary
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Collect returns the successful summaries in chunk order. With FailFast any
// failed chunk fails the whole collection; with SkipFailed it fails only when
// no chunk succeeded.
func Collect(results []ChunkResult, policy Policy) ([]string, error) {
	var errs []error
	summaries := make([]string, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
			continue
		}
		summaries = append(summaries, r.Summary)
	}

	if len(errs) > 0 && (policy == FailFast || len(summaries) == 0) {
		return nil, errors.Join(errs...)
	}
	return summaries, nil
}
