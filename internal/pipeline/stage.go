package pipeline

import (
	"context"
	"sync"
)

// Result wraps one stage output with its error and the input's original
// position, so callers can account failures per item.
type Result[Out any] struct {
	Value Out
	Err   error
	Index int
}

// Stage is a bounded-concurrency map over a slice of inputs. The bound
// exists to respect external rate limits, not to saturate the host.
type Stage[In, Out any] struct {
	Name        string
	Concurrency int
	Process     func(ctx context.Context, input In) (Out, error)
}

// Run executes the stage over all inputs and returns results in input
// order regardless of completion order. A cancelled context marks the
// not-yet-started items with ctx.Err() instead of leaving them pending.
func Run[In, Out any](ctx context.Context, stage Stage[In, Out], inputs []In) []Result[Out] {
	if len(inputs) == 0 {
		return nil
	}

	concurrency := stage.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	if concurrency > len(inputs) {
		concurrency = len(inputs)
	}

	results := make([]Result[Out], len(inputs))
	sem := make(chan struct{}, concurrency)

	var wg sync.WaitGroup
	for i, input := range inputs {
		wg.Add(1)
		go func(idx int, in In) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = Result[Out]{Err: ctx.Err(), Index: idx}
				return
			}

			if ctx.Err() != nil {
				results[idx] = Result[Out]{Err: ctx.Err(), Index: idx}
				return
			}

			out, err := stage.Process(ctx, in)
			results[idx] = Result[Out]{Value: out, Err: err, Index: idx}
		}(i, input)
	}

	wg.Wait()
	return results
}
