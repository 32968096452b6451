// internal/utils/batch.go
package utils

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// Explorer APIs throttle hard, so lookups go out a few at a time.
	MaxBatchSize      = 3
	LowRateBatchDelay = 5 * time.Millisecond
	DefaultBatchDelay = 500 * time.Millisecond
)

type BatchOptions struct {
	Size  int
	Delay time.Duration
}

// BatchOptionsFor derives batch settings from a requests-per-second budget. Budgets at or below
// MaxBatchSize are treated as a low rate-limit explorer target.
func BatchOptionsFor(requestsPerSecond int) BatchOptions {
	size := requestsPerSecond
	if size < 1 {
		size = 1
	}
	if size > MaxBatchSize {
		return BatchOptions{Size: MaxBatchSize, Delay: DefaultBatchDelay}
	}
	return BatchOptions{Size: size, Delay: LowRateBatchDelay}
}

// MapInBatches applies fn to every item, running each batch concurrently and pausing between
// batches. Result i always belongs to item i. fn must not fail; errors have to be folded into R.
//
// If ctx is cancelled no further batches are started; the results gathered so far are returned
// together with ctx.Err().
func MapInBatches[T, R any](ctx context.Context, items []T, opts BatchOptions, fn func(context.Context, T) R) ([]R, error) {
	results := make([]R, len(items))
	size := opts.Size
	if size < 1 {
		size = 1
	}

	for start := 0; start < len(items); start += size {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		end := min(start+size, len(items))
		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				results[i] = fn(ctx, items[i])
				return nil
			})
		}
		g.Wait()

		if end < len(items) && opts.Delay > 0 {
			timer := time.NewTimer(opts.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return results, ctx.Err()
			case <-timer.C:
			}
		}
	}

	return results, nil
}
