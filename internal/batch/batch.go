// Package batch runs independent operations in fixed-size parallel chunks
// with pacing between chunks, settling every item to a positional outcome.
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is swappable so tests can control inter-batch pacing.
var clock = clockwork.NewRealClock()

// SetClock swaps the pacing time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Outcome is the settled result of one item. Exactly one of Value and Err is
// meaningful; Err carries the reason a worker failed.
type Outcome[R any] struct {
	Value R
	Err   error
}

// Failed reports whether the item's worker returned an error.
func (o Outcome[R]) Failed() bool {
	return o.Err != nil
}

// Run executes worker over items with at most batchSize calls in flight at
// once. Items are processed in fixed chunks: all workers of a chunk start
// together, the chunk is awaited, then the pacing pause is slept only if
// more chunks remain. One worker's failure never aborts the rest; the result
// always has len(items) entries and result[i] belongs to items[i].
//
// Cancelling ctx does not truncate the result: remaining workers still run
// and are expected to fail fast on the cancelled context.
func Run[T, R any](ctx context.Context, items []T, worker func(context.Context, T) (R, error), batchSize int, pause time.Duration) []Outcome[R] {
	if batchSize < 1 {
		batchSize = 1
	}

	outcomes := make([]Outcome[R], len(items))

	for start := 0; start < len(items); start += batchSize {
		end := min(start+batchSize, len(items))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				v, err := worker(ctx, items[i])
				outcomes[i] = Outcome[R]{Value: v, Err: err}
			}(i)
		}
		wg.Wait()

		if end < len(items) {
			sleepWithContext(ctx, pause)
		}
	}

	return outcomes
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	select {
	case <-ctx.Done():
		return false
	case <-clock.After(d):
		return true
	}
}
