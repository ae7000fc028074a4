// Package batch fans remote operations out with a fixed concurrency ceiling.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"headstart/pkg/metrics"
)

const (
	DefaultConcurrency = 20
	DefaultBatchSize   = 500
)

// Runner executes one operation per item. Items are split into batches of Size that run
// one after another; inside a batch at most Concurrency operations are in flight.
//
// A failing item never cancels its siblings. Every item is attempted exactly once and all
// failures are returned together once the last batch has finished.
type Runner struct {
	Concurrency int
	Size        int
	// Pause is waited between batches.
	Pause time.Duration
}

func New(concurrency, size int, pause time.Duration) Runner {
	return Runner{Concurrency: concurrency, Size: size, Pause: pause}
}

// ItemError identifies the item that failed by its position in the input.
type ItemError[T any] struct {
	Index int
	Item  T
	Err   error
}

func (e *ItemError[T]) Error() string { return fmt.Sprintf("item %d: %v", e.Index, e.Err) }
func (e *ItemError[T]) Unwrap() error { return e.Err }

// Run calls op for every item and blocks until all have returned. The returned error joins
// one *ItemError per failed item, in item order. Context cancellation stops scheduling of
// items not yet started; those are reported with the context error.
func Run[T any](ctx context.Context, r Runner, items []T, op func(context.Context, T) error) error {
	conc := r.Concurrency
	if conc <= 0 {
		conc = DefaultConcurrency
	}
	size := r.Size
	if size <= 0 {
		size = DefaultBatchSize
	}
	errs := make([]error, len(items))
	for start := 0; start < len(items); start += size {
		if start > 0 && r.Pause > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(r.Pause):
			}
		}
		end := min(start+size, len(items))
		var g errgroup.Group
		g.SetLimit(conc)
		for i := start; i < end; i++ {
			if err := ctx.Err(); err != nil {
				errs[i] = &ItemError[T]{Index: i, Item: items[i], Err: err}
				continue
			}
			g.Go(func() error {
				metrics.BatchInFlight.Inc()
				defer metrics.BatchInFlight.Dec()
				if err := op(ctx, items[i]); err != nil {
					errs[i] = &ItemError[T]{Index: i, Item: items[i], Err: err}
				}
				return nil
			})
		}
		_ = g.Wait()
	}
	return errors.Join(errs...)
}
