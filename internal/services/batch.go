package services

import (
	"context"
	"fmt"
	"log/slog"
)

// BatchFailure records one unit of a batch operation that did not complete.
type BatchFailure[T any] struct {
	Item T
	Err  error
}

// BatchTally summarizes a batch operation that continues past per-unit
// failures.
type BatchTally[T any] struct {
	Succeeded int
	Failures  []BatchFailure[T]
}

// Failed returns the number of units that did not complete.
func (t BatchTally[T]) Failed() int {
	return len(t.Failures)
}

// Err folds the tally into a single error, or nil when every unit succeeded.
func (t BatchTally[T]) Err() error {
	if len(t.Failures) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d units failed (first: %v)",
		t.Failed(), t.Succeeded+t.Failed(), t.Failures[0].Err)
}

// ForEachIsolated runs fn once per item, converting panics to errors and
// continuing with the remaining items after any failure. Failed units are
// logged and tallied; a single malformed unit never aborts the batch. A
// canceled context stops the loop and records the remaining cause once.
func ForEachIsolated[T any](ctx context.Context, logger *slog.Logger, items []T, describe func(T) string, fn func(context.Context, T) error) BatchTally[T] {
	var tally BatchTally[T]
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			tally.Failures = append(tally.Failures, BatchFailure[T]{Item: item, Err: err})
			break
		}
		if err := runIsolated(ctx, item, fn); err != nil {
			tally.Failures = append(tally.Failures, BatchFailure[T]{Item: item, Err: err})
			if logger != nil {
				logger.Error("batch unit failed",
					slog.String("unit", describe(item)),
					slog.Any("error", err))
			}
			continue
		}
		tally.Succeeded++
	}
	return tally
}

func runIsolated[T any](ctx context.Context, item T, fn func(context.Context, T) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, item)
}
