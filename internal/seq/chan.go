// Package seq - bridges between iter sequences and the channels the pipeline stages use.
package seq

import (
	"context"
	"iter"

	"github.com/jaredmtdev/shardfeed/internal/pool"
)

// ToChan - iter.Seq to chan
func ToChan[T any](ctx context.Context, in iter.Seq[T], buffer int) <-chan T {
	out := make(chan T, buffer)
	go func() {
		defer close(out)
		for v := range in {
			select {
			case <-ctx.Done():
				return
			case out <- v:
			}
		}
	}()
	return out
}

// ToResults - iter.Seq2 with errors to a chan of results.
// The first error is sent as the last result.
func ToResults[T any](ctx context.Context, in iter.Seq2[T, error], buffer int) <-chan pool.Result[T] {
	out := make(chan pool.Result[T], buffer)
	go func() {
		defer close(out)
		for v, err := range in {
			select {
			case <-ctx.Done():
				return
			case out <- pool.Result[T]{Val: v, Err: err}:
			}
			if err != nil {
				return
			}
		}
	}()
	return out
}

// FromResults - chan of results to iter.Seq2. Stops after the first error.
func FromResults[T any](ctx context.Context, in <-chan pool.Result[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			select {
			case <-ctx.Done():
				return
			case r, ok := <-in:
				if !ok || !yield(r.Val, r.Err) || r.Err != nil {
					return
				}
			}
		}
	}
}
