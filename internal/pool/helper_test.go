package pool_test

import (
	"context"
	"errors"

	"github.com/jaredmtdev/shardfeed/internal/pool"
)

var errBoom = errors.New("boom")

func gen(ctx context.Context, n int, buffer ...int) <-chan int {
	var bufferSize int
	if len(buffer) > 0 {
		bufferSize = buffer[0]
	}
	out := make(chan int, bufferSize)
	go func() {
		defer close(out)
		for i := range n {
			select {
			case <-ctx.Done():
				return
			case out <- i:
			}
		}
	}()
	return out
}

func multiply(num int) pool.HandlerFunc[int, int] {
	return func(_ context.Context, in int) (int, error) {
		return in * num, nil
	}
}

func failOn(bad int) pool.HandlerFunc[int, int] {
	return func(_ context.Context, in int) (int, error) {
		if in == bad {
			return 0, errBoom
		}
		return in, nil
	}
}

func mwRecord[IN, OUT any](id int, order chan<- int) pool.Middleware[IN, OUT] {
	return func(next pool.HandlerFunc[IN, OUT]) pool.HandlerFunc[IN, OUT] {
		return func(ctx context.Context, in IN) (OUT, error) {
			order <- id
			return next(ctx, in)
		}
	}
}
