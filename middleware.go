package shardfeed

import (
	"context"
	"sync/atomic"

	"github.com/jaredmtdev/shardfeed/internal/pool"
	"go.uber.org/zap"
)

// countRecords - counts jobs that succeed.
func countRecords[IN, OUT any](n *atomic.Int64) pool.Middleware[IN, OUT] {
	return func(next pool.HandlerFunc[IN, OUT]) pool.HandlerFunc[IN, OUT] {
		return func(ctx context.Context, in IN) (OUT, error) {
			out, err := next(ctx, in)
			if err == nil {
				n.Add(1)
			}
			return out, err
		}
	}
}

// logFailures - logs the error that ends a file.
func logFailures[IN, OUT any](logger *zap.Logger, file string) pool.Middleware[IN, OUT] {
	return func(next pool.HandlerFunc[IN, OUT]) pool.HandlerFunc[IN, OUT] {
		return func(ctx context.Context, in IN) (OUT, error) {
			out, err := next(ctx, in)
			if err != nil {
				logger.Error("record failed", zap.String("file", file), zap.Error(err))
			}
			return out, err
		}
	}
}
