package pool_test

import (
	"context"
	"fmt"
	"slices"
	"testing"
	"testing/synctest"
	"time"

	"github.com/jaredmtdev/shardfeed/internal/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMapMultipleWorkers(t *testing.T) {
	tests := []struct {
		jobs       int
		workerSize int
		bufferSize int
	}{
		{jobs: 20, workerSize: 5, bufferSize: 0},
		{jobs: 20, workerSize: 5, bufferSize: 3},
		{jobs: 1000, workerSize: 8, bufferSize: 0},
		{jobs: 1000, workerSize: 1, bufferSize: 8},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("jobs=%v, workerSize=%v, bufferSize=%v", tt.jobs, tt.workerSize, tt.bufferSize), func(t *testing.T) {
			ctx := context.Background()
			var results []int
			for res := range pool.Map(ctx, gen(ctx, tt.jobs), multiply(3), pool.WithWorkerSize(tt.workerSize), pool.WithBufferSize(tt.bufferSize)) {
				require.NoError(t, res.Err)
				results = append(results, res.Val)
			}
			require.Len(t, results, tt.jobs)
			slices.Sort(results)
			for i, v := range results {
				require.Equal(t, i*3, v)
			}
		})
	}
}

func TestMapOrderPreserved(t *testing.T) {
	ctx := context.Background()
	slow := func(_ context.Context, in int) (int, error) {
		// later jobs finish first
		time.Sleep(time.Duration(10-in%10) * 100 * time.Microsecond)
		return in, nil
	}
	var i int
	for res := range pool.Map(ctx, gen(ctx, 200), slow, pool.WithWorkerSize(8), pool.WithOrderPreserved()) {
		require.NoError(t, res.Err)
		require.Equal(t, i, res.Val)
		i++
	}
	assert.Equal(t, 200, i)
}

func TestMapStopsOnFirstError(t *testing.T) {
	for _, ordered := range []bool{false, true} {
		t.Run(fmt.Sprintf("ordered=%v", ordered), func(t *testing.T) {
			ctx := context.Background()
			opts := []pool.Opt{pool.WithWorkerSize(4), pool.WithBufferSize(2)}
			if ordered {
				opts = append(opts, pool.WithOrderPreserved())
			}
			var errs []error
			var got []int
			for res := range pool.Map(ctx, gen(ctx, 1000), failOn(50), opts...) {
				if res.Err != nil {
					errs = append(errs, res.Err)
					continue
				}
				got = append(got, res.Val)
			}
			require.Len(t, errs, 1)
			require.ErrorIs(t, errs[0], errBoom)
			assert.Less(t, len(got), 1000)
			if ordered {
				assert.Equal(t, 50, len(got))
			}
		})
	}
}

func TestMapCancel(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		var got int
		for res := range pool.Map(ctx, gen(ctx, 100), multiply(1), pool.WithWorkerSize(3)) {
			require.NoError(t, res.Err)
			got++
			if got == 5 {
				cancel()
				synctest.Wait()
			}
		}
		assert.Less(t, got, 100)
	})
}

func TestMapNilChannel(t *testing.T) {
	out := pool.Map(context.Background(), nil, multiply(2))
	_, ok := <-out
	assert.False(t, ok)
}

func TestMapInvalidOptionsPanic(t *testing.T) {
	assert.Panics(t, func() {
		pool.Map(context.Background(), gen(context.Background(), 0), multiply(2), pool.WithWorkerSize(0))
	})
}

func TestChainOrderFIFO(t *testing.T) {
	ctx := context.Background()
	jobs := 100
	order := make(chan int, jobs*2)
	mw := pool.Chain(mwRecord[int, int](0, order), mwRecord[int, int](1, order))
	for range pool.Map(ctx, gen(ctx, jobs), mw(multiply(1))) {
	}
	close(order)
	i := 0
	for v := range order {
		assert.Equal(t, i%2, v)
		i++
	}
	assert.Equal(t, jobs*2, i)
}
