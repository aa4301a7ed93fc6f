package shardfeed

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"testing"
	"testing/synctest"
	"time"

	"github.com/jaredmtdev/shardfeed/internal/decode"
	"github.com/jaredmtdev/shardfeed/internal/pool"
	"github.com/jaredmtdev/shardfeed/pkg/schema"
	"github.com/jaredmtdev/shardfeed/pkg/tensor"
	"github.com/jaredmtdev/shardfeed/pkg/topology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionValidation(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Opt
		wantErr error
	}{
		{name: "defaults"},
		{name: "read buffer", opts: []Opt{WithReadBufferSize(0)}, wantErr: errInvalidReadBufferSize},
		{name: "shuffle factor", opts: []Opt{WithShuffleFactor(-1)}, wantErr: errInvalidShuffleFactor},
		{name: "no shuffle", opts: []Opt{WithShuffleFactor(0)}},
		{name: "parse workers", opts: []Opt{WithParseWorkers(0)}, wantErr: errInvalidParseWorkers},
		{name: "prefetch", opts: []Opt{WithPrefetch(-1)}, wantErr: errInvalidPrefetch},
		{name: "no prefetch", opts: []Opt{WithPrefetch(0)}},
		{name: "cycle length", opts: []Opt{WithCycleLength(0)}, wantErr: errInvalidCycleLength},
		{name: "pattern", opts: []Opt{WithFilePattern("part-[")}, wantErr: errInvalidFilePattern},
		{name: "assignment", opts: []Opt{WithAssignment(topology.Assignment{Count: 2, Index: 2})}, wantErr: topology.ErrInvalidAssignment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newLoaderOpts(tt.opts).validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDefaults(t *testing.T) {
	lo := newLoaderOpts(nil)
	assert.Equal(t, DefaultFilePattern, lo.pattern)
	assert.Equal(t, 256<<20, lo.readBufferSize)
	assert.Equal(t, 10, lo.shuffleFactor)
	assert.Equal(t, 8, lo.parseWorkers)
	assert.Equal(t, 10, lo.prefetch)
	assert.Equal(t, 1, lo.cycleLength)
	assert.False(t, lo.dropRemainder)
	assert.True(t, lo.verify)
	assert.NotNil(t, lo.logger)
	assert.NotNil(t, lo.partitioner)
}

func source(ctx context.Context, n int, err error) <-chan pool.Result[int] {
	out := make(chan pool.Result[int])
	go func() {
		defer close(out)
		for i := range n {
			select {
			case <-ctx.Done():
				return
			case out <- pool.Result[int]{Val: i}:
			}
		}
		if err != nil {
			select {
			case <-ctx.Done():
			case out <- pool.Result[int]{Err: err}:
			}
		}
	}()
	return out
}

func TestShuffleIsPermutation(t *testing.T) {
	ctx := context.Background()
	for _, size := range []int{2, 10, 100, 1000} {
		var got []int
		for r := range shuffle(ctx, source(ctx, 300, nil), size, rand.New(rand.NewPCG(1, uint64(size)))) {
			require.NoError(t, r.Err)
			got = append(got, r.Val)
		}
		assert.NotEqual(t, slices.Sorted(slices.Values(got)), got, size)
		slices.Sort(got)
		for i, v := range got {
			require.Equal(t, i, v)
		}
	}
}

func TestShuffleWithinWindow(t *testing.T) {
	// a record cannot leave before the window has filled past it
	ctx := context.Background()
	const size = 5
	pos := 0
	for r := range shuffle(ctx, source(ctx, 100, nil), size, rand.New(rand.NewPCG(3, 4))) {
		assert.LessOrEqual(t, r.Val, pos+size)
		pos++
	}
}

func TestShuffleSameSeedSameOrder(t *testing.T) {
	ctx := context.Background()
	run := func() []int {
		var got []int
		for r := range shuffle(ctx, source(ctx, 50, nil), 8, rand.New(rand.NewPCG(9, 9))) {
			got = append(got, r.Val)
		}
		return got
	}
	assert.Equal(t, run(), run())
}

func TestShufflePassesErrorAndStops(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	var vals int
	var errs []error
	for r := range shuffle(ctx, source(ctx, 3, boom), 10, rand.New(rand.NewPCG(1, 1))) {
		if r.Err != nil {
			errs = append(errs, r.Err)
			continue
		}
		vals++
	}
	// records still in the reservoir are dropped
	assert.Zero(t, vals)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], boom)
}

func TestShuffleExitsOnCancel(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		out := shuffle(ctx, source(ctx, 1000, nil), 4, rand.New(rand.NewPCG(1, 1)))
		<-out
		cancel()

		done := make(chan struct{})
		go func() {
			for range out {
			}
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Millisecond):
			t.Fatal("shuffle did not exit on cancel")
		}
	})
}

func testEpoch(t *testing.T, batchSize int, opts ...Opt) *epoch {
	t.Helper()
	s, err := schema.New(schema.Column{Name: schema.LabelName, Kind: schema.Fixed, DType: tensor.Int64})
	require.NoError(t, err)
	lo := newLoaderOpts(opts)
	return &epoch{Dataset: &Dataset{loaderOpts: lo, decoder: decode.New(s), batchSize: batchSize}, logger: lo.logger}
}

func records(ctx context.Context, n int, err error) <-chan pool.Result[decode.Record] {
	out := make(chan pool.Result[decode.Record])
	go func() {
		defer close(out)
		for i := range n {
			rec := decode.Record{Label: schema.Value{Int64s: []int64{int64(i)}}}
			select {
			case <-ctx.Done():
				return
			case out <- pool.Result[decode.Record]{Val: rec}:
			}
		}
		if err != nil {
			select {
			case <-ctx.Done():
			case out <- pool.Result[decode.Record]{Err: err}:
			}
		}
	}()
	return out
}

func TestBatchStage(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		size  int
		drop  bool
		sizes []int
	}{
		{name: "partial kept", n: 13, size: 5, sizes: []int{5, 5, 3}},
		{name: "partial dropped", n: 13, size: 5, drop: true, sizes: []int{5, 5}},
		{name: "exact", n: 10, size: 5, sizes: []int{5, 5}},
		{name: "smaller than batch", n: 2, size: 5, sizes: []int{2}},
		{name: "smaller than batch dropped", n: 2, size: 5, drop: true},
		{name: "empty", n: 0, size: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			e := testEpoch(t, tt.size, WithDropRemainder(tt.drop))
			var sizes []int
			var labels []int64
			for r := range e.batch(ctx, records(ctx, tt.n, nil)) {
				require.NoError(t, r.Err)
				sizes = append(sizes, r.Val.Size)
				assert.Equal(t, []int{r.Val.Size, 1}, r.Val.Label.Shape)
				labels = append(labels, r.Val.Label.Int64s...)
			}
			assert.Equal(t, tt.sizes, sizes)
			for i, l := range labels {
				assert.Equal(t, int64(i), l)
			}
			assert.Equal(t, int64(len(sizes)), e.batches.Load())
		})
	}
}

func TestBatchStageForwardsErrorWithoutPartial(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	e := testEpoch(t, 4)
	var got []pool.Result[*Batch]
	for r := range e.batch(ctx, records(ctx, 6, boom)) {
		got = append(got, r)
	}
	require.Len(t, got, 2)
	assert.Equal(t, 4, got[0].Val.Size)
	assert.ErrorIs(t, got[1].Err, boom)
}

func TestBatchStagePrefetches(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		e := testEpoch(t, 2, WithPrefetch(3))

		out := e.batch(ctx, records(ctx, 100, nil))
		synctest.Wait()
		assert.Equal(t, 3, len(out))
		cancel()
		for range out {
		}
	})
}
