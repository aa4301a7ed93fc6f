package shardfeed_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jaredmtdev/shardfeed"
	"github.com/jaredmtdev/shardfeed/internal/example"
	"github.com/jaredmtdev/shardfeed/internal/tfrecord"
	"github.com/jaredmtdev/shardfeed/pkg/schema"
	"github.com/jaredmtdev/shardfeed/pkg/tensor"
	"github.com/stretchr/testify/require"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New(
		schema.Column{Name: schema.LabelName, Kind: schema.VarLen, DType: tensor.Int64},
		schema.Column{Name: "id", Kind: schema.Fixed, DType: tensor.Int64},
		schema.Column{Name: "item.cate_ids", Kind: schema.VarLen, DType: tensor.Int64},
		schema.Column{Name: "user.age", Kind: schema.Fixed, DType: tensor.Float32, Default: &schema.Value{Float32s: []float32{0}}},
	)
	require.NoError(t, err)
	return s
}

// record - a valid record with a unique id.
func record(id int64) example.Features {
	return example.Features{
		schema.LabelName: {Kind: example.KindInt64, Int64s: []int64{7}},
		"id":             {Kind: example.KindInt64, Int64s: []int64{id}},
		"item.cate_ids":  {Kind: example.KindInt64, Int64s: make([]int64, id%3)},
	}
}

// writeShard - writes records to dir/name as a TFRecord file.
func writeShard(t *testing.T, dir, name string, records ...example.Features) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	defer f.Close()
	w := tfrecord.NewWriter(f)
	for _, r := range records {
		require.NoError(t, w.Write(example.Encode(r)))
	}
}

// writeShards - writes files part-00000.. each holding perFile records with ids
// file*1000 + i. Returns every id written.
func writeShards(t *testing.T, dir string, files, perFile int) []int64 {
	t.Helper()
	var ids []int64
	for f := range files {
		var recs []example.Features
		for i := range perFile {
			id := int64(f*1000 + i)
			ids = append(ids, id)
			recs = append(recs, record(id))
		}
		writeShard(t, dir, fmt.Sprintf("part-%05d", f), recs...)
	}
	return ids
}

// load - a dataset over dir with small buffers and a fixed seed.
func load(t *testing.T, dir string, batchSize int, opts ...shardfeed.Opt) *shardfeed.Dataset {
	t.Helper()
	base := []shardfeed.Opt{
		shardfeed.WithAssignment(singleShard),
		shardfeed.WithReadBufferSize(64 << 10),
		shardfeed.WithSeed(42),
	}
	l, err := shardfeed.New(testSchema(t), append(base, opts...)...)
	require.NoError(t, err)
	ds, err := l.Load(dir, batchSize)
	require.NoError(t, err)
	return ds
}

// collect - consumes one epoch. Returns the batches and the final error.
func collect(ctx context.Context, ds *shardfeed.Dataset) ([]*shardfeed.Batch, error) {
	var batches []*shardfeed.Batch
	for b, err := range ds.Batches(ctx) {
		if err != nil {
			return batches, err
		}
		batches = append(batches, b)
	}
	return batches, nil
}

func sizes(batches []*shardfeed.Batch) []int {
	out := make([]int, len(batches))
	for i, b := range batches {
		out[i] = b.Size
	}
	return out
}

func ids(batches []*shardfeed.Batch) []int64 {
	var out []int64
	for _, b := range batches {
		out = append(out, b.Features["id"].Int64s...)
	}
	return out
}
