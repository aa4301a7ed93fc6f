// Package synth - synthetic part files that match a schema.
package synth

import (
	"bufio"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/jaredmtdev/shardfeed/internal/example"
	"github.com/jaredmtdev/shardfeed/internal/tfrecord"
	"github.com/jaredmtdev/shardfeed/pkg/schema"
	"github.com/jaredmtdev/shardfeed/pkg/tensor"
)

// MaxVarLen - longest list generated for a var_len column.
const MaxVarLen = 5

// Record - one random record. Every column is present.
func Record(s *schema.Schema, rng *rand.Rand) example.Features {
	f := make(example.Features, len(s.Columns()))
	for _, col := range s.Columns() {
		n := col.Size()
		if col.Kind == schema.VarLen {
			n = rng.IntN(MaxVarLen + 1)
		}
		f[col.Name] = feature(col.DType, n, rng)
	}
	return f
}

func feature(d tensor.DType, n int, rng *rand.Rand) example.Feature {
	switch d {
	case tensor.Int64:
		v := make([]int64, n)
		for i := range v {
			v[i] = rng.Int64N(1000)
		}
		return example.Feature{Kind: example.KindInt64, Int64s: v}
	case tensor.Float32:
		v := make([]float32, n)
		for i := range v {
			v[i] = rng.Float32()
		}
		return example.Feature{Kind: example.KindFloat, Floats: v}
	default:
		v := make([][]byte, n)
		for i := range v {
			v[i] = fmt.Appendf(nil, "v%d", rng.IntN(100))
		}
		return example.Feature{Kind: example.KindBytes, Bytes: v}
	}
}

// WriteFile - writes n random records to path.
func WriteFile(path string, s *schema.Schema, n int, rng *rand.Rand) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	bw := bufio.NewWriter(f)
	w := tfrecord.NewWriter(bw)
	for range n {
		if err := w.Write(example.Encode(Record(s, rng))); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteDir - writes files part files of perFile records each to dir.
// Returns the paths written.
func WriteDir(dir string, s *schema.Schema, files, perFile int, seed uint64) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	paths := make([]string, files)
	for i := range files {
		paths[i] = filepath.Join(dir, fmt.Sprintf("part-%05d", i))
		rng := rand.New(rand.NewPCG(seed, uint64(i)))
		if err := WriteFile(paths[i], s, perFile, rng); err != nil {
			return nil, err
		}
	}
	return paths, nil
}
