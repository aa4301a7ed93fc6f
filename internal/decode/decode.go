// Package decode - schema-directed decoding of tf.Example records and batch assembly.
package decode

import (
	"errors"
	"fmt"
	"slices"

	"github.com/jaredmtdev/shardfeed/internal/example"
	"github.com/jaredmtdev/shardfeed/pkg/schema"
	"github.com/jaredmtdev/shardfeed/pkg/tensor"
)

var (
	// ErrRecordDecode - a record does not match the schema or is not a valid tf.Example.
	ErrRecordDecode = errors.New("record decode failed")
	// ErrMissingLabel - a record has no label field.
	ErrMissingLabel = errors.New("record has no label")
)

func newRecordDecodeError(column string, reason any) error {
	return fmt.Errorf("%w. column: %q %v", ErrRecordDecode, column, reason)
}

// Record - one decoded example. The label is held apart from the features.
type Record struct {
	Features map[string]schema.Value
	Label    schema.Value
}

// Decoder - decodes records against a schema. Safe for concurrent use.
type Decoder struct {
	schema *schema.Schema
}

// New - creates a Decoder for s.
func New(s *schema.Schema) *Decoder {
	return &Decoder{schema: s}
}

var kinds = map[tensor.DType]example.Kind{
	tensor.Int64:   example.KindInt64,
	tensor.Float32: example.KindFloat,
	tensor.Bytes:   example.KindBytes,
}

// Decode - parses raw and applies every column rule.
func (d *Decoder) Decode(raw []byte) (Record, error) {
	feats, err := example.Decode(raw)
	if err != nil {
		return Record{}, fmt.Errorf("%w. %w", ErrRecordDecode, err)
	}
	rec := Record{Features: make(map[string]schema.Value, len(feats))}
	for _, col := range d.schema.Columns() {
		f, ok := feats[col.Name]
		if !ok && col.Name == schema.LabelName {
			return Record{}, ErrMissingLabel
		}
		v, err := value(col, f, ok)
		if err != nil {
			return Record{}, err
		}
		if col.Name == schema.LabelName {
			rec.Label = v
		} else {
			rec.Features[col.Name] = v
		}
	}
	return rec, nil
}

func value(col schema.Column, f example.Feature, present bool) (schema.Value, error) {
	if present && f.Kind != example.KindNone && f.Kind != kinds[col.DType] {
		return schema.Value{}, newRecordDecodeError(col.Name, fmt.Sprintf("has %v, want %v", f.Kind, col.DType))
	}
	v := schema.Value{Int64s: f.Int64s, Float32s: f.Floats, Bytes: f.Bytes}
	if col.Kind == schema.VarLen {
		return v, nil
	}

	n := v.Len(col.DType)
	if n == 0 {
		if col.Default == nil {
			return schema.Value{}, newRecordDecodeError(col.Name, "is required but missing")
		}
		return broadcast(*col.Default, col.DType, col.Size()), nil
	}
	if n != col.Size() {
		return schema.Value{}, newRecordDecodeError(col.Name, fmt.Sprintf("has %v values, want %v", n, col.Size()))
	}
	return v, nil
}

// broadcast - repeats a single default value to size.
func broadcast(v schema.Value, d tensor.DType, size int) schema.Value {
	if v.Len(d) != 1 {
		return v
	}
	switch d {
	case tensor.Int64:
		return schema.Value{Int64s: slices.Repeat(v.Int64s, size)}
	case tensor.Float32:
		return schema.Value{Float32s: slices.Repeat(v.Float32s, size)}
	default:
		return schema.Value{Bytes: slices.Repeat(v.Bytes, size)}
	}
}

// Stack - combines one column of n records into a tensor:
// [n, shape...] for fixed columns, ragged [n, -1] for var_len columns.
func Stack(col schema.Column, values []schema.Value) tensor.Tensor {
	t := tensor.Tensor{DType: col.DType}
	if col.Kind == schema.Fixed {
		t.Shape = append([]int{len(values)}, col.Shape...)
	} else {
		t.Shape = []int{len(values), tensor.RaggedDim}
		t.RowSplits = make([]int, 1, len(values)+1)
	}
	for _, v := range values {
		t.Int64s = append(t.Int64s, v.Int64s...)
		t.Float32s = append(t.Float32s, v.Float32s...)
		t.Bytes = append(t.Bytes, v.Bytes...)
		if t.RowSplits != nil {
			t.RowSplits = append(t.RowSplits, t.Len())
		}
	}
	return t
}

// Assemble - stacks records into feature tensors and a dense label.
// A rank-1 label gets a trailing axis so scalar labels come out as [n, 1].
func (d *Decoder) Assemble(records []Record) (map[string]tensor.Tensor, tensor.Tensor) {
	features := make(map[string]tensor.Tensor, len(d.schema.Features()))
	values := make([]schema.Value, len(records))
	for _, col := range d.schema.Features() {
		for i, rec := range records {
			values[i] = rec.Features[col.Name]
		}
		features[col.Name] = Stack(col, values)
	}

	for i, rec := range records {
		values[i] = rec.Label
	}
	label := Stack(d.schema.Label(), values).ToDense()
	if label.Rank() == 1 {
		label = label.ExpandDims()
	}
	return features, label
}
