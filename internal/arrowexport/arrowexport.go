// Package arrowexport - writes batches as Arrow IPC streams.
//
// Every schema column becomes one Arrow field. Columns holding one value per
// record are primitive; vectors and var_len columns are lists. bytes map to binary.
package arrowexport

import (
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/jaredmtdev/shardfeed"
	"github.com/jaredmtdev/shardfeed/pkg/schema"
	"github.com/jaredmtdev/shardfeed/pkg/tensor"
)

// ErrUnsupported - a batch column cannot be expressed in the arrow schema.
var ErrUnsupported = errors.New("unsupported arrow column")

func elemType(d tensor.DType) (arrow.DataType, error) {
	switch d {
	case tensor.Int64:
		return arrow.PrimitiveTypes.Int64, nil
	case tensor.Float32:
		return arrow.PrimitiveTypes.Float32, nil
	case tensor.Bytes:
		return arrow.BinaryTypes.Binary, nil
	default:
		return nil, fmt.Errorf("%w. dtype: %v", ErrUnsupported, d)
	}
}

// Schema - the arrow schema of batches decoded against s. The label is the last field.
func Schema(s *schema.Schema) (*arrow.Schema, error) {
	cols := append(s.Features(), s.Label())
	fields := make([]arrow.Field, 0, len(cols))
	for _, col := range cols {
		typ, err := elemType(col.DType)
		if err != nil {
			return nil, err
		}
		if col.Kind == schema.VarLen || col.Size() != 1 {
			typ = arrow.ListOf(typ)
		}
		fields = append(fields, arrow.Field{Name: col.Name, Type: typ})
	}
	return arrow.NewSchema(fields, nil), nil
}

// Record - converts one batch. The caller releases the record.
func Record(mem memory.Allocator, as *arrow.Schema, b *shardfeed.Batch) (arrow.Record, error) {
	cols := make([]arrow.Array, 0, as.NumFields())
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	for _, f := range as.Fields() {
		t, ok := b.Features[f.Name]
		if f.Name == schema.LabelName {
			t, ok = b.Label, true
		}
		if !ok {
			return nil, fmt.Errorf("%w. missing column: %v", ErrUnsupported, f.Name)
		}
		col, err := column(mem, f, t, b.Size)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return array.NewRecord(as, cols, int64(b.Size)), nil
}

func column(mem memory.Allocator, f arrow.Field, t tensor.Tensor, rows int) (arrow.Array, error) {
	bld := array.NewBuilder(mem, f.Type)
	defer bld.Release()

	for i := range rows {
		row := t.Row(i)
		if lb, ok := bld.(*array.ListBuilder); ok {
			lb.Append(true)
			if err := appendValues(lb.ValueBuilder(), row); err != nil {
				return nil, fmt.Errorf("%w. column: %v", err, f.Name)
			}
			continue
		}
		if row.Len() != 1 {
			return nil, fmt.Errorf("%w. column: %v holds %v values per row", ErrUnsupported, f.Name, row.Len())
		}
		if err := appendValues(bld, row); err != nil {
			return nil, fmt.Errorf("%w. column: %v", err, f.Name)
		}
	}
	return bld.NewArray(), nil
}

func appendValues(b array.Builder, t tensor.Tensor) error {
	switch vb := b.(type) {
	case *array.Int64Builder:
		vb.AppendValues(t.Int64s, nil)
	case *array.Float32Builder:
		vb.AppendValues(t.Float32s, nil)
	case *array.BinaryBuilder:
		vb.AppendValues(t.Bytes, nil)
	default:
		return fmt.Errorf("%w. builder: %T", ErrUnsupported, b)
	}
	return nil
}

// Writer - streams batches to an Arrow IPC stream.
type Writer struct {
	mem    memory.Allocator
	schema *arrow.Schema
	ipc    *ipc.Writer
}

// NewWriter - starts a stream for batches decoded against s.
func NewWriter(w io.Writer, s *schema.Schema) (*Writer, error) {
	as, err := Schema(s)
	if err != nil {
		return nil, err
	}
	mem := memory.DefaultAllocator
	return &Writer{
		mem:    mem,
		schema: as,
		ipc:    ipc.NewWriter(w, ipc.WithSchema(as), ipc.WithAllocator(mem)),
	}, nil
}

// Write - appends one batch as a record batch.
func (w *Writer) Write(b *shardfeed.Batch) error {
	rec, err := Record(w.mem, w.schema, b)
	if err != nil {
		return err
	}
	defer rec.Release()
	return w.ipc.Write(rec)
}

// Close - ends the stream. Does not close the underlying writer.
func (w *Writer) Close() error {
	return w.ipc.Close()
}
