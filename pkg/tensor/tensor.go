// Package tensor - minimal typed tensors handed to the training loop.
//
// A Tensor is dense when RowSplits is nil. A ragged tensor has shape
// [rows, -1]: row i holds values[RowSplits[i]:RowSplits[i+1]].
package tensor

import (
	"fmt"
	"slices"
)

// DType - element type.
type DType string

// supported element types.
const (
	Int64   DType = "int64"
	Float32 DType = "float32"
	Bytes   DType = "bytes"
)

// Valid - reports whether d is a supported element type.
func (d DType) Valid() bool {
	switch d {
	case Int64, Float32, Bytes:
		return true
	}
	return false
}

// RaggedDim - marks the variable-length axis in Shape.
const RaggedDim = -1

// Tensor - typed values plus shape. Only the slice matching DType is set.
type Tensor struct {
	DType     DType
	Shape     []int
	Int64s    []int64
	Float32s  []float32
	Bytes     [][]byte
	RowSplits []int
}

// IsRagged - reports whether t has a variable-length inner axis.
func (t Tensor) IsRagged() bool {
	return t.RowSplits != nil
}

// Rank - number of axes.
func (t Tensor) Rank() int {
	return len(t.Shape)
}

// Rows - size of the outer axis.
func (t Tensor) Rows() int {
	if len(t.Shape) == 0 {
		return 0
	}
	return t.Shape[0]
}

// Len - number of stored values.
func (t Tensor) Len() int {
	switch t.DType {
	case Int64:
		return len(t.Int64s)
	case Float32:
		return len(t.Float32s)
	case Bytes:
		return len(t.Bytes)
	}
	return 0
}

func (t Tensor) String() string {
	return fmt.Sprintf("tensor(%v, shape=%v)", t.DType, t.Shape)
}

// rowBounds - value range of row i.
func (t Tensor) rowBounds(i int) (int, int) {
	if t.IsRagged() {
		return t.RowSplits[i], t.RowSplits[i+1]
	}
	width := 1
	for _, d := range t.Shape[1:] {
		width *= d
	}
	return i * width, (i + 1) * width
}

// Row - values of row i as a tensor of rank-1 lower.
func (t Tensor) Row(i int) Tensor {
	lo, hi := t.rowBounds(i)
	out := Tensor{DType: t.DType}
	if t.IsRagged() {
		out.Shape = []int{hi - lo}
	} else {
		out.Shape = slices.Clone(t.Shape[1:])
	}
	switch t.DType {
	case Int64:
		out.Int64s = t.Int64s[lo:hi]
	case Float32:
		out.Float32s = t.Float32s[lo:hi]
	case Bytes:
		out.Bytes = t.Bytes[lo:hi]
	}
	return out
}

// ToDense - pads every row of a ragged tensor with the zero value up to the longest row.
// Dense tensors are returned unchanged.
func (t Tensor) ToDense() Tensor {
	if !t.IsRagged() {
		return t
	}
	rows := len(t.RowSplits) - 1
	width := 0
	for i := range rows {
		width = max(width, t.RowSplits[i+1]-t.RowSplits[i])
	}
	out := Tensor{DType: t.DType, Shape: []int{rows, width}}
	switch t.DType {
	case Int64:
		out.Int64s = pad(t.Int64s, t.RowSplits, width)
	case Float32:
		out.Float32s = pad(t.Float32s, t.RowSplits, width)
	case Bytes:
		out.Bytes = pad(t.Bytes, t.RowSplits, width)
	}
	return out
}

func pad[T any](values []T, splits []int, width int) []T {
	rows := len(splits) - 1
	out := make([]T, rows*width)
	for i := range rows {
		copy(out[i*width:], values[splits[i]:splits[i+1]])
	}
	return out
}

// ExpandDims - appends a trailing axis of size 1. Ragged tensors are densified first.
func (t Tensor) ExpandDims() Tensor {
	t = t.ToDense()
	t.Shape = append(slices.Clone(t.Shape), 1)
	return t
}
