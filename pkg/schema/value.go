package schema

import (
	"fmt"

	"github.com/jaredmtdev/shardfeed/pkg/tensor"
)

// Value - the values of one field in one record. Only the slice matching the column dtype is used.
type Value struct {
	Int64s   []int64
	Float32s []float32
	Bytes    [][]byte
}

// Len - number of values for dtype d.
func (v Value) Len(d tensor.DType) int {
	switch d {
	case tensor.Int64:
		return len(v.Int64s)
	case tensor.Float32:
		return len(v.Float32s)
	case tensor.Bytes:
		return len(v.Bytes)
	}
	return 0
}

// toValue - converts loosely typed defaults (as produced by yaml) into a Value of dtype d.
func toValue(d tensor.DType, raw any) (*Value, error) {
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		items = []any{raw}
	}
	v := &Value{}
	for _, item := range items {
		switch d {
		case tensor.Int64:
			switch n := item.(type) {
			case int:
				v.Int64s = append(v.Int64s, int64(n))
			case int64:
				v.Int64s = append(v.Int64s, n)
			default:
				return nil, fmt.Errorf("default %v is not an int64", item)
			}
		case tensor.Float32:
			switch n := item.(type) {
			case int:
				v.Float32s = append(v.Float32s, float32(n))
			case float64:
				v.Float32s = append(v.Float32s, float32(n))
			case float32:
				v.Float32s = append(v.Float32s, n)
			default:
				return nil, fmt.Errorf("default %v is not a float32", item)
			}
		case tensor.Bytes:
			switch s := item.(type) {
			case string:
				v.Bytes = append(v.Bytes, []byte(s))
			case []byte:
				v.Bytes = append(v.Bytes, s)
			default:
				return nil, fmt.Errorf("default %v is not bytes", item)
			}
		default:
			return nil, fmt.Errorf("unsupported dtype %q", d)
		}
	}
	return v, nil
}
