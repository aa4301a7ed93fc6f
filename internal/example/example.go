// Package example - wire codec for tf.Example protos.
//
//	Example   { Features features = 1; }
//	Features  { map<string, Feature> feature = 1; }
//	Feature   { oneof { BytesList bytes_list = 1; FloatList float_list = 2; Int64List int64_list = 3; } }
//	*List     { repeated value = 1; }
//
// Decoding walks the wire format directly so no generated code is needed.
package example

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed - the bytes are not a valid tf.Example.
var ErrMalformed = errors.New("malformed tf.Example")

// Kind - which list a feature holds.
type Kind int

// feature kinds, numbered like the proto oneof.
const (
	KindNone Kind = iota
	KindBytes
	KindFloat
	KindInt64
)

func (k Kind) String() string {
	switch k {
	case KindBytes:
		return "bytes_list"
	case KindFloat:
		return "float_list"
	case KindInt64:
		return "int64_list"
	}
	return "none"
}

// Feature - one named field of a record.
type Feature struct {
	Kind   Kind
	Bytes  [][]byte
	Floats []float32
	Int64s []int64
}

// Features - all fields of a record by name.
type Features map[string]Feature

func malformed(what string, n int) error {
	return fmt.Errorf("%w. %v: %v", ErrMalformed, what, protowire.ParseError(n))
}

// fields - calls fn for every field in b. fn returns how many bytes of the value it consumed.
func fields(b []byte, what string, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return malformed(what, n)
		}
		b = b[n:]
		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m < 0 {
			return malformed(what, m)
		}
		b = b[m:]
	}
	return nil
}

func skip(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	return protowire.ConsumeFieldValue(num, typ, b), nil
}

// Decode - parses a serialized tf.Example.
func Decode(b []byte) (Features, error) {
	out := Features{}
	err := fields(b, "example", func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 || typ != protowire.BytesType {
			return skip(num, typ, b)
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		return n, decodeFeatures(v, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodeFeatures(b []byte, out Features) error {
	return fields(b, "features", func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 || typ != protowire.BytesType {
			return skip(num, typ, b)
		}
		entry, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		var key string
		var value Feature
		err := fields(entry, "feature entry", func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			if typ != protowire.BytesType || (num != 1 && num != 2) {
				return skip(num, typ, b)
			}
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			if num == 1 {
				key = string(v)
				return n, nil
			}
			return n, decodeFeature(v, &value)
		})
		if err != nil {
			return n, err
		}
		out[key] = value
		return n, nil
	})
}

func decodeFeature(b []byte, f *Feature) error {
	return fields(b, "feature", func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		kind := Kind(num)
		if typ != protowire.BytesType || kind < KindBytes || kind > KindInt64 {
			return skip(num, typ, b)
		}
		list, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		if f.Kind != kind {
			*f = Feature{Kind: kind}
		}
		switch kind {
		case KindBytes:
			return n, decodeBytesList(list, f)
		case KindFloat:
			return n, decodeFloatList(list, f)
		default:
			return n, decodeInt64List(list, f)
		}
	})
}

func decodeBytesList(b []byte, f *Feature) error {
	return fields(b, "bytes_list", func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 || typ != protowire.BytesType {
			return skip(num, typ, b)
		}
		v, n := protowire.ConsumeBytes(b)
		if n >= 0 {
			f.Bytes = append(f.Bytes, slices.Clone(v))
		}
		return n, nil
	})
}

func decodeFloatList(b []byte, f *Feature) error {
	return fields(b, "float_list", func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return skip(num, typ, b)
		}
		switch typ {
		case protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			if n >= 0 {
				f.Floats = append(f.Floats, math.Float32frombits(v))
			}
			return n, nil
		case protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			for len(packed) > 0 {
				v, m := protowire.ConsumeFixed32(packed)
				if m < 0 {
					return 0, malformed("packed float_list", m)
				}
				f.Floats = append(f.Floats, math.Float32frombits(v))
				packed = packed[m:]
			}
			return n, nil
		}
		return skip(num, typ, b)
	})
}

func decodeInt64List(b []byte, f *Feature) error {
	return fields(b, "int64_list", func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return skip(num, typ, b)
		}
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n >= 0 {
				f.Int64s = append(f.Int64s, int64(v))
			}
			return n, nil
		case protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			for len(packed) > 0 {
				v, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return 0, malformed("packed int64_list", m)
				}
				f.Int64s = append(f.Int64s, int64(v))
				packed = packed[m:]
			}
			return n, nil
		}
		return skip(num, typ, b)
	})
}

// Encode - serializes features as a tf.Example. Keys are written in sorted order
// and numeric lists are packed.
func Encode(features Features) []byte {
	var fs []byte
	for _, key := range slices.Sorted(maps.Keys(features)) {
		var entry []byte
		entry = protowire.AppendTag(entry, 1, protowire.BytesType)
		entry = protowire.AppendString(entry, key)
		entry = protowire.AppendTag(entry, 2, protowire.BytesType)
		entry = protowire.AppendBytes(entry, encodeFeature(features[key]))

		fs = protowire.AppendTag(fs, 1, protowire.BytesType)
		fs = protowire.AppendBytes(fs, entry)
	}
	var out []byte
	out = protowire.AppendTag(out, 1, protowire.BytesType)
	return protowire.AppendBytes(out, fs)
}

func encodeFeature(f Feature) []byte {
	var list []byte
	switch f.Kind {
	case KindBytes:
		for _, v := range f.Bytes {
			list = protowire.AppendTag(list, 1, protowire.BytesType)
			list = protowire.AppendBytes(list, v)
		}
	case KindFloat:
		var packed []byte
		for _, v := range f.Floats {
			packed = protowire.AppendFixed32(packed, math.Float32bits(v))
		}
		if len(packed) > 0 {
			list = protowire.AppendTag(list, 1, protowire.BytesType)
			list = protowire.AppendBytes(list, packed)
		}
	case KindInt64:
		var packed []byte
		for _, v := range f.Int64s {
			packed = protowire.AppendVarint(packed, uint64(v))
		}
		if len(packed) > 0 {
			list = protowire.AppendTag(list, 1, protowire.BytesType)
			list = protowire.AppendBytes(list, packed)
		}
	default:
		return nil
	}
	var out []byte
	out = protowire.AppendTag(out, protowire.Number(f.Kind), protowire.BytesType)
	return protowire.AppendBytes(out, list)
}
