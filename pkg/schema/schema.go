// Package schema - the ordered feature columns a record is decoded against.
package schema

import (
	"fmt"
	"os"
	"slices"

	"github.com/jaredmtdev/shardfeed/pkg/tensor"
	"gopkg.in/yaml.v3"
)

// LabelName - reserved column holding the training label.
const LabelName = "label"

// Kind - how a column is decoded.
type Kind string

// column kinds.
const (
	// Fixed - exactly Size() values per record, missing fields take Default.
	Fixed Kind = "fixed"
	// VarLen - any number of values per record, batched as a ragged tensor.
	VarLen Kind = "var_len"
)

// Column - decoding rule for one named field.
type Column struct {
	Name  string
	Kind  Kind
	DType tensor.DType
	// Shape of a fixed column per record. Empty means scalar.
	Shape []int
	// Default for a fixed column. Nil makes the field required.
	// A single value is broadcast to the whole shape.
	Default *Value
}

// Size - number of values a fixed column holds per record.
func (c Column) Size() int {
	n := 1
	for _, d := range c.Shape {
		n *= d
	}
	return n
}

// UnmarshalYAML - decodes `{name, kind, dtype, shape, default}`.
func (c *Column) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Name    string       `yaml:"name"`
		Kind    Kind         `yaml:"kind"`
		DType   tensor.DType `yaml:"dtype"`
		Shape   []int        `yaml:"shape"`
		Default any          `yaml:"default"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	def, err := toValue(raw.DType, raw.Default)
	if err != nil {
		return newInvalidColumnError(raw.Name, err.Error())
	}
	*c = Column{Name: raw.Name, Kind: raw.Kind, DType: raw.DType, Shape: raw.Shape, Default: def}
	return nil
}

func (c Column) validate() error {
	if c.Name == "" {
		return newInvalidColumnError(c.Name, "name is empty")
	}
	if !c.DType.Valid() {
		return newInvalidColumnError(c.Name, fmt.Sprintf("unknown dtype %q", c.DType))
	}
	switch c.Kind {
	case Fixed:
		for _, d := range c.Shape {
			if d <= 0 {
				return newInvalidColumnError(c.Name, fmt.Sprintf("shape %v must be positive", c.Shape))
			}
		}
		if c.Default != nil {
			n := c.Default.Len(c.DType)
			if n != 1 && n != c.Size() {
				return newInvalidColumnError(c.Name, fmt.Sprintf("default has %v values, want 1 or %v", n, c.Size()))
			}
		}
	case VarLen:
		if len(c.Shape) > 0 || c.Default != nil {
			return newInvalidColumnError(c.Name, "var_len columns take no shape or default")
		}
	default:
		return newInvalidColumnError(c.Name, fmt.Sprintf("unknown kind %q", c.Kind))
	}
	return nil
}

// Provider - supplies ordered column specs.
type Provider interface {
	Columns() []Column
}

// Schema - validated, immutable set of columns.
type Schema struct {
	columns []Column
	index   map[string]int
}

// New - validates cols and builds a Schema. Exactly one column must be named LabelName.
func New(cols ...Column) (*Schema, error) {
	s := &Schema{
		columns: slices.Clone(cols),
		index:   make(map[string]int, len(cols)),
	}
	for i, c := range s.columns {
		if err := c.validate(); err != nil {
			return nil, err
		}
		if _, dup := s.index[c.Name]; dup {
			return nil, newInvalidColumnError(c.Name, "declared twice")
		}
		s.index[c.Name] = i
	}
	if _, ok := s.index[LabelName]; !ok {
		return nil, ErrMissingLabelColumn
	}
	return s, nil
}

// FromProvider - builds a Schema from any provider.
func FromProvider(p Provider) (*Schema, error) {
	if s, ok := p.(*Schema); ok {
		return s, nil
	}
	return New(p.Columns()...)
}

// Columns - all columns in declaration order.
func (s *Schema) Columns() []Column {
	return slices.Clone(s.columns)
}

// Column - looks up a column by name.
func (s *Schema) Column(name string) (Column, bool) {
	i, ok := s.index[name]
	if !ok {
		return Column{}, false
	}
	return s.columns[i], true
}

// Label - the label column.
func (s *Schema) Label() Column {
	return s.columns[s.index[LabelName]]
}

// Features - every column except the label, in declaration order.
func (s *Schema) Features() []Column {
	out := make([]Column, 0, len(s.columns)-1)
	for _, c := range s.columns {
		if c.Name != LabelName {
			out = append(out, c)
		}
	}
	return out
}

type document struct {
	Columns []Column `yaml:"columns"`
}

// Parse - reads a schema from yaml.
func Parse(data []byte) (*Schema, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("schema: parse: %w", err)
	}
	return New(doc.Columns...)
}

// LoadFile - reads a schema from a yaml file.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: read %v: %w", path, err)
	}
	return Parse(data)
}
