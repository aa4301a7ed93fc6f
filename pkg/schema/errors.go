package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidColumn - a column definition cannot be decoded against.
	ErrInvalidColumn = errors.New("invalid column")
	// ErrMissingLabelColumn - the schema has no label column.
	ErrMissingLabelColumn = errors.New("schema must declare a label column")
)

func newInvalidColumnError(name, reason string) error {
	return fmt.Errorf("%w. column: %q %v", ErrInvalidColumn, name, reason)
}
