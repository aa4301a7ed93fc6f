package topology

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTopologyRole - the task role is not one of chief, worker or evaluator.
	ErrInvalidTopologyRole = errors.New("invalid topology role")
	// ErrMalformedTopology - the descriptor is not valid JSON or lacks required keys.
	ErrMalformedTopology = errors.New("malformed topology descriptor")
	// ErrInvalidAssignment - the computed shard index is outside [0, count).
	ErrInvalidAssignment = errors.New("shard index must be in [0, count)")
)

func newInvalidTopologyRoleError(role string) error {
	return fmt.Errorf("%w. role: %q", ErrInvalidTopologyRole, role)
}

func newMalformedTopologyError(reason string) error {
	return fmt.Errorf("%w. %v", ErrMalformedTopology, reason)
}

func newInvalidAssignmentError(a Assignment) error {
	return fmt.Errorf("%w. count: %v index: %v", ErrInvalidAssignment, a.Count, a.Index)
}
