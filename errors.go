package shardfeed

import (
	"errors"
	"fmt"

	"github.com/jaredmtdev/shardfeed/internal/decode"
	"github.com/jaredmtdev/shardfeed/pkg/topology"
)

var (
	// ErrRecordDecode - a record does not match the schema.
	ErrRecordDecode = decode.ErrRecordDecode
	// ErrMissingLabel - a record has no label field.
	ErrMissingLabel = decode.ErrMissingLabel
	// ErrInvalidTopologyRole - TF_CONFIG names a role that reads no shard.
	ErrInvalidTopologyRole = topology.ErrInvalidTopologyRole
	// ErrInvalidBatchSize - batch size is negative.
	ErrInvalidBatchSize = errors.New("batch size must not be negative")

	errInvalidReadBufferSize = errors.New("read buffer must be at least 1 byte")
	errInvalidShuffleFactor  = errors.New("shuffle factor must be at least 0")
	errInvalidParseWorkers   = errors.New("must use at least 1 parse worker")
	errInvalidPrefetch       = errors.New("prefetch must be at least 0")
	errInvalidCycleLength    = errors.New("must read at least 1 file at a time")
	errInvalidFilePattern    = errors.New("invalid file pattern")
	errMissingDirectory      = errors.New("directory is required")
)

func newInvalidBatchSizeError(batchSize int) error {
	return fmt.Errorf("%w. batchSize: %v", ErrInvalidBatchSize, batchSize)
}

func newInvalidReadBufferSizeError(size int) error {
	return fmt.Errorf("%w. readBufferSize: %v", errInvalidReadBufferSize, size)
}

func newInvalidShuffleFactorError(factor int) error {
	return fmt.Errorf("%w. shuffleFactor: %v", errInvalidShuffleFactor, factor)
}

func newInvalidParseWorkersError(workers int) error {
	return fmt.Errorf("%w. parseWorkers: %v", errInvalidParseWorkers, workers)
}

func newInvalidPrefetchError(prefetch int) error {
	return fmt.Errorf("%w. prefetch: %v", errInvalidPrefetch, prefetch)
}

func newInvalidCycleLengthError(cycleLength int) error {
	return fmt.Errorf("%w. cycleLength: %v", errInvalidCycleLength, cycleLength)
}

func newInvalidFilePatternError(pattern string, err error) error {
	return fmt.Errorf("%w. pattern: %q %w", errInvalidFilePattern, pattern, err)
}

// inFile - adds the file name to an error from one of its stages.
func inFile(err error, name string) error {
	return fmt.Errorf("%w. file: %v", err, name)
}
