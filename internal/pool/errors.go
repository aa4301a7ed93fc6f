package pool

import (
	"errors"
	"fmt"
)

var (
	errInvalidWorkerSize = errors.New("must use at least 1 worker")
	errInvalidBufferSize = errors.New("buffer must be at least 0")
)

func newInvalidWorkerSizeError(workerSize int) error {
	return fmt.Errorf("%w. workerSize: %v", errInvalidWorkerSize, workerSize)
}

func newInvalidBufferSizeError(bufferSize int) error {
	return fmt.Errorf("%w. bufferSize: %v", errInvalidBufferSize, bufferSize)
}
