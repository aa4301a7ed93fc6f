// Package pool - bounded worker pool used by the decode stage.
//
// Unlike a plain fan-out, a handler error is fatal: it is delivered as the
// last Result and the pool stops taking input.
package pool

import (
	"context"
	"sync"
)

// HandlerFunc - processes one job.
type HandlerFunc[IN any, OUT any] func(ctx context.Context, in IN) (OUT, error)

// Result - output of one job. A non-nil Err is always the final Result.
type Result[T any] struct {
	Val T
	Err error
}

// workerOpts - configures behavior of Map.
type workerOpts struct {
	workerSize     int
	bufferSize     int
	orderPreserved bool
}

func (wo *workerOpts) validate() error {
	if wo.workerSize <= 0 {
		return newInvalidWorkerSizeError(wo.workerSize)
	}
	if wo.bufferSize < 0 {
		return newInvalidBufferSizeError(wo.bufferSize)
	}
	return nil
}

// Opt - options used to configure Map.
type Opt func(w *workerOpts)

// WithWorkerSize - set the number of concurrent workers.
//
// Uses 1 by default.
func WithWorkerSize(workerSize int) Opt {
	return func(w *workerOpts) {
		w.workerSize = workerSize
	}
}

// WithBufferSize - set buffer size for the internal and output channels.
//
// Uses unbuffered channels by default.
func WithBufferSize(bufferSize int) Opt {
	return func(w *workerOpts) {
		w.bufferSize = bufferSize
	}
}

// WithOrderPreserved - results leave in the order jobs arrived.
// Workers keep running while a result waits for its predecessors.
func WithOrderPreserved() Opt {
	return func(w *workerOpts) {
		w.orderPreserved = true
	}
}

func newWorkerOpts(opts []Opt) *workerOpts {
	wo := &workerOpts{workerSize: 1}
	for _, opt := range opts {
		opt(wo)
	}
	return wo
}

// job - wraps a value with its arrival index.
type job[T any] struct {
	index uint64
	val   T
	err   error
}

type station[IN, OUT any] struct {
	*workerOpts

	queue    chan job[IN]
	done     chan job[OUT]
	out      chan Result[OUT]
	handler  HandlerFunc[IN, OUT]
	cancel   context.CancelFunc
	wgWorker sync.WaitGroup
}

// runEnqueuer - indexes input and feeds the queue until in closes or ctx ends.
func (s *station[IN, OUT]) runEnqueuer(ctx context.Context, in <-chan IN) {
	defer close(s.queue)
	var index uint64
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-in:
			if !ok {
				return
			}
			select {
			case <-ctx.Done():
				return
			case s.queue <- job[IN]{index: index, val: v}:
				index++
			}
		}
	}
}

// startWorker - runs the handler on queued jobs. After cancellation the queue is drained unprocessed.
func (s *station[IN, OUT]) startWorker(ctx context.Context) {
	for j := range s.queue {
		if ctx.Err() != nil {
			continue
		}
		val, err := s.handler(ctx, j.val)
		select {
		case <-ctx.Done():
		case s.done <- job[OUT]{index: j.index, val: val, err: err}:
		}
	}
}

// send - forwards one result. Returns false once nothing more may be sent.
func (s *station[IN, OUT]) send(ctx context.Context, j job[OUT]) bool {
	select {
	case <-ctx.Done():
		return false
	case s.out <- Result[OUT]{Val: j.val, Err: j.err}:
	}
	if j.err != nil {
		s.cancel()
		return false
	}
	return true
}

// collect - forwards results to out, reordering them when requested.
// Keeps draining done after a failure so workers can exit.
func (s *station[IN, OUT]) collect(ctx context.Context) {
	defer close(s.out)
	var next uint64
	pending := map[uint64]job[OUT]{}
	stopped := false
	for j := range s.done {
		if stopped {
			continue
		}
		if !s.orderPreserved {
			stopped = !s.send(ctx, j)
			continue
		}
		pending[j.index] = j
		for jo, ok := pending[next]; ok; jo, ok = pending[next] {
			delete(pending, next)
			next++
			if !s.send(ctx, jo) {
				stopped = true
				break
			}
		}
	}
}

// Map starts workers that read jobs from `in`, process them with handler
// and forward results to the returned channel.
//
// Lifecycle:
//   - When `in` is closed and all jobs are processed, out is closed.
//   - The first handler error is sent as the last Result, then the pool stops reading `in`.
//   - If ctx is canceled, workers stop early and out is closed once they exit.
//   - out MUST be drained (or ctx canceled) to release the workers.
//
// Invalid options panic.
func Map[IN any, OUT any](
	ctx context.Context,
	in <-chan IN,
	handler HandlerFunc[IN, OUT],
	opts ...Opt,
) <-chan Result[OUT] {
	s := &station[IN, OUT]{
		workerOpts: newWorkerOpts(opts),
		handler:    handler,
	}
	if err := s.validate(); err != nil {
		panic(err.Error())
	}
	s.out = make(chan Result[OUT], s.bufferSize)
	if in == nil {
		close(s.out)
		return s.out
	}
	s.queue = make(chan job[IN], s.bufferSize)
	s.done = make(chan job[OUT], s.bufferSize)

	ctx, s.cancel = context.WithCancel(ctx)
	go s.runEnqueuer(ctx, in)
	for range s.workerSize {
		s.wgWorker.Go(func() {
			s.startWorker(ctx)
		})
	}
	go func() {
		s.wgWorker.Wait()
		close(s.done)
	}()
	go func() {
		defer s.cancel()
		s.collect(ctx)
	}()
	return s.out
}
