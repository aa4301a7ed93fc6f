//go:build clusterfuzzlite
// +build clusterfuzzlite

package fuzzpool

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jaredmtdev/shardfeed/internal/op"
	"github.com/jaredmtdev/shardfeed/internal/pool"
)

var errFuzz = errors.New("fuzz failure")

func FuzzMapStopsOnFirstError(data []byte) int {
	// Expect 4 int32s: workerSize, bufferSize, jobs, failOn
	if len(data) < 16 {
		return 0
	}

	workerSize := decode(data[0:4])
	bufferSize := decode(data[4:8])
	jobs := decode(data[8:12])
	failOn := decode(data[12:16])

	jobs = op.PosMod(jobs, 1_000_000)
	failOn = op.PosMod(failOn, max(jobs, 1)+1)

	if bufferSize > 1_000_000 || workerSize > 1_000_000 || bufferSize < -50 || workerSize < -50 {
		return 0
	}

	fmt.Printf("workerSize %v bufferSize %v jobs %v failOn %v\n", workerSize, bufferSize, jobs, failOn)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	panicExpected := workerSize < 1 || bufferSize < 0
	var panicFound bool

	handler := pool.HandlerFunc[int, int](func(_ context.Context, in int) (int, error) {
		if in == failOn {
			return 0, errFuzz
		}
		return in * 2, nil
	})

	var results, errs int
	wg := sync.WaitGroup{}
	wg.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				panicFound = true
				if panicExpected {
					return
				}
				panic(r)
			}
		}()

		out := pool.Map(ctx,
			gen(ctx, jobs, max(bufferSize, 0)),
			handler,
			pool.WithWorkerSize(workerSize),
			pool.WithBufferSize(bufferSize),
			pool.WithOrderPreserved(),
		)

		for {
			select {
			case <-ctx.Done():
				return
			case r, ok := <-out:
				if !ok {
					return
				}
				if r.Err != nil {
					errs++
					continue
				}
				if r.Val != results*2 {
					panic(fmt.Sprintf("out of order result %v at position %v", r.Val, results))
				}
				results++
			}
		}
	})
	wg.Wait()

	if panicExpected && !panicFound {
		panic("expected a panic. No panic occurred")
	}

	if ctx.Err() != nil || panicFound {
		return 0
	}

	if errs > 1 {
		panic(fmt.Sprintf("expected at most one error. got %v", errs))
	}
	if failOn < jobs && (errs != 1 || results != failOn) {
		panic(fmt.Sprintf("expected %v results then an error. got %v results and %v errors", failOn, results, errs))
	}
	if failOn >= jobs && (errs != 0 || results != jobs) {
		panic(fmt.Sprintf("expected %v results. got %v results and %v errors", jobs, results, errs))
	}

	return 1
}

func gen(ctx context.Context, jobs, buf int) <-chan int {
	ch := make(chan int, buf)
	go func() {
		defer close(ch)
		for i := range jobs {
			select {
			case <-ctx.Done():
				return
			case ch <- i:
			}
		}
	}()
	return ch
}

func decode(data []byte) int {
	v, _ := binary.Varint(data)
	if v > math.MaxInt {
		v = v % math.MaxInt
	} else if v < math.MinInt {
		v = v % math.MinInt
	}
	return int(v)
}
