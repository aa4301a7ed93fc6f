package shardfeed

import (
	"context"
	"iter"
	"math"
	"math/rand/v2"
	"sync/atomic"

	"github.com/jaredmtdev/shardfeed/internal/decode"
	"github.com/jaredmtdev/shardfeed/internal/pool"
	"github.com/jaredmtdev/shardfeed/internal/seq"
	"github.com/jaredmtdev/shardfeed/internal/shard"
	"github.com/jaredmtdev/shardfeed/internal/tfrecord"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// epoch - one pass over the files of a Dataset.
type epoch struct {
	*Dataset
	number int
	runID  string
	logger *zap.Logger

	files   atomic.Int64
	records atomic.Int64
	batches atomic.Int64
}

// rng - random source for one stream of this epoch.
// Streams 0..n-1 shuffle the files' records, fileOrderStream shuffles the file order.
func (e *epoch) rng(stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(e.seed, uint64(e.number)<<32|stream))
}

const fileOrderStream = math.MaxUint32

// run - starts the epoch. The returned channel closes once every file stage has exited.
func (e *epoch) run(ctx context.Context) <-chan pool.Result[*Batch] {
	out := make(chan pool.Result[*Batch])
	go func() {
		defer close(out)
		files, err := e.discover(ctx)
		if err == nil {
			err = e.merge(ctx, files, out)
		}
		if err != nil && ctx.Err() == nil {
			select {
			case <-ctx.Done():
			case out <- pool.Result[*Batch]{Err: err}:
			}
		}
	}()
	return out
}

// discover - lists the directory and keeps the files of this shard in a random order.
func (e *epoch) discover(ctx context.Context) ([]string, error) {
	listed, err := e.fs.List(ctx, e.dir, e.pattern)
	if err != nil {
		return nil, err
	}
	files := shard.Partition(listed, e.assignment, shard.Hash(e.partitioner))
	e.rng(fileOrderStream).Shuffle(len(files), func(i, j int) {
		files[i], files[j] = files[j], files[i]
	})
	e.files.Store(int64(len(files)))
	e.logger.Info("epoch started",
		zap.String("dir", e.dir),
		zap.Int("shard_count", e.assignment.Count),
		zap.Int("shard_index", e.assignment.Index),
		zap.Int("listed", len(listed)),
		zap.Int("files", len(files)),
	)
	return files, nil
}

// merge - runs up to cycleLength file stages at once and forwards their batches to out.
func (e *epoch) merge(ctx context.Context, files []string, out chan<- pool.Result[*Batch]) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cycleLength)
	for i, name := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return forward(gctx, e.file(gctx, uint64(i), name), out)
		})
	}
	return g.Wait()
}

// forward - copies batches to out until in closes. Returns the first error found.
func forward(ctx context.Context, in <-chan pool.Result[*Batch], out chan<- pool.Result[*Batch]) error {
	for r := range in {
		if r.Err != nil {
			return r.Err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- r:
		}
	}
	return nil
}

// file - the stages of one file: read -> shuffle -> parse -> batch.
// The batch channel is the prefetch buffer.
func (e *epoch) file(ctx context.Context, stream uint64, name string) <-chan pool.Result[*Batch] {
	raw := seq.ToResults(ctx, e.read(ctx, name), e.parseWorkers)
	shuffled := shuffle(ctx, raw, e.shuffleFactor*e.batchSize, e.rng(stream))
	handler := pool.Chain(
		logFailures[pool.Result[[]byte], decode.Record](e.logger, name),
		countRecords[pool.Result[[]byte], decode.Record](&e.records),
	)(e.parse(name))
	parsed := pool.Map(ctx, shuffled, handler,
		pool.WithWorkerSize(e.parseWorkers),
		pool.WithBufferSize(e.parseWorkers),
		pool.WithOrderPreserved(),
	)
	return e.batch(ctx, parsed)
}

// read - records of one file. Open and read errors are yielded once and end the sequence.
func (e *epoch) read(ctx context.Context, name string) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		rc, err := e.fs.Open(ctx, name)
		if err != nil {
			yield(nil, inFile(err, name))
			return
		}
		defer rc.Close()
		e.logger.Debug("file opened", zap.String("file", name))
		defer e.logger.Debug("file closed", zap.String("file", name))

		r := tfrecord.NewReader(rc,
			tfrecord.WithBufferSize(e.readBufferSize),
			tfrecord.WithChecksums(e.verify),
		)
		for rec, err := range r.All() {
			if err != nil {
				yield(nil, inFile(err, name))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// shuffle - reservoir shuffle over a window of size records.
// Once the reservoir is full every new record replaces a random one, which is emitted.
// Errors pass through immediately and end the stream.
func shuffle[T any](ctx context.Context, in <-chan pool.Result[T], size int, rng *rand.Rand) <-chan pool.Result[T] {
	if size <= 1 {
		return in
	}
	out := make(chan pool.Result[T])
	go func() {
		defer close(out)
		send := func(r pool.Result[T]) bool {
			select {
			case <-ctx.Done():
				return false
			case out <- r:
				return true
			}
		}
		reservoir := make([]T, 0, size)
		for r := range in {
			if r.Err != nil {
				send(r)
				return
			}
			if len(reservoir) < size {
				reservoir = append(reservoir, r.Val)
				continue
			}
			i := rng.IntN(size)
			if !send(pool.Result[T]{Val: reservoir[i]}) {
				return
			}
			reservoir[i] = r.Val
		}
		if ctx.Err() != nil {
			return
		}
		rng.Shuffle(len(reservoir), func(i, j int) {
			reservoir[i], reservoir[j] = reservoir[j], reservoir[i]
		})
		for _, v := range reservoir {
			if !send(pool.Result[T]{Val: v}) {
				return
			}
		}
	}()
	return out
}

// parse - decodes one raw record. Upstream errors are returned as-is so the pool stops on them.
func (e *epoch) parse(name string) pool.HandlerFunc[pool.Result[[]byte], decode.Record] {
	return func(_ context.Context, in pool.Result[[]byte]) (decode.Record, error) {
		if in.Err != nil {
			return decode.Record{}, in.Err
		}
		rec, err := e.decoder.Decode(in.Val)
		if err != nil {
			return decode.Record{}, inFile(err, name)
		}
		return rec, nil
	}
}

// batch - groups records into batches of batchSize.
// The short final batch is kept unless dropRemainder is set.
func (e *epoch) batch(ctx context.Context, in <-chan pool.Result[decode.Record]) <-chan pool.Result[*Batch] {
	out := make(chan pool.Result[*Batch], e.prefetch)
	go func() {
		defer close(out)
		send := func(r pool.Result[*Batch]) bool {
			select {
			case <-ctx.Done():
				return false
			case out <- r:
				return true
			}
		}
		records := make([]decode.Record, 0, e.batchSize)
		for r := range in {
			if r.Err != nil {
				send(pool.Result[*Batch]{Err: r.Err})
				return
			}
			records = append(records, r.Val)
			if len(records) < e.batchSize {
				continue
			}
			if !send(pool.Result[*Batch]{Val: e.assemble(records)}) {
				return
			}
			e.batches.Add(1)
			records = make([]decode.Record, 0, e.batchSize)
		}
		if ctx.Err() != nil || len(records) == 0 || e.dropRemainder {
			return
		}
		if send(pool.Result[*Batch]{Val: e.assemble(records)}) {
			e.batches.Add(1)
		}
	}()
	return out
}

func (e *epoch) assemble(records []decode.Record) *Batch {
	features, label := e.decoder.Assemble(records)
	return &Batch{Features: features, Label: label, Size: len(records)}
}
