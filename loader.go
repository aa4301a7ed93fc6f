package shardfeed

import (
	"context"
	"iter"
	"math/rand/v2"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jaredmtdev/shardfeed/internal/decode"
	"github.com/jaredmtdev/shardfeed/internal/seq"
	"github.com/jaredmtdev/shardfeed/internal/shard"
	"github.com/jaredmtdev/shardfeed/internal/storage"
	"github.com/jaredmtdev/shardfeed/internal/syncvalue"
	"github.com/jaredmtdev/shardfeed/pkg/schema"
	"github.com/jaredmtdev/shardfeed/pkg/tensor"
	"github.com/jaredmtdev/shardfeed/pkg/topology"
	"go.uber.org/zap"
)

// Loader - builds datasets for one schema and one shard assignment.
type Loader struct {
	*loaderOpts
	schema     *schema.Schema
	decoder    *decode.Decoder
	assignment topology.Assignment
}

// New - validates opts and resolves the shard this process reads.
//
// The assignment comes from WithAssignment, then WithTopology, then TF_CONFIG.
// Without any of them the whole dataset is read.
func New(p schema.Provider, opts ...Opt) (*Loader, error) {
	s, err := schema.FromProvider(p)
	if err != nil {
		return nil, err
	}
	lo := newLoaderOpts(opts)
	if err := lo.validate(); err != nil {
		return nil, err
	}
	a, err := lo.resolveAssignment()
	if err != nil {
		return nil, err
	}
	return &Loader{
		loaderOpts: lo,
		schema:     s,
		decoder:    decode.New(s),
		assignment: a,
	}, nil
}

func (lo *loaderOpts) resolveAssignment() (topology.Assignment, error) {
	var (
		a   topology.Assignment
		err error
	)
	switch {
	case lo.assignment != nil:
		a = *lo.assignment
	case lo.descriptor != nil:
		a, err = topology.Resolve(*lo.descriptor)
	default:
		a, err = topology.ResolveEnv()
	}
	if err != nil {
		return topology.Assignment{}, err
	}
	return a, a.Validate()
}

// Assignment - the shard this loader reads.
func (l *Loader) Assignment() topology.Assignment {
	return l.assignment
}

// Schema - the schema records are decoded against.
func (l *Loader) Schema() *schema.Schema {
	return l.schema
}

// Load - a dataset over the part files of dir.
// batchSize 0 uses DefaultBatchSize.
//
// Nothing is read until Batches is iterated.
func (l *Loader) Load(dir string, batchSize int) (*Dataset, error) {
	if dir == "" {
		return nil, errMissingDirectory
	}
	if batchSize < 0 {
		return nil, newInvalidBatchSizeError(batchSize)
	}
	if batchSize == 0 {
		batchSize = DefaultBatchSize
	}
	fs := l.fs
	if fs == nil {
		var err error
		if fs, err = storage.For(context.Background(), dir); err != nil {
			return nil, err
		}
	}
	seed := rand.Uint64()
	if l.seed != nil {
		seed = *l.seed
	}
	return &Dataset{
		loaderOpts: l.loaderOpts,
		schema:     l.schema,
		decoder:    l.decoder,
		assignment: l.assignment,
		fs:         fs,
		dir:        dir,
		batchSize:  batchSize,
		seed:       seed,
	}, nil
}

// Batch - one batch of records. Label has shape [Size, ...] and is always dense.
type Batch struct {
	Features map[string]tensor.Tensor
	Label    tensor.Tensor
	Size     int
}

// State - where a Dataset is in its current epoch.
type State int

// dataset states.
const (
	// StateIdle - no epoch started, or the latest one was abandoned or failed.
	StateIdle State = iota
	// StateRunning - an epoch is being consumed.
	StateRunning
	// StateExhausted - the latest epoch delivered every batch.
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateExhausted:
		return "exhausted"
	default:
		return "idle"
	}
}

// Stats - progress of the latest epoch.
type Stats struct {
	Epoch   int
	Files   int
	Records int64
	Batches int64
}

// Dataset - restartable stream of batches. Each Batches iteration is one epoch.
type Dataset struct {
	*loaderOpts
	schema     *schema.Schema
	decoder    *decode.Decoder
	assignment topology.Assignment
	fs         storage.FS
	dir        string
	batchSize  int
	seed       uint64

	epochs  atomic.Int64
	state   syncvalue.Value[State]
	current syncvalue.Value[*epoch]
}

// Schema - the schema records are decoded against.
func (d *Dataset) Schema() *schema.Schema {
	return d.schema
}

// Assignment - the shard this dataset reads.
func (d *Dataset) Assignment() topology.Assignment {
	return d.assignment
}

// BatchSize - records per full batch.
func (d *Dataset) BatchSize() int {
	return d.batchSize
}

// Files - the files this shard reads, in listing order.
func (d *Dataset) Files(ctx context.Context) ([]string, error) {
	listed, err := d.fs.List(ctx, d.dir, d.pattern)
	if err != nil {
		return nil, err
	}
	return shard.Partition(listed, d.assignment, shard.Hash(d.partitioner)), nil
}

// State - state of the latest epoch.
func (d *Dataset) State() State {
	return d.state.Load()
}

// Stats - counters of the latest epoch. Zero before the first one starts.
func (d *Dataset) Stats() Stats {
	e := d.current.Load()
	if e == nil {
		return Stats{}
	}
	return Stats{
		Epoch:   e.number,
		Files:   int(e.files.Load()),
		Records: e.records.Load(),
		Batches: e.batches.Load(),
	}
}

// Batches - runs one epoch: discovery, partitioning and a fresh shuffle of every file.
//
// Lifecycle:
//   - Batches arrive as the files are decoded. Order across files is unspecified.
//   - The first error is yielded as (nil, err) and ends the epoch.
//   - Breaking out of the loop or canceling ctx cancels every stage of the epoch.
//     A canceled ctx is yielded as the final error unless the loop was broken.
func (d *Dataset) Batches(ctx context.Context) iter.Seq2[*Batch, error] {
	return func(yield func(*Batch, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		e := &epoch{
			Dataset: d,
			number:  int(d.epochs.Add(1) - 1),
			runID:   uuid.NewString(),
		}
		e.logger = d.logger.With(zap.String("run_id", e.runID), zap.Int("epoch", e.number))
		d.current.Store(e)
		if prev := d.state.Swap(StateRunning); prev == StateRunning {
			e.logger.Warn("epoch started while another is running")
		}

		results := e.run(ctx)
		consumed := true
		var failure error
		for b, err := range seq.FromResults(ctx, results) {
			if err != nil {
				failure = err
			}
			if !yield(b, err) {
				consumed = false
				break
			}
		}
		canceled := ctx.Err()
		cancel()
		for range results {
		}

		if consumed && failure == nil && canceled != nil {
			failure = canceled
			yield(nil, canceled)
		}
		if consumed && failure == nil {
			d.state.Store(StateExhausted)
		} else {
			d.state.Store(StateIdle)
		}
		e.logger.Info("epoch finished",
			zap.Bool("complete", consumed && failure == nil),
			zap.Int64("records", e.records.Load()),
			zap.Int64("batches", e.batches.Load()),
			zap.Error(failure),
		)
	}
}
