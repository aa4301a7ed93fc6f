package shardfeed

import (
	"path"

	"github.com/jaredmtdev/shardfeed/internal/shard"
	"github.com/jaredmtdev/shardfeed/internal/storage"
	"github.com/jaredmtdev/shardfeed/internal/tfrecord"
	"github.com/jaredmtdev/shardfeed/pkg/topology"
	"go.uber.org/zap"
)

// defaults.
const (
	DefaultBatchSize      = 512
	DefaultFilePattern    = "part-*"
	DefaultReadBufferSize = tfrecord.DefaultBufferSize
	DefaultShuffleFactor  = 10
	DefaultParseWorkers   = 8
	DefaultPrefetch       = 10
	DefaultCycleLength    = 1
)

// Partitioner - chooses the shard of a file. index is its position in the sorted listing.
// The result is taken modulo the shard count.
type Partitioner func(index int, name string) int

// partitioners.
var (
	// RoundRobin - file i goes to shard i mod count.
	RoundRobin Partitioner = shard.RoundRobin
	// ByName - shard chosen by a hash of the file name.
	ByName Partitioner = shard.ByName
)

// loaderOpts - configures a Loader.
type loaderOpts struct {
	assignment     *topology.Assignment
	descriptor     *topology.Descriptor
	fs             storage.FS
	pattern        string
	readBufferSize int
	shuffleFactor  int
	parseWorkers   int
	prefetch       int
	dropRemainder  bool
	cycleLength    int
	seed           *uint64
	verify         bool
	logger         *zap.Logger
	partitioner    Partitioner
}

func (lo *loaderOpts) validate() error {
	if lo.readBufferSize <= 0 {
		return newInvalidReadBufferSizeError(lo.readBufferSize)
	}
	if lo.shuffleFactor < 0 {
		return newInvalidShuffleFactorError(lo.shuffleFactor)
	}
	if lo.parseWorkers <= 0 {
		return newInvalidParseWorkersError(lo.parseWorkers)
	}
	if lo.prefetch < 0 {
		return newInvalidPrefetchError(lo.prefetch)
	}
	if lo.cycleLength <= 0 {
		return newInvalidCycleLengthError(lo.cycleLength)
	}
	if _, err := path.Match(lo.pattern, ""); err != nil {
		return newInvalidFilePatternError(lo.pattern, err)
	}
	if lo.assignment != nil {
		return lo.assignment.Validate()
	}
	return nil
}

// Opt - options used to configure a Loader.
type Opt func(lo *loaderOpts)

// WithAssignment - read shard a instead of resolving one from TF_CONFIG.
func WithAssignment(a topology.Assignment) Opt {
	return func(lo *loaderOpts) {
		lo.assignment = &a
	}
}

// WithTopology - resolve the shard from d instead of TF_CONFIG.
func WithTopology(d topology.Descriptor) Opt {
	return func(lo *loaderOpts) {
		lo.descriptor = &d
	}
}

// WithFileSystem - where shard files are listed and read.
//
// By default the file system is picked from the directory: s3:// paths use S3.
func WithFileSystem(fs storage.FS) Opt {
	return func(lo *loaderOpts) {
		lo.fs = fs
	}
}

// WithFilePattern - base name pattern of shard files (path.Match syntax).
//
// Uses DefaultFilePattern by default.
func WithFilePattern(pattern string) Opt {
	return func(lo *loaderOpts) {
		lo.pattern = pattern
	}
}

// WithReadBufferSize - bytes buffered per open file.
//
// Uses DefaultReadBufferSize (256 MiB) by default.
func WithReadBufferSize(size int) Opt {
	return func(lo *loaderOpts) {
		lo.readBufferSize = size
	}
}

// WithShuffleFactor - the shuffle reservoir holds factor × batch size records.
// 0 disables shuffling.
//
// Uses DefaultShuffleFactor by default.
func WithShuffleFactor(factor int) Opt {
	return func(lo *loaderOpts) {
		lo.shuffleFactor = factor
	}
}

// WithParseWorkers - records decoded concurrently per file.
//
// Uses DefaultParseWorkers by default.
func WithParseWorkers(workers int) Opt {
	return func(lo *loaderOpts) {
		lo.parseWorkers = workers
	}
}

// WithPrefetch - batches produced ahead of the consumer per file.
//
// Uses DefaultPrefetch by default.
func WithPrefetch(batches int) Opt {
	return func(lo *loaderOpts) {
		lo.prefetch = batches
	}
}

// WithDropRemainder - drop the short final batch of each file instead of emitting it.
func WithDropRemainder(drop bool) Opt {
	return func(lo *loaderOpts) {
		lo.dropRemainder = drop
	}
}

// WithCycleLength - number of files read concurrently. Batches of concurrent files interleave.
//
// Uses DefaultCycleLength by default: files are read one after another.
func WithCycleLength(files int) Opt {
	return func(lo *loaderOpts) {
		lo.cycleLength = files
	}
}

// WithSeed - makes shuffling reproducible. Each epoch still gets its own order.
//
// A random seed is drawn per Dataset by default.
func WithSeed(seed uint64) Opt {
	return func(lo *loaderOpts) {
		lo.seed = &seed
	}
}

// WithVerifyChecksums - check the CRC of every frame. Enabled by default.
func WithVerifyChecksums(verify bool) Opt {
	return func(lo *loaderOpts) {
		lo.verify = verify
	}
}

// WithLogger - logger for epoch progress and failures. Nothing is logged by default.
func WithLogger(logger *zap.Logger) Opt {
	return func(lo *loaderOpts) {
		lo.logger = logger
	}
}

// WithPartitioner - how files are split between shards.
//
// Uses RoundRobin by default.
func WithPartitioner(p Partitioner) Opt {
	return func(lo *loaderOpts) {
		lo.partitioner = p
	}
}

func newLoaderOpts(opts []Opt) *loaderOpts {
	lo := &loaderOpts{
		pattern:        DefaultFilePattern,
		readBufferSize: DefaultReadBufferSize,
		shuffleFactor:  DefaultShuffleFactor,
		parseWorkers:   DefaultParseWorkers,
		prefetch:       DefaultPrefetch,
		cycleLength:    DefaultCycleLength,
		verify:         true,
	}
	for _, opt := range opts {
		opt(lo)
	}
	if lo.logger == nil {
		lo.logger = zap.NewNop()
	}
	if lo.partitioner == nil {
		lo.partitioner = RoundRobin
	}
	return lo
}
