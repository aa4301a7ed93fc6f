// Package config - configuration of the shardfeed command.
package config

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"

	"github.com/jaredmtdev/shardfeed"
	"github.com/jaredmtdev/shardfeed/internal/storage"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the command.
type Config struct {
	// Dir holding the part files. s3://bucket/prefix reads from S3.
	Dir string `yaml:"dir"`
	// Schema file (yaml) records are decoded against.
	Schema    string `yaml:"schema"`
	BatchSize int    `yaml:"batch_size"`

	Loader  LoaderConfig  `yaml:"loader"`
	S3      S3Config      `yaml:"s3"`
	Logging LoggingConfig `yaml:"logging"`
}

// LoaderConfig tunes the record pipeline.
type LoaderConfig struct {
	FilePattern     string  `yaml:"file_pattern"`
	ReadBufferMiB   int     `yaml:"read_buffer_mib"`
	ShuffleFactor   int     `yaml:"shuffle_factor"`
	ParseWorkers    int     `yaml:"parse_workers"`
	Prefetch        int     `yaml:"prefetch"`
	CycleLength     int     `yaml:"cycle_length"`
	DropRemainder   bool    `yaml:"drop_remainder"`
	VerifyChecksums bool    `yaml:"verify_checksums"`
	Seed            *uint64 `yaml:"seed,omitempty"`
	// Partitioner is round_robin or by_name.
	Partitioner string `yaml:"partitioner"`
}

// S3Config configures the S3 file system.
type S3Config struct {
	// Region overrides the region of the default credential chain.
	Region string `yaml:"region"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// partitioners by config name.
var partitioners = map[string]shardfeed.Partitioner{
	"round_robin": shardfeed.RoundRobin,
	"by_name":     shardfeed.ByName,
}

// Default returns the loader defaults.
func Default() *Config {
	return &Config{
		BatchSize: shardfeed.DefaultBatchSize,
		Loader: LoaderConfig{
			FilePattern:     shardfeed.DefaultFilePattern,
			ReadBufferMiB:   shardfeed.DefaultReadBufferSize >> 20,
			ShuffleFactor:   shardfeed.DefaultShuffleFactor,
			ParseWorkers:    shardfeed.DefaultParseWorkers,
			Prefetch:        shardfeed.DefaultPrefetch,
			CycleLength:     shardfeed.DefaultCycleLength,
			VerifyChecksums: true,
			Partitioner:     "round_robin",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads configuration from a YAML file, then applies environment overrides.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies SHARDFEED_* environment variables.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("SHARDFEED_DIR"); v != "" {
		c.Dir = v
	}
	if v := os.Getenv("SHARDFEED_SCHEMA"); v != "" {
		c.Schema = v
	}
	if v := os.Getenv("SHARDFEED_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	ints := []struct {
		env string
		dst *int
	}{
		{env: "SHARDFEED_BATCH_SIZE", dst: &c.BatchSize},
		{env: "SHARDFEED_PARSE_WORKERS", dst: &c.Loader.ParseWorkers},
		{env: "SHARDFEED_CYCLE_LENGTH", dst: &c.Loader.CycleLength},
	}
	for _, o := range ints {
		v := os.Getenv(o.env)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", o.env, err)
		}
		*o.dst = n
	}
	if v := os.Getenv("SHARDFEED_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid SHARDFEED_SEED: %w", err)
		}
		c.Loader.Seed = &seed
	}
	return nil
}

// Validate checks the values that cannot be checked by the loader itself.
func (c *Config) Validate() error {
	if c.BatchSize < 0 {
		return fmt.Errorf("batch_size must not be negative: %d", c.BatchSize)
	}
	if c.Loader.ReadBufferMiB < 1 {
		return fmt.Errorf("read_buffer_mib must be at least 1: %d", c.Loader.ReadBufferMiB)
	}
	if _, ok := partitioners[c.Loader.Partitioner]; !ok {
		names := slices.Sorted(maps.Keys(partitioners))
		return fmt.Errorf("invalid partitioner: %s (valid: %v)", c.Loader.Partitioner, names)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the configured log level.
func (c *Config) Level() (zapcore.Level, error) {
	level, err := zapcore.ParseLevel(c.Logging.Level)
	if err != nil {
		return level, fmt.Errorf("invalid log level: %w", err)
	}
	return level, nil
}

// Options translates the loader section into loader options.
// fs may be nil to let the loader pick the file system from the directory.
func (c *Config) Options(fs storage.FS) []shardfeed.Opt {
	opts := []shardfeed.Opt{
		shardfeed.WithFilePattern(c.Loader.FilePattern),
		shardfeed.WithReadBufferSize(c.Loader.ReadBufferMiB << 20),
		shardfeed.WithShuffleFactor(c.Loader.ShuffleFactor),
		shardfeed.WithParseWorkers(c.Loader.ParseWorkers),
		shardfeed.WithPrefetch(c.Loader.Prefetch),
		shardfeed.WithCycleLength(c.Loader.CycleLength),
		shardfeed.WithDropRemainder(c.Loader.DropRemainder),
		shardfeed.WithVerifyChecksums(c.Loader.VerifyChecksums),
		shardfeed.WithPartitioner(partitioners[c.Loader.Partitioner]),
	}
	if c.Loader.Seed != nil {
		opts = append(opts, shardfeed.WithSeed(*c.Loader.Seed))
	}
	if fs != nil {
		opts = append(opts, shardfeed.WithFileSystem(fs))
	}
	return opts
}
