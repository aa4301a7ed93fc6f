// Command shardfeed inspects, counts, exports and generates sharded TFRecord datasets.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jaredmtdev/shardfeed"
	"github.com/jaredmtdev/shardfeed/internal/config"
	"github.com/jaredmtdev/shardfeed/internal/storage"
	"github.com/jaredmtdev/shardfeed/pkg/schema"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	configPath string
	schemaPath string

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "shardfeed",
	Short: "Sharded TFRecord loader for distributed training",
	Long: `shardfeed reads part-* TFRecord files the way a training process does:
the shard of this process is resolved from TF_CONFIG, records are shuffled,
decoded against a schema and grouped into batches.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if schemaPath != "" {
			cfg.Schema = schemaPath
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		level, _ := cfg.Level()
		zc := zap.NewProductionConfig()
		zc.Level = zap.NewAtomicLevelAt(level)
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "shardfeed.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&schemaPath, "schema", "", "schema file (overrides config)")

	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "arrow IPC output file")
	_ = exportCmd.MarkFlagRequired("out")
	genCmd.Flags().IntVar(&genFiles, "files", 4, "part files to write")
	genCmd.Flags().IntVar(&genRecords, "records", 1000, "records per file")
	genCmd.Flags().Uint64Var(&genSeed, "seed", 1, "random seed")

	rootCmd.AddCommand(shardCmd, countCmd, exportCmd, genCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// dirArg - the directory from args, falling back to the config.
func dirArg(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if cfg.Dir == "" {
		return "", fmt.Errorf("no directory given (pass DIR or set dir / SHARDFEED_DIR)")
	}
	return cfg.Dir, nil
}

func loadSchema() (*schema.Schema, error) {
	if cfg.Schema == "" {
		return nil, fmt.Errorf("no schema given (pass --schema or set schema / SHARDFEED_SCHEMA)")
	}
	return schema.LoadFile(cfg.Schema)
}

// newDataset - a dataset over dir built from the config.
func newDataset(ctx context.Context, dir string) (*shardfeed.Dataset, error) {
	s, err := loadSchema()
	if err != nil {
		return nil, err
	}
	var fs storage.FS
	if strings.HasPrefix(dir, "s3://") && cfg.S3.Region != "" {
		if fs, err = storage.NewS3(ctx, cfg.S3.Region); err != nil {
			return nil, err
		}
	}
	l, err := shardfeed.New(s, append(cfg.Options(fs), shardfeed.WithLogger(logger))...)
	if err != nil {
		return nil, err
	}
	return l.Load(dir, cfg.BatchSize)
}
