package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var countCmd = &cobra.Command{
	Use:   "count [DIR]",
	Short: "Run one epoch and count batches and records",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCount,
}

func runCount(cmd *cobra.Command, args []string) error {
	dir, err := dirArg(args)
	if err != nil {
		return err
	}
	ds, err := newDataset(cmd.Context(), dir)
	if err != nil {
		return err
	}

	var batches, records int
	for b, err := range ds.Batches(cmd.Context()) {
		if err != nil {
			return err
		}
		batches++
		records += b.Size
	}
	stats := ds.Stats()
	logger.Debug("count finished", zap.Int("files", stats.Files), zap.Int64("decoded", stats.Records))
	fmt.Fprintf(cmd.OutOrStdout(), "files=%d batches=%d records=%d\n", stats.Files, batches, records)
	return nil
}
