package main

import (
	"fmt"

	"github.com/jaredmtdev/shardfeed/internal/synth"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	genFiles   int
	genRecords int
	genSeed    uint64
)

var genCmd = &cobra.Command{
	Use:   "gen DIR",
	Short: "Write synthetic part files that match the schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runGen,
}

func runGen(cmd *cobra.Command, args []string) error {
	s, err := loadSchema()
	if err != nil {
		return err
	}
	paths, err := synth.WriteDir(args[0], s, genFiles, genRecords, genSeed)
	if err != nil {
		return err
	}
	for _, p := range paths {
		logger.Debug("file written", zap.String("file", p))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d files of %d records to %s\n", len(paths), genRecords, args[0])
	return nil
}
