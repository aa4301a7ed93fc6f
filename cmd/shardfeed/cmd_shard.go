package main

import (
	"fmt"

	"github.com/jaredmtdev/shardfeed/pkg/topology"
	"github.com/spf13/cobra"
)

var shardCmd = &cobra.Command{
	Use:   "shard [DIR]",
	Short: "Print the shard this process reads",
	Long: `Resolves the shard assignment from TF_CONFIG.
With a directory, also lists the files of the shard.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runShard,
}

func runShard(cmd *cobra.Command, args []string) error {
	a, err := topology.ResolveEnv()
	if err != nil {
		return err
	}
	if err := a.Validate(); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "shard %d of %d\n", a.Index, a.Count)

	if len(args) == 0 && cfg.Dir == "" {
		return nil
	}
	dir, err := dirArg(args)
	if err != nil {
		return err
	}
	ds, err := newDataset(cmd.Context(), dir)
	if err != nil {
		return err
	}
	files, err := ds.Files(cmd.Context())
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Fprintln(out, f)
	}
	return nil
}
