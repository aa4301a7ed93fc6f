package main

import (
	"fmt"
	"os"

	"github.com/jaredmtdev/shardfeed/internal/arrowexport"
	"github.com/spf13/cobra"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export [DIR]",
	Short: "Write one epoch of batches as an Arrow IPC stream",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExport,
}

func runExport(cmd *cobra.Command, args []string) (err error) {
	dir, err := dirArg(args)
	if err != nil {
		return err
	}
	ds, err := newDataset(cmd.Context(), dir)
	if err != nil {
		return err
	}

	f, err := os.Create(exportOut)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w, err := arrowexport.NewWriter(f, ds.Schema())
	if err != nil {
		return err
	}
	var rows int
	for b, err := range ds.Batches(cmd.Context()) {
		if err != nil {
			return err
		}
		if err := w.Write(b); err != nil {
			return err
		}
		rows += b.Size
	}
	if err := w.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", rows, exportOut)
	return nil
}
