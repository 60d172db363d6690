package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"codehint/internal/storage"
)

var (
	fetchList  bool
	fetchPrune int
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [url...]",
	Short: "Warm or inspect the persistent file cache",
	Long: `Fetch network files into .codehint/codehint.db so later sessions can
serve them without a round trip.

Examples:
  codehint fetch https://example.com/lib.js
  codehint fetch --list
  codehint fetch --prune 100`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(dirFlag)
		if err != nil {
			return err
		}
		defer rt.Close()

		cache, err := rt.fileCache(true)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		for _, name := range args {
			text, err := cache.Load(ctx, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\t%d bytes\n", name, len(text))
		}

		store := storage.NewFileStore(rt.db)
		if fetchPrune > 0 {
			n, err := store.Prune(ctx, fetchPrune)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Pruned %d files\n", n)
		}
		if fetchList {
			return listStored(ctx, out, store)
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchList, "list", false, "List cached files")
	fetchCmd.Flags().IntVar(&fetchPrune, "prune", 0, "Keep only the N most recently used files")
	rootCmd.AddCommand(fetchCmd)
}

func listStored(ctx context.Context, w io.Writer, store *storage.FileStore) error {
	files, err := store.List(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tFETCHED\tLAST USED")
	for _, f := range files {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", f.Name, f.Size, f.FetchedAt.Format(time.RFC3339), f.LastUsedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}
