package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"finrag/internal/adapter/fs"
)

var (
	watchDebounce time.Duration
	watchInitial  bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <folder>",
	Short: "Keep a collection in sync with a folder of PDFs",
	Long: `Watch a folder and ingest PDFs as they are added or rewritten. Chunks of
deleted or renamed PDFs are removed. Events are debounced and handled one
file at a time. Stop with Ctrl-C.

Examples:
  finrag watch ./literature
  finrag watch ./literature --initial --debounce 3s`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", fs.DefaultDebounce, "quiet period before changes are ingested")
	watchCmd.Flags().BoolVar(&watchInitial, "initial", false, "ingest the whole folder before watching")
	watchCmd.Flags().StringToStringVar(&ingestTags, "tag", nil, "metadata tag stored with every chunk (key=value, repeatable)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	dir, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	if watchInitial {
		report, err := a.Retriever.IngestFolder(ctx, dir, ingestTags, nil)
		if err != nil {
			return fmt.Errorf("initial ingestion failed: %w", err)
		}
		fmt.Printf("Initial ingestion: %d files, %d failed, %d chunks\n",
			len(report.Ingested), len(report.Failed), report.TotalChunks())
	}

	w, err := fs.NewWatcher(dir, a.Walker, watchDebounce, log)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	defer w.Close()

	fmt.Printf("Watching %s (collection %q). Press Ctrl-C to stop.\n", dir, a.Retriever.Collection())

	err = w.Run(ctx, func(c fs.Change) {
		switch c.Kind {
		case fs.ChangeRemoved:
			if n, err := a.Retriever.RemoveDocument(ctx, c.Path); err != nil {
				log.Error("remove failed", "path", c.Path, "error", err)
			} else if n > 0 {
				fmt.Printf("- %s (%d chunks removed)\n", c.Path, n)
			}
		default:
			res, err := a.Retriever.IngestDocument(ctx, c.Path, ingestTags)
			if err != nil {
				log.Error("ingest failed", "path", c.Path, "error", err)
				return
			}
			fmt.Printf("+ %s (%d chunks)\n", res.Path, res.Chunks)
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
