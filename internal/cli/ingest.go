package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"finrag/internal/domain"
)

var (
	ingestTags map[string]string
	ingestJSON bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <folder>",
	Short: "Ingest every PDF in a folder",
	Long: `Extract, chunk and embed every PDF in the folder into the configured
collection. Files that fail are reported and skipped; the rest are ingested.
Re-ingesting a file replaces its chunks.

Examples:
  finrag ingest ./literature
  finrag ingest ./reports --tag ticker=AAPL --collection apple`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var addCmd = &cobra.Command{
	Use:   "add <file.pdf>",
	Short: "Ingest a single PDF",
	Long: `Extract, chunk and embed one PDF into the configured collection.

Examples:
  finrag add ./literature/valuation.pdf
  finrag add report.PDF --tag year=2024`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(addCmd)
	for _, cmd := range []*cobra.Command{ingestCmd, addCmd} {
		cmd.Flags().StringToStringVar(&ingestTags, "tag", nil, "metadata tag stored with every chunk (key=value, repeatable)")
		cmd.Flags().BoolVar(&ingestJSON, "json", false, "output the report as JSON")
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	var progress func(done, total int, path string)
	if !ingestJSON {
		fmt.Fprintf(os.Stderr, "Scanning %s...\n", path)
		progress = newIngestProgress()
	}

	report, err := a.Retriever.IngestFolder(ctx, path, ingestTags, progress)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	if ingestJSON {
		return printJSON(ingestReportJSON(report))
	}

	fmt.Printf("\nIngestion complete (run %s):\n", report.RunID)
	fmt.Printf("  Collection:     %s\n", a.Retriever.Collection())
	fmt.Printf("  Files ingested: %d\n", len(report.Ingested))
	fmt.Printf("  Files failed:   %d\n", len(report.Failed))
	fmt.Printf("  Chunks written: %d\n", report.TotalChunks())

	if len(report.Failed) > 0 {
		fmt.Printf("\nFailures:\n")
		for _, f := range report.Failed {
			fmt.Printf("  - %s: %v\n", f.Path, f.Err)
		}
	}
	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Retriever.IngestDocument(ctx, args[0], ingestTags)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	if ingestJSON {
		return printJSON(res)
	}
	fmt.Printf("Ingested %s\n", res.Path)
	fmt.Printf("  Document hash: %s\n", res.Hash)
	fmt.Printf("  Chunks:        %d\n", res.Chunks)
	if res.Pruned > 0 {
		fmt.Printf("  Pruned:        %d (stale chunks from a longer version)\n", res.Pruned)
	}
	return nil
}

// newIngestProgress returns a callback drawing a progress bar with ETA.
// The bar is created lazily once the total is known.
func newIngestProgress() func(done, total int, path string) {
	var (
		bar       *progressbar.ProgressBar
		mu        sync.Mutex
		startTime time.Time
	)

	return func(done, total int, _ string) {
		mu.Lock()
		defer mu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(os.Stderr)
				}),
			)
		}

		_ = bar.Set(done)

		elapsed := time.Since(startTime)
		if done > 0 && elapsed > 0 {
			rate := float64(done) / elapsed.Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-done)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]Ingesting[reset] ETA: %s", formatDuration(eta)))
			}
		}
	}
}

type failureJSON struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

func ingestReportJSON(r *domain.IngestReport) any {
	failed := make([]failureJSON, len(r.Failed))
	for i, f := range r.Failed {
		failed[i] = failureJSON{Path: f.Path, Error: f.Err.Error()}
	}
	return struct {
		RunID    string                  `json:"run_id"`
		Ingested []domain.DocumentResult `json:"ingested"`
		Failed   []failureJSON           `json:"failed"`
		Chunks   int                     `json:"chunks"`
	}{r.RunID, r.Ingested, failed, r.TotalChunks()}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
