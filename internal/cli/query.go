package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"finrag/internal/domain"
)

var (
	queryText     string
	queryTopK     int
	queryContains string
	queryJSON     bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Retrieve the chunks closest to a query",
	Long: `Embed the query and list the nearest chunks of the collection by cosine
distance, closest first.

Examples:
  finrag query -q "price to earnings ratio"
  finrag query -q "leverage" -k 3 --contains "debt" --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().StringVar(&queryContains, "contains", "", "only return chunks whose text contains this substring")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Retriever.Search(ctx, queryText, queryTopK, domain.Filter{Contains: queryContains})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if queryJSON {
		return printJSON(res)
	}

	if len(res.Matches) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results for: %s\n\n", len(res.Matches), queryText)
	for i, m := range res.Matches {
		fmt.Printf("--- [%d] %s (%s, chunk %d/%d, distance: %.4f) ---\n",
			i+1, m.ID, m.Metadata.Source, m.Metadata.ChunkIndex+1, m.Metadata.TotalChunks, m.Distance)
		fmt.Println(truncate(m.Text, 500))
		fmt.Println()
	}
	return nil
}

// truncate shortens text to at most n runes for display.
func truncate(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}
