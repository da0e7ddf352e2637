package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"finrag/internal/domain"
)

var (
	statusCheck bool
	statusJSON  bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show collections and check the embedding service",
	Long: `List the collections in the vector store with their chunk counts and
embedding spaces. With --check, embed a short text to confirm the embedding
service is reachable and returns vectors of the expected size.

Examples:
  finrag status
  finrag status --check`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusCheck, "check", false, "send a test request to the embedding service")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
}

type checkResult struct {
	OK        bool   `json:"ok"`
	Dimension int    `json:"dimension,omitempty"`
	Latency   string `json:"latency,omitempty"`
	Error     string `json:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cols, err := a.Retriever.Collections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	var check *checkResult
	if statusCheck {
		check = &checkResult{}
		start := time.Now()
		vecs, err := a.Embedder.Embed(ctx, []string{"earnings per share"})
		switch {
		case err != nil:
			check.Error = err.Error()
		case len(vecs) != 1 || len(vecs[0]) != a.Embedder.Dimension():
			check.Error = fmt.Sprintf("unexpected embedding shape, want 1x%d", a.Embedder.Dimension())
		default:
			check.OK = true
			check.Dimension = len(vecs[0])
			check.Latency = time.Since(start).Round(time.Millisecond).String()
		}
	}

	if statusJSON {
		return printJSON(struct {
			Store       string              `json:"store"`
			Embedding   string              `json:"embedding"`
			Active      string              `json:"active_collection"`
			Collections []domain.Collection `json:"collections"`
			Check       *checkResult        `json:"check,omitempty"`
		}{a.Config.Store.Backend, a.Index.Space().String(), a.Retriever.Collection(), cols, check})
	}

	fmt.Printf("Store:      %s\n", a.StoreDescription())
	fmt.Printf("Embedding:  %s (%s)\n", a.Index.Space(), a.Config.Embedding.Provider)
	fmt.Printf("Collection: %s\n\n", a.Retriever.Collection())

	if len(cols) == 0 {
		fmt.Println("No collections.")
	} else {
		fmt.Printf("%-24s %8s  %-28s %s\n", "NAME", "CHUNKS", "EMBEDDING", "CREATED")
		for _, c := range cols {
			marker := ""
			if c.Space != a.Index.Space() {
				marker = "  (other embedding space)"
			}
			fmt.Printf("%-24s %8d  %-28s %s%s\n",
				c.Name, c.Count, c.Space, c.CreatedAt.Local().Format(time.DateTime), marker)
		}
	}

	if check != nil {
		fmt.Println()
		if check.OK {
			fmt.Printf("Embedding check: ok, %d dimensions in %s\n", check.Dimension, check.Latency)
		} else {
			fmt.Printf("Embedding check: FAILED: %s\n", check.Error)
		}
	}
	return nil
}
