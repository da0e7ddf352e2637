package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"finrag/config"
	"finrag/internal/app"
	"finrag/internal/domain"
	"finrag/internal/logger"
)

func main() {
	dir := flag.String("dir", ".", "project directory holding config and data")
	query := flag.String("q", "", "query to test")
	topK := flag.Int("k", 10, "number of results")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run cmd/benchmark/main.go -dir ./project -q \"query\"")
		fmt.Println("\nTests:")
		fmt.Println("  1. Embedding infrastructure (model connection, vector store)")
		fmt.Println("  2. Semantic similarity (query vs results)")
		fmt.Println("  3. Source spread (how many documents the hits come from)")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()

	ctx := context.Background()
	a, err := app.Open(ctx, cfg, *dir, logger.Discard())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	col, err := a.Collection(ctx)
	if errors.Is(err, domain.ErrCollectionNotFound) {
		fmt.Fprintf(os.Stderr, "Collection %q does not exist - run 'finrag ingest' first\n", cfg.Index.Collection)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Collection not usable: %v\n", err)
		os.Exit(1)
	}
	if col.Count == 0 {
		fmt.Fprintf(os.Stderr, "Collection %q is empty - run 'finrag ingest' first\n", col.Name)
		os.Exit(1)
	}

	fmt.Println("SEMANTIC SEARCH BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Collection: %s (%d chunks)\n", col.Name, col.Count)
	fmt.Printf("Embedding:  %s via %s\n", col.Space, cfg.Embedding.Provider)
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	start := time.Now()
	res, err := a.Retriever.Search(ctx, *query, *topK, domain.Filter{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Query answered in %s\n\n", time.Since(start).Round(time.Millisecond))

	if len(res.Matches) == 0 {
		fmt.Println("No matches.")
		return
	}

	fmt.Printf("Top %d semantic matches:\n\n", len(res.Matches))

	totalScore := 0.0
	sources := make(map[string]int)
	for i, m := range res.Matches {
		preview := []rune(m.Text)
		if len(preview) > 150 {
			preview = append(preview[:150], []rune("...")...)
		}
		text := strings.ReplaceAll(string(preview), "\n", " ")

		similarity := 1 - m.Distance
		totalScore += similarity
		sources[m.Metadata.Source]++

		rating := "LOW"
		if similarity > 0.7 {
			rating = "HIGH"
		} else if similarity > 0.5 {
			rating = "GOOD"
		} else if similarity > 0.3 {
			rating = "OK"
		}

		fmt.Printf("%d. [%s %.3f] %s #%d\n", i+1, rating, similarity, filepath.Base(m.Metadata.Source), m.Metadata.ChunkIndex)
		fmt.Printf("   %s\n\n", text)
	}

	avgScore := totalScore / float64(len(res.Matches))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average similarity: %.3f\n", avgScore)
	fmt.Printf("  Top-1 similarity:   %.3f\n", 1-res.Matches[0].Distance)
	fmt.Printf("  Distinct documents: %d\n", len(sources))

	if avgScore > 0.5 {
		fmt.Println("  Status: GOOD - semantic search working well")
	} else if avgScore > 0.3 {
		fmt.Println("  Status: OK - results are somewhat related")
	} else {
		fmt.Println("  Status: POOR - may need another embedding model or re-ingestion")
	}
}
