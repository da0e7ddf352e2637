package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"finrag/internal/usecase"
)

var (
	analyzeTicker     string
	analyzeMetrics    []string
	analyzeValuesFile string
	analyzeValues     map[string]string
	analyzeTopK       int
	analyzeJSON       bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyse financial metrics with retrieved context and a local LLM",
	Long: `For every metric, retrieve the most relevant chunks for the ticker and
metric, render the analysis prompt and ask the configured language model.
Metric values come from --value flags or a YAML file mapping metric to value.

Examples:
  finrag analyze --ticker AAPL --metric eps --metric pe_ratio
  finrag analyze --ticker AAPL --metric pe_ratio --value pe_ratio=32.36
  finrag analyze --ticker MSFT --metric roe --values metrics.yaml --json`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzeTicker, "ticker", "", "stock ticker (required)")
	analyzeCmd.Flags().StringSliceVarP(&analyzeMetrics, "metric", "m", nil, "metric to analyse (repeatable)")
	analyzeCmd.Flags().StringVar(&analyzeValuesFile, "values", "", "YAML file mapping metric names to current values")
	analyzeCmd.Flags().StringToStringVar(&analyzeValues, "value", nil, "metric value (metric=value, repeatable, overrides --values)")
	analyzeCmd.Flags().IntVarP(&analyzeTopK, "top-k", "k", usecase.DefaultAnalysisTopK, "chunks retrieved per metric")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "output as JSON")
	analyzeCmd.MarkFlagRequired("ticker")
	analyzeCmd.MarkFlagRequired("metric")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	values, err := metricValues()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.Analyzer(analyzeTopK).Analyze(ctx, analyzeTicker, analyzeMetrics, values)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if analyzeJSON {
		return printJSON(struct {
			Ticker  string                             `json:"ticker"`
			Results map[string]usecase.MetricAnalysis `json:"results"`
		}{analyzeTicker, results})
	}

	for _, metric := range analyzeMetrics {
		r := results[metric]
		fmt.Printf("=== %s %s", analyzeTicker, metric)
		if r.Value != "" {
			fmt.Printf(" (%s)", r.Value)
		}
		fmt.Println(" ===")
		fmt.Println(r.Response)
		if len(r.Sources) > 0 {
			fmt.Printf("\nSources: %v\n", r.Sources)
		}
		fmt.Println()
	}
	return nil
}

// metricValues merges the --values file with --value flags.
func metricValues() (map[string]string, error) {
	values := make(map[string]string)

	if analyzeValuesFile != "" {
		data, err := os.ReadFile(analyzeValuesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read values file: %w", err)
		}
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse values file: %w", err)
		}
		for k, v := range raw {
			if v != nil {
				values[k] = fmt.Sprint(v)
			}
		}
	}

	keys := make([]string, 0, len(analyzeValues))
	for k := range analyzeValues {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		values[k] = analyzeValues[k]
	}
	return values, nil
}
