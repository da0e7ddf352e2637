package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"finrag/internal/usecase"
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the analysis prompt for a metric without calling the LLM",
	Long: `Retrieve context for one ticker and metric and print the rendered
analysis prompt, for inspection or for pasting into another model.

Examples:
  finrag prompt --ticker AAPL --metric pe_ratio --value pe_ratio=32.36`,
	Args: cobra.NoArgs,
	RunE: runPrompt,
}

func init() {
	rootCmd.AddCommand(promptCmd)
	promptCmd.Flags().StringVar(&analyzeTicker, "ticker", "", "stock ticker (required)")
	promptCmd.Flags().StringSliceVarP(&analyzeMetrics, "metric", "m", nil, "metric to render (repeatable)")
	promptCmd.Flags().StringVar(&analyzeValuesFile, "values", "", "YAML file mapping metric names to current values")
	promptCmd.Flags().StringToStringVar(&analyzeValues, "value", nil, "metric value (metric=value, repeatable)")
	promptCmd.Flags().IntVarP(&analyzeTopK, "top-k", "k", usecase.DefaultAnalysisTopK, "chunks retrieved per metric")
	promptCmd.MarkFlagRequired("ticker")
	promptCmd.MarkFlagRequired("metric")
}

func runPrompt(cmd *cobra.Command, args []string) error {
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

	an := a.Analyzer(analyzeTopK)
	for i, metric := range analyzeMetrics {
		_, prompt, err := an.Prepare(ctx, analyzeTicker, metric, values[metric])
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Println("\n----------------------------------------")
		}
		fmt.Println(prompt)
	}
	return nil
}
