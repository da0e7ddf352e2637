package usecase

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"finrag/internal/port"
)

// DefaultAnalysisTopK is the number of chunks retrieved per metric.
const DefaultAnalysisTopK = 3

//go:embed templates/*.txt
var templateFS embed.FS

var promptTemplate = template.Must(
	template.New("metric_analysis.txt").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(templateFS, "templates/metric_analysis.txt"),
)

// PromptData is the input of the metric analysis prompt.
type PromptData struct {
	Ticker  string
	Metric  string
	Value   string
	Context string
	Sources []string
}

// RenderPrompt renders the metric analysis prompt.
func RenderPrompt(data PromptData) (string, error) {
	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering prompt for %s: %w", data.Metric, err)
	}
	return buf.String(), nil
}

// MetricAnalysis is the LLM answer for one metric plus the chunks it was grounded on.
type MetricAnalysis struct {
	Value    string   `json:"value"`
	Response string   `json:"response"`
	Sources  []string `json:"sources"`
}

// Analyzer runs one retrieval and one completion per metric.
type Analyzer struct {
	retriever *Retriever
	llm       port.Completer
	queries   MetricQueryBuilder
	topK      int
	logger    *slog.Logger
}

func NewAnalyzer(retriever *Retriever, llm port.Completer, topK int, logger *slog.Logger) *Analyzer {
	if topK <= 0 {
		topK = DefaultAnalysisTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{retriever: retriever, llm: llm, topK: topK, logger: logger}
}

// Prepare retrieves context for one metric and renders its prompt without
// calling the language model.
func (a *Analyzer) Prepare(ctx context.Context, ticker, metric, value string) (PromptData, string, error) {
	query := a.queries.Build(ticker, metric)
	text, sources := a.retriever.Retrieve(ctx, query, a.topK)
	data := PromptData{
		Ticker:  ticker,
		Metric:  metric,
		Value:   value,
		Context: text,
		Sources: sources,
	}
	prompt, err := RenderPrompt(data)
	return data, prompt, err
}

// Analyze produces an analysis for every metric. values supplies the current
// figure per metric and may be missing entries. An empty retrieval context is
// not an error; a failed completion aborts the run.
func (a *Analyzer) Analyze(ctx context.Context, ticker string, metrics []string, values map[string]string) (map[string]MetricAnalysis, error) {
	out := make(map[string]MetricAnalysis, len(metrics))
	for _, metric := range metrics {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, prompt, err := a.Prepare(ctx, ticker, metric, values[metric])
		if err != nil {
			return nil, err
		}
		if data.Context == "" {
			a.logger.Warn("no context retrieved", "ticker", ticker, "metric", metric)
		}

		a.logger.Debug("calling llm", "metric", metric, "model", a.llm.ModelName(), "prompt_chars", len(prompt))
		resp, err := a.llm.Complete(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("analysing %s: %w", metric, err)
		}

		out[metric] = MetricAnalysis{
			Value:    data.Value,
			Response: strings.TrimSpace(resp),
			Sources:  data.Sources,
		}
	}
	return out, nil
}
