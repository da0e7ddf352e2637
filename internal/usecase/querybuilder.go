package usecase

import "strings"

var metricKeywords = map[string][]string{
	"eps":            {"earnings per share", "EPS", "diluted earnings"},
	"pe_ratio":       {"price to earnings", "P/E ratio", "earnings multiple", "valuation"},
	"roa":            {"return on assets", "ROA", "asset efficiency", "asset returns"},
	"pb_ratio":       {"price to book", "P/B ratio", "book value", "market to book"},
	"roe":            {"return on equity", "ROE", "shareholder return", "equity returns"},
	"debt_to_equity": {"debt to equity", "leverage", "financial leverage", "debt ratio"},
	"market_cap":     {"market capitalization", "market cap", "market value", "equity value"},
	"price_to_sales": {"price to sales", "P/S ratio", "sales multiple"},
}

// MetricQueryBuilder turns a (ticker, metric) pair into a retrieval query
// that carries the metric's common phrasings.
type MetricQueryBuilder struct{}

// Keywords returns the search phrases for metric, or nil for unknown metrics.
func (MetricQueryBuilder) Keywords(metric string) []string {
	return metricKeywords[normalizeMetric(metric)]
}

func (b MetricQueryBuilder) Build(ticker, metric string) string {
	terms := b.Keywords(metric)
	if len(terms) == 0 {
		terms = []string{strings.ReplaceAll(normalizeMetric(metric), "_", " ")}
	}
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		return strings.Join(terms, " ")
	}
	return ticker + " " + strings.Join(terms, " ")
}

func normalizeMetric(metric string) string {
	m := strings.ToLower(strings.TrimSpace(metric))
	return strings.TrimSuffix(m, "_direct")
}
