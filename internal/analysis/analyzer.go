package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/smenon/ratescope/internal/instrument"
	"github.com/smenon/ratescope/internal/provider"
	"github.com/smenon/ratescope/pkg/models"
)

// Analyzer runs the fetch → preprocess → analyze → insight pipeline for
// one currency pair over a trailing day range. Every stage runs through
// the instrumentation wrapper, so re-invocation with identical inputs
// during the analyzer's lifetime short-circuits to the memoized result.
type Analyzer struct {
	registry     *provider.Registry
	ins          *instrument.Instrumentor
	pair         models.Pair
	days         int
	providerName string // optional override; empty selects the default
}

// Report bundles the pipeline's full output for presentation consumers.
type Report struct {
	Pair       models.Pair              `json:"pair"`
	Days       int                      `json:"days"`
	Series     models.AnalyzedSeries    `json:"series"`
	Statistics models.SummaryStatistics `json:"statistics"`
	Insights   []models.Insight         `json:"insights"`
}

// Option customizes an Analyzer.
type Option func(*Analyzer)

// WithProvider pins the analyzer to a named provider instead of the
// registry default (with fallback).
func WithProvider(name string) Option {
	return func(a *Analyzer) { a.providerName = name }
}

// WithCache shares an existing memo cache between analyzers, letting the
// memoization span a whole session rather than one analyzer's lifetime.
func WithCache(cache *instrument.Cache) Option {
	return func(a *Analyzer) { a.ins = a.ins.WithCache(cache) }
}

// New creates an Analyzer. Arguments are validated for presence only;
// currency codes are opaque and never checked against an ISO list.
func New(registry *provider.Registry, log *slog.Logger, pair models.Pair, days int, opts ...Option) (*Analyzer, error) {
	if strings.TrimSpace(pair.Base) == "" {
		return nil, fmt.Errorf("base currency is required")
	}
	if strings.TrimSpace(pair.Target) == "" {
		return nil, fmt.Errorf("target currency is required")
	}
	if days <= 0 {
		return nil, fmt.Errorf("days must be positive, got %d", days)
	}

	a := &Analyzer{
		registry: registry,
		ins:      instrument.New(log),
		pair:     pair,
		days:     days,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// FetchRates retrieves the raw date→rate mapping through the registry.
// The mapping may cover any subset of the requested range, including
// none of it; per-day failures have already been logged and skipped by
// the provider.
func (a *Analyzer) FetchRates(ctx context.Context) (map[string]float64, error) {
	v, err := a.ins.Do("fetch_exchange_rates", func() (any, error) {
		params := provider.QueryParams{
			provider.ParamBase:   a.pair.Base,
			provider.ParamTarget: a.pair.Target,
			provider.ParamDays:   strconv.Itoa(a.days),
		}
		if a.providerName != "" {
			params[provider.ParamProvider] = a.providerName
		}

		result, err := a.registry.FetchWithFallback(ctx, provider.ModelCurrencyHistorical, params)
		if err != nil {
			return nil, err
		}
		rates, ok := result.Data.(map[string]float64)
		if !ok {
			return nil, fmt.Errorf("unexpected data type %T for %s", result.Data, result.Model)
		}
		return rates, nil
	}, a.pair.Base, a.pair.Target, a.days, a.providerName)
	if err != nil {
		return nil, err
	}
	return v.(map[string]float64), nil
}

// AnalyzeData fetches and produces the AnalyzedSeries.
func (a *Analyzer) AnalyzeData(ctx context.Context) (models.AnalyzedSeries, error) {
	raw, err := a.FetchRates(ctx)
	if err != nil {
		return nil, err
	}

	v, err := a.ins.Do("analyze_data", func() (any, error) {
		return BuildAnalyzed(raw), nil
	}, raw)
	if err != nil {
		return nil, err
	}
	return v.(models.AnalyzedSeries), nil
}

// GetStatistics computes the summary scalars for a previously analyzed
// series.
func (a *Analyzer) GetStatistics(series models.AnalyzedSeries) (models.SummaryStatistics, error) {
	v, err := a.ins.Do("get_statistics", func() (any, error) {
		stats, err := Statistics(series)
		if err != nil {
			return nil, err
		}
		return stats, nil
	}, fingerprint(series))
	if err != nil {
		return models.SummaryStatistics{}, err
	}
	return v.(models.SummaryStatistics), nil
}

// GenerateInsights derives the ordered insight statements for a
// previously analyzed series.
func (a *Analyzer) GenerateInsights(series models.AnalyzedSeries) ([]models.Insight, error) {
	v, err := a.ins.Do("generate_insights", func() (any, error) {
		insights, err := Insights(series)
		if err != nil {
			return nil, err
		}
		return insights, nil
	}, fingerprint(series))
	if err != nil {
		return nil, err
	}
	return v.([]models.Insight), nil
}

// Run executes the whole pipeline. An empty series is surfaced as
// ErrNoData rather than a zeroed report.
func (a *Analyzer) Run(ctx context.Context) (*Report, error) {
	series, err := a.AnalyzeData(ctx)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, ErrNoData
	}

	stats, err := a.GetStatistics(series)
	if err != nil {
		return nil, err
	}
	insights, err := a.GenerateInsights(series)
	if err != nil {
		return nil, err
	}

	return &Report{
		Pair:       a.pair,
		Days:       a.days,
		Series:     series,
		Statistics: stats,
		Insights:   insights,
	}, nil
}

// fingerprint renders a series in a stable content-based form for memo
// keying. The derived columns are functions of the (date, rate) rows, so
// the rows alone identify the series.
func fingerprint(series models.AnalyzedSeries) string {
	var b strings.Builder
	for _, row := range series {
		fmt.Fprintf(&b, "%s=%v;", row.Date.Format(models.DateLayout), row.Rate)
	}
	return b.String()
}
