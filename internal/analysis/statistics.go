package analysis

import (
	"errors"

	"github.com/smenon/ratescope/pkg/models"
)

// ErrNoData reports that no usable series could be produced, either
// because every day in range failed to fetch or because a reduction was
// asked to run over an empty series. Statistics and insights refuse to
// run in that state rather than returning zeros that could be mistaken
// for real values.
var ErrNoData = errors.New("no exchange rate data")

// Statistics computes the summary scalars over a non-empty series in a
// single pass. The daily-change extremes skip the first row's undefined
// change and are zero for a single-row series.
func Statistics(series models.AnalyzedSeries) (models.SummaryStatistics, error) {
	if len(series) == 0 {
		return models.SummaryStatistics{}, ErrNoData
	}

	stats := models.SummaryStatistics{
		BestRate:  series[0].Rate,
		WorstRate: series[0].Rate,
	}

	var rateSum float64
	firstChange := true
	for _, row := range series {
		rateSum += row.Rate
		if row.Rate > stats.BestRate {
			stats.BestRate = row.Rate
		}
		if row.Rate < stats.WorstRate {
			stats.WorstRate = row.Rate
		}

		if row.DailyChange == nil {
			continue
		}
		change := *row.DailyChange
		if firstChange || change > stats.MaxDailyChange {
			stats.MaxDailyChange = change
		}
		if firstChange || change < stats.MinDailyChange {
			stats.MinDailyChange = change
		}
		firstChange = false
	}
	stats.AverageRate = rateSum / float64(len(series))

	return stats, nil
}
