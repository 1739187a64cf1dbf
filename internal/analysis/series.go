// Package analysis turns raw per-day rate readings into an ordered,
// typed series with derived columns, summary statistics, and qualitative
// insights.
package analysis

import (
	"math"
	"sort"
	"time"

	"github.com/smenon/ratescope/pkg/models"
)

// movingAvgWindow is the trailing row count for the moving average,
// inclusive of the current row.
const movingAvgWindow = 7

// BuildSeries converts a raw date→rate mapping into a RateSeries sorted
// strictly ascending by date. Rows with an unparsable date key or a
// missing, non-finite, or non-positive rate are dropped; this row loss is
// irreversible and not reported.
func BuildSeries(raw map[string]float64) models.RateSeries {
	series := make(models.RateSeries, 0, len(raw))
	for key, rate := range raw {
		date, err := time.Parse(models.DateLayout, key)
		if err != nil {
			continue
		}
		if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
			continue
		}
		series = append(series, models.RatePoint{Date: date, Rate: rate})
	}

	sort.Slice(series, func(i, j int) bool {
		return series[i].Date.Before(series[j].Date)
	})

	// Map keys are unique strings but distinct keys can parse to the same
	// calendar day; keep the first.
	deduped := series[:0]
	for i, p := range series {
		if i > 0 && p.Date.Equal(series[i-1].Date) {
			continue
		}
		deduped = append(deduped, p)
	}
	return deduped
}

// Analyze computes the derived columns over a sorted series in a single
// left-to-right pass. DailyChange is rate[i]-rate[i-1], absent for the
// first row; MovingAvg7 is the trailing 7-row mean, absent for the first
// six rows. Series of length 0 or 1 are valid inputs and produce no
// derived values.
func Analyze(series models.RateSeries) models.AnalyzedSeries {
	out := make(models.AnalyzedSeries, len(series))

	var windowSum float64
	for i, p := range series {
		row := models.AnalyzedPoint{Date: p.Date, Rate: p.Rate}

		if i > 0 {
			change := p.Rate - series[i-1].Rate
			row.DailyChange = &change
		}

		windowSum += p.Rate
		if i >= movingAvgWindow {
			windowSum -= series[i-movingAvgWindow].Rate
		}
		if i >= movingAvgWindow-1 {
			avg := windowSum / movingAvgWindow
			row.MovingAvg7 = &avg
		}

		out[i] = row
	}
	return out
}

// BuildAnalyzed is the preprocess+analyze composition over a raw mapping.
func BuildAnalyzed(raw map[string]float64) models.AnalyzedSeries {
	return Analyze(BuildSeries(raw))
}
