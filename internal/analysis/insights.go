package analysis

import (
	"fmt"
	"math"

	"github.com/smenon/ratescope/pkg/models"
)

const (
	// volatilityThreshold classifies the series as volatile when the
	// standard deviation of daily change exceeds it. A fixed policy
	// constant, currency-pair-agnostic; not derived from the data.
	volatilityThreshold = 0.01

	// significanceSigma is the multiplier on the standard deviation of
	// absolute daily changes used to flag significant days.
	significanceSigma = 2.0
)

// Insights derives the ordered qualitative statements from an analyzed
// series: trend, significant-change count (only when non-zero), the dates
// of the rate extremes, and a volatility classification. The output order
// is fixed for display. Ties on the extreme values report the first date
// in ascending order; an equal first and last rate counts as the
// non-increasing trend.
//
// Standard deviations here are sample standard deviations (n-1 divisor).
func Insights(series models.AnalyzedSeries) ([]models.Insight, error) {
	if len(series) == 0 {
		return nil, ErrNoData
	}

	insights := make([]models.Insight, 0, 5)
	days := len(series)

	// Trend: last versus first rate.
	if series[len(series)-1].Rate > series[0].Rate {
		insights = append(insights, models.Insight(fmt.Sprintf(
			"The exchange rate has increased over the past %d days.", days)))
	} else {
		insights = append(insights, models.Insight(fmt.Sprintf(
			"The exchange rate has decreased or unchanged over the past %d days.", days)))
	}

	// Significant changes: |daily change| beyond mean + 2·stddev of the
	// absolute changes.
	changes := dailyChanges(series)
	absChanges := make([]float64, len(changes))
	for i, c := range changes {
		absChanges[i] = math.Abs(c)
	}
	threshold := mean(absChanges) + significanceSigma*sampleStdDev(absChanges)
	significant := 0
	for _, c := range absChanges {
		if c > threshold {
			significant++
		}
	}
	if significant > 0 {
		insights = append(insights, models.Insight(fmt.Sprintf(
			"There were %d days with significant changes in the exchange rate.", significant)))
	}

	// Extremes: first date in ascending order wins a tie, which the
	// strict comparisons guarantee over the sorted series.
	bestIdx, worstIdx := 0, 0
	for i, row := range series {
		if row.Rate > series[bestIdx].Rate {
			bestIdx = i
		}
		if row.Rate < series[worstIdx].Rate {
			worstIdx = i
		}
	}
	insights = append(insights, models.Insight(fmt.Sprintf(
		"The highest exchange rate was on %s.", series[bestIdx].Date.Format(models.DateLayout))))
	insights = append(insights, models.Insight(fmt.Sprintf(
		"The lowest exchange rate was on %s.", series[worstIdx].Date.Format(models.DateLayout))))

	// Volatility: stddev of signed daily change against the fixed threshold.
	if sampleStdDev(changes) > volatilityThreshold {
		insights = append(insights, models.Insight("The exchange rate has been quite volatile."))
	} else {
		insights = append(insights, models.Insight("The exchange rate has been relatively stable."))
	}

	return insights, nil
}

// dailyChanges collects the defined daily-change values.
func dailyChanges(series models.AnalyzedSeries) []float64 {
	out := make([]float64, 0, len(series))
	for _, row := range series {
		if row.DailyChange != nil {
			out = append(out, *row.DailyChange)
		}
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStdDev returns the sample standard deviation (n-1 divisor), zero
// for fewer than two values.
func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sumSq float64
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}
