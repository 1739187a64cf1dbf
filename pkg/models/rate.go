// Package models defines the data types exchanged between the rate
// providers, the analysis pipeline, and presentation consumers
// (CLI, REST API, export).
package models

import (
	"encoding/json"
	"time"
)

// DateLayout is the calendar-day format used for provider keys and display.
const DateLayout = "2006-01-02"

// Pair identifies a currency pair.
type Pair struct {
	Base   string `json:"base"`   // e.g., "AUD"
	Target string `json:"target"` // e.g., "NZD"
}

// String returns the conventional six-letter pair symbol, e.g. "AUDNZD".
func (p Pair) String() string { return p.Base + p.Target }

// RatePoint is a single day's exchange rate reading.
type RatePoint struct {
	Date time.Time `json:"date"`
	Rate float64   `json:"rate"`
}

// RateSeries is a rate-per-day series, strictly ascending by date,
// no duplicate dates, no missing rates.
type RateSeries []RatePoint

// AnalyzedPoint extends a RatePoint with derived columns. DailyChange is
// nil for the first row; MovingAvg7 is nil for the first six rows.
type AnalyzedPoint struct {
	Date        time.Time `json:"date"`
	Rate        float64   `json:"rate"`
	DailyChange *float64  `json:"daily_change,omitempty"`
	MovingAvg7  *float64  `json:"moving_average_7d,omitempty"`
}

// AnalyzedSeries preserves the date ordering of the RateSeries it was
// derived from.
type AnalyzedSeries []AnalyzedPoint

// Rates returns the rate column.
func (s AnalyzedSeries) Rates() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Rate
	}
	return out
}

// SummaryStatistics holds the scalar reductions over a full AnalyzedSeries.
// MaxDailyChange and MinDailyChange ignore the first row's undefined change
// and are zero when the series has fewer than two rows.
type SummaryStatistics struct {
	BestRate       float64 `json:"best_rate"`
	WorstRate      float64 `json:"worst_rate"`
	AverageRate    float64 `json:"average_rate"`
	MaxDailyChange float64 `json:"max_daily_change"`
	MinDailyChange float64 `json:"min_daily_change"`
}

// Insight is a human-readable statement derived from an analyzed series.
type Insight string

// ExportRecord is one row of the records-oriented export form, using the
// tabular column names consumers expect.
type ExportRecord struct {
	Date        string   `json:"Date"` // ISO-8601
	Rate        float64  `json:"Exchange Rate"`
	DailyChange *float64 `json:"Daily Change"`
	MovingAvg7  *float64 `json:"7-Day Moving Average"`
}

// ExportRecords serializes the series as records-oriented JSON with
// ISO-8601 dates. The mapping is lossless: every row and derived column
// of the AnalyzedSeries appears in the output.
func ExportRecords(s AnalyzedSeries) ([]byte, error) {
	records := make([]ExportRecord, len(s))
	for i, p := range s {
		records[i] = ExportRecord{
			Date:        p.Date.UTC().Format(time.RFC3339),
			Rate:        p.Rate,
			DailyChange: p.DailyChange,
			MovingAvg7:  p.MovingAvg7,
		}
	}
	return json.Marshal(records)
}

// ConversionPoint is the value of a fixed base-currency amount converted
// through the day's rate.
type ConversionPoint struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

// ConversionOverTime converts an initial amount through each day's rate,
// producing the data behind a "100 units over time" view.
func ConversionOverTime(s AnalyzedSeries, initialAmount float64) []ConversionPoint {
	out := make([]ConversionPoint, len(s))
	for i, p := range s {
		out[i] = ConversionPoint{Date: p.Date, Amount: initialAmount / p.Rate}
	}
	return out
}
