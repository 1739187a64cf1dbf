package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatistics(t *testing.T) {
	series := BuildAnalyzed(map[string]float64{
		"2024-01-01": 1.10,
		"2024-01-02": 1.12,
		"2024-01-03": 1.08,
	})

	stats, err := Statistics(series)
	require.NoError(t, err)

	assert.InDelta(t, 1.12, stats.BestRate, 1e-9)
	assert.InDelta(t, 1.08, stats.WorstRate, 1e-9)
	assert.InDelta(t, 1.10, stats.AverageRate, 1e-9)
	assert.InDelta(t, 0.02, stats.MaxDailyChange, 1e-9)
	assert.InDelta(t, -0.04, stats.MinDailyChange, 1e-9)
}

func TestStatisticsEmptySeries(t *testing.T) {
	_, err := Statistics(nil)
	require.ErrorIs(t, err, ErrNoData)
}

func TestStatisticsSingleRow(t *testing.T) {
	series := BuildAnalyzed(map[string]float64{"2024-01-01": 1.07})

	stats, err := Statistics(series)
	require.NoError(t, err)

	assert.Equal(t, 1.07, stats.BestRate)
	assert.Equal(t, 1.07, stats.WorstRate)
	assert.Equal(t, 1.07, stats.AverageRate)
	// No defined daily change: extremes stay zero.
	assert.Zero(t, stats.MaxDailyChange)
	assert.Zero(t, stats.MinDailyChange)
}

func TestStatisticsAllChangesNegative(t *testing.T) {
	series := BuildAnalyzed(map[string]float64{
		"2024-01-01": 1.30,
		"2024-01-02": 1.20,
		"2024-01-03": 1.05,
	})

	stats, err := Statistics(series)
	require.NoError(t, err)

	// Max must track the actual maximum even when every change is
	// negative, not default to zero.
	assert.InDelta(t, -0.10, stats.MaxDailyChange, 1e-9)
	assert.InDelta(t, -0.15, stats.MinDailyChange, 1e-9)
}
