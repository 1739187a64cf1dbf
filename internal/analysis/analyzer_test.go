package analysis

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smenon/ratescope/internal/infra"
	"github.com/smenon/ratescope/internal/instrument"
	"github.com/smenon/ratescope/internal/provider"
	"github.com/smenon/ratescope/pkg/models"
)

// stubFetcher serves a fixed rate table and counts invocations.
type stubFetcher struct {
	provider.BaseFetcher
	rates map[string]float64
	err   error
	calls int
}

func newStubFetcher(rates map[string]float64, err error) *stubFetcher {
	return &stubFetcher{
		BaseFetcher: provider.NewBaseFetcher(
			provider.ModelCurrencyHistorical, "stub historical rates",
			[]string{provider.ParamBase, provider.ParamTarget}, []string{provider.ParamDays},
			1000, time.Second),
		rates: rates,
		err:   err,
	}
}

func (f *stubFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &provider.FetchResult{Data: f.rates, FetchedAt: time.Now()}, nil
}

type stubProvider struct {
	provider.BaseProvider
}

func newStubProvider(name string, f provider.Fetcher) *stubProvider {
	sp := &stubProvider{
		BaseProvider: provider.NewBaseProvider(name, "stub", "", nil),
	}
	sp.RegisterFetcher(f)
	return sp
}

func stubRegistry(t *testing.T, f provider.Fetcher) *provider.Registry {
	t.Helper()
	reg := provider.NewRegistry()
	require.NoError(t, reg.Register(newStubProvider("stub", f)))
	return reg
}

func testLogger() *bytes.Buffer {
	return &bytes.Buffer{}
}

func TestAnalyzerRun(t *testing.T) {
	fetcher := newStubFetcher(map[string]float64{
		"2024-01-01": 1.10,
		"2024-01-02": 1.12,
		"2024-01-03": 1.08,
	}, nil)
	reg := stubRegistry(t, fetcher)
	log := infra.NewLoggerTo(testLogger(), "info", "text")

	a, err := New(reg, log, models.Pair{Base: "AUD", Target: "NZD"}, 3)
	require.NoError(t, err)

	report, err := a.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "AUD", report.Pair.Base)
	assert.Equal(t, 3, report.Days)
	require.Len(t, report.Series, 3)
	assert.InDelta(t, 1.12, report.Statistics.BestRate, 1e-9)
	assert.InDelta(t, 1.08, report.Statistics.WorstRate, 1e-9)
	require.NotEmpty(t, report.Insights)
	assert.Len(t, report.Insights, 4)
}

func TestAnalyzerMemoizesFetch(t *testing.T) {
	fetcher := newStubFetcher(map[string]float64{"2024-01-01": 1.07, "2024-01-02": 1.08}, nil)
	reg := stubRegistry(t, fetcher)
	log := infra.NewLoggerTo(testLogger(), "info", "text")

	a, err := New(reg, log, models.Pair{Base: "AUD", Target: "NZD"}, 2)
	require.NoError(t, err)

	ctx := context.Background()
	r1, err := a.Run(ctx)
	require.NoError(t, err)
	r2, err := a.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.calls, "second run must be served from the memo cache")
	assert.Equal(t, r1.Statistics, r2.Statistics)
	assert.Equal(t, r1.Insights, r2.Insights)
}

func TestAnalyzerSharedCacheAcrossInstances(t *testing.T) {
	fetcher := newStubFetcher(map[string]float64{"2024-01-01": 1.07, "2024-01-02": 1.08}, nil)
	reg := stubRegistry(t, fetcher)
	log := infra.NewLoggerTo(testLogger(), "info", "text")
	shared := instrument.NewCache()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		a, err := New(reg, log, models.Pair{Base: "AUD", Target: "NZD"}, 2, WithCache(shared))
		require.NoError(t, err)
		_, err = a.Run(ctx)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, fetcher.calls, "analyzers sharing a cache must share fetch results")
}

func TestAnalyzerSharedCacheKeyedByProvider(t *testing.T) {
	def := newStubFetcher(map[string]float64{"2024-01-01": 2.0, "2024-01-02": 2.1}, nil)
	pinned := newStubFetcher(map[string]float64{"2024-01-01": 9.0, "2024-01-02": 9.1}, nil)

	reg := provider.NewRegistry()
	require.NoError(t, reg.Register(newStubProvider("default", def)))
	require.NoError(t, reg.Register(newStubProvider("pinned", pinned)))

	log := infra.NewLoggerTo(testLogger(), "info", "text")
	shared := instrument.NewCache()
	ctx := context.Background()
	pair := models.Pair{Base: "AUD", Target: "NZD"}

	a1, err := New(reg, log, pair, 2, WithCache(shared))
	require.NoError(t, err)
	r1, err := a1.Run(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 2.1, r1.Statistics.BestRate, 1e-9)

	// Pinning a different provider changes what the fetch unit retrieves,
	// so it must not be served the default provider's cached rates.
	a2, err := New(reg, log, pair, 2, WithCache(shared), WithProvider("pinned"))
	require.NoError(t, err)
	r2, err := a2.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, pinned.calls, "pinned provider must be consulted despite the shared cache")
	assert.InDelta(t, 9.1, r2.Statistics.BestRate, 1e-9)
}

func TestAnalyzerEmptyDataIsErrNoData(t *testing.T) {
	fetcher := newStubFetcher(map[string]float64{}, nil)
	reg := stubRegistry(t, fetcher)
	log := infra.NewLoggerTo(testLogger(), "info", "text")

	a, err := New(reg, log, models.Pair{Base: "AUD", Target: "NZD"}, 30)
	require.NoError(t, err)

	_, err = a.Run(context.Background())
	require.ErrorIs(t, err, ErrNoData)
}

func TestAnalyzerValidation(t *testing.T) {
	reg := provider.NewRegistry()
	log := infra.NewLoggerTo(testLogger(), "info", "text")

	_, err := New(reg, log, models.Pair{Base: "", Target: "NZD"}, 30)
	assert.Error(t, err)

	_, err = New(reg, log, models.Pair{Base: "AUD", Target: " "}, 30)
	assert.Error(t, err)

	_, err = New(reg, log, models.Pair{Base: "AUD", Target: "NZD"}, 0)
	assert.Error(t, err)
}

func TestAnalyzerProviderOverride(t *testing.T) {
	good := newStubFetcher(map[string]float64{"2024-01-01": 2.0, "2024-01-02": 2.1}, nil)
	other := newStubFetcher(map[string]float64{"2024-01-01": 9.0, "2024-01-02": 9.1}, nil)

	reg := provider.NewRegistry()
	require.NoError(t, reg.Register(newStubProvider("default", other)))
	require.NoError(t, reg.Register(newStubProvider("pinned", good)))

	log := infra.NewLoggerTo(testLogger(), "info", "text")
	a, err := New(reg, log, models.Pair{Base: "AUD", Target: "NZD"}, 2, WithProvider("pinned"))
	require.NoError(t, err)

	report, err := a.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, good.calls)
	assert.Equal(t, 0, other.calls)
	assert.InDelta(t, 2.1, report.Statistics.BestRate, 1e-9)
}
