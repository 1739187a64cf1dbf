package exchangerateapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smenon/ratescope/internal/infra"
	"github.com/smenon/ratescope/internal/provider"
	"github.com/smenon/ratescope/pkg/models"
)

const testKey = "test-key"

// dayBehavior controls how the fake API answers a given date.
type dayBehavior int

const (
	dayOK dayBehavior = iota
	dayHTTPError
	dayProviderFailure
	dayMissingTarget
)

// newHistoryServer fakes the /KEY/history/BASE/Y/M/D endpoint. Behavior
// is keyed on the requested date, defaulting to success with a fixed
// NZD rate.
func newHistoryServer(t *testing.T, behaviors map[string]dayBehavior) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		// KEY/history/BASE/Y/M/D
		require.Len(t, parts, 6)
		require.Equal(t, testKey, parts[0])
		require.Equal(t, "history", parts[1])

		key := parts[3] + "/" + parts[4] + "/" + parts[5]
		switch behaviors[key] {
		case dayHTTPError:
			w.WriteHeader(http.StatusInternalServerError)
		case dayProviderFailure:
			_ = json.NewEncoder(w).Encode(historyResponse{
				Result:    "error",
				ErrorType: "plan-upgrade-required",
			})
		case dayMissingTarget:
			_ = json.NewEncoder(w).Encode(historyResponse{
				Result:          resultSuccess,
				BaseCode:        parts[2],
				ConversionRates: map[string]float64{"USD": 0.62},
			})
		default:
			_ = json.NewEncoder(w).Encode(historyResponse{
				Result:          resultSuccess,
				BaseCode:        parts[2],
				ConversionRates: map[string]float64{"NZD": 1.07, "USD": 0.62},
			})
		}
	}))
}

// dateKey renders the URL path segment the fake server keys behaviors on,
// matching the fetcher's non-padded %d formatting.
func dateKey(date time.Time) string {
	return fmt.Sprintf("%d/%d/%d", date.Year(), int(date.Month()), date.Day())
}

func newTestProvider(t *testing.T, baseURL string) *Provider {
	t.Helper()
	p := New(
		WithBaseURL(baseURL),
		WithLogger(infra.NewLoggerTo(&bytes.Buffer{}, "warn", "text")),
		WithConcurrency(2),
	)
	require.NoError(t, p.Init(map[string]string{credAPIKey: testKey}))
	return p
}

func TestHistoryFetchAllDaysSucceed(t *testing.T) {
	srv := newHistoryServer(t, nil)
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	f := p.Fetcher(provider.ModelCurrencyHistorical)
	require.NotNil(t, f)

	result, err := f.Fetch(context.Background(), provider.QueryParams{
		provider.ParamBase:   "AUD",
		provider.ParamTarget: "NZD",
		provider.ParamDays:   "5",
	})
	require.NoError(t, err)

	rates, ok := result.Data.(map[string]float64)
	require.True(t, ok)
	assert.Len(t, rates, 5)
	for date, rate := range rates {
		_, perr := time.Parse(models.DateLayout, date)
		assert.NoError(t, perr, "map keys must be YYYY-MM-DD, got %q", date)
		assert.Equal(t, 1.07, rate)
	}
}

func TestHistoryFetchSkipsFailedDays(t *testing.T) {
	now := time.Now()
	behaviors := map[string]dayBehavior{
		dateKey(now.AddDate(0, 0, -1)): dayHTTPError,
		dateKey(now.AddDate(0, 0, -2)): dayProviderFailure,
		dateKey(now.AddDate(0, 0, -3)): dayMissingTarget,
	}
	srv := newHistoryServer(t, behaviors)
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	f := p.Fetcher(provider.ModelCurrencyHistorical)

	result, err := f.Fetch(context.Background(), provider.QueryParams{
		provider.ParamBase:   "AUD",
		provider.ParamTarget: "NZD",
		provider.ParamDays:   "5",
	})
	require.NoError(t, err, "per-day failures must not fail the fetch")

	rates := result.Data.(map[string]float64)
	// Three of five days were unusable, each for a different reason, and
	// all three are merged into the same skip outcome.
	assert.Len(t, rates, 2)
	assert.NotContains(t, rates, now.AddDate(0, 0, -1).Format(models.DateLayout))
	assert.NotContains(t, rates, now.AddDate(0, 0, -2).Format(models.DateLayout))
	assert.NotContains(t, rates, now.AddDate(0, 0, -3).Format(models.DateLayout))
}

func TestHistoryFetchAllDaysFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	f := p.Fetcher(provider.ModelCurrencyHistorical)

	result, err := f.Fetch(context.Background(), provider.QueryParams{
		provider.ParamBase:   "AUD",
		provider.ParamTarget: "NZD",
		provider.ParamDays:   "3",
	})
	require.NoError(t, err)

	// Total failure is an empty map, not an error; the empty-data
	// condition surfaces later in the pipeline.
	rates := result.Data.(map[string]float64)
	assert.Empty(t, rates)
}

func TestHistoryFetchInvalidDays(t *testing.T) {
	p := newTestProvider(t, "http://127.0.0.1:0")
	f := p.Fetcher(provider.ModelCurrencyHistorical)

	for _, days := range []string{"0", "-3", "abc"} {
		_, err := f.Fetch(context.Background(), provider.QueryParams{
			provider.ParamBase:   "AUD",
			provider.ParamTarget: "NZD",
			provider.ParamDays:   days,
		})
		assert.Error(t, err, "days=%q", days)
	}
}

func TestHistoryFetchWarnsPerSkippedDay(t *testing.T) {
	now := time.Now()
	srv := newHistoryServer(t, map[string]dayBehavior{
		dateKey(now): dayProviderFailure,
	})
	defer srv.Close()

	var buf bytes.Buffer
	p := New(
		WithBaseURL(srv.URL),
		WithLogger(infra.NewLoggerTo(&buf, "warn", "text")),
	)
	require.NoError(t, p.Init(map[string]string{credAPIKey: testKey}))

	f := p.Fetcher(provider.ModelCurrencyHistorical)
	_, err := f.Fetch(context.Background(), provider.QueryParams{
		provider.ParamBase:   "AUD",
		provider.ParamTarget: "NZD",
		provider.ParamDays:   "2",
	})
	require.NoError(t, err)

	logged := buf.String()
	assert.Contains(t, logged, "skipping day")
	assert.Contains(t, logged, "plan-upgrade-required")
}

func TestLatestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/"+testKey+"/latest/AUD", r.URL.Path)
		_ = json.NewEncoder(w).Encode(latestResponse{
			Result:          resultSuccess,
			BaseCode:        "AUD",
			ConversionRates: map[string]float64{"NZD": 1.0815},
		})
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	f := p.Fetcher(provider.ModelCurrencySnapshot)
	require.NotNil(t, f)

	result, err := f.Fetch(context.Background(), provider.QueryParams{
		provider.ParamBase:   "AUD",
		provider.ParamTarget: "NZD",
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0815, result.Data)
}

func TestLatestFetchMissingTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(latestResponse{
			Result:          resultSuccess,
			ConversionRates: map[string]float64{"USD": 0.62},
		})
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	f := p.Fetcher(provider.ModelCurrencySnapshot)

	_, err := f.Fetch(context.Background(), provider.QueryParams{
		provider.ParamBase:   "AUD",
		provider.ParamTarget: "XXX",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no rate for XXX")
}

func TestInitRequiresAPIKey(t *testing.T) {
	p := New()
	err := p.Init(map[string]string{})
	require.Error(t, err)
	var credErr *provider.ErrInvalidCredentials
	assert.ErrorAs(t, err, &credErr)
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/"+testKey+"/latest/USD", r.URL.Path)
		_ = json.NewEncoder(w).Encode(latestResponse{Result: resultSuccess})
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	assert.NoError(t, p.Ping(context.Background()))
}

func TestPingInvalidKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(latestResponse{Result: "error", ErrorType: "invalid-key"})
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	err := p.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid-key")
}
