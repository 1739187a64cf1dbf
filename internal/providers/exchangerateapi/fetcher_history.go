package exchangerateapi

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smenon/ratescope/internal/infra"
	"github.com/smenon/ratescope/internal/provider"
	"github.com/smenon/ratescope/pkg/models"
)

const (
	defaultDays        = 30
	defaultConcurrency = 5
)

// --- CurrencyHistorical fetcher ---

// historyFetcher fetches one rate per calendar day for the trailing day
// range, ending today inclusive. Days the provider cannot serve are
// skipped with a warning; a day on which the response succeeds but lacks
// the target currency is skipped the same way (the two cases are not
// distinguished). The result map may therefore cover any subset of the
// requested range, including none of it.
type historyFetcher struct {
	provider.BaseFetcher
	p *Provider
}

func newHistoryFetcher(p *Provider) *historyFetcher {
	return &historyFetcher{
		BaseFetcher: provider.NewBaseFetcher(
			provider.ModelCurrencyHistorical,
			"Historical per-day exchange rates from exchangerate-api.com",
			[]string{provider.ParamBase, provider.ParamTarget},
			[]string{provider.ParamDays},
			10, time.Second,
		),
		p: p,
	}
}

func (f *historyFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	base := params[provider.ParamBase]
	target := params[provider.ParamTarget]

	days := defaultDays
	if v := params[provider.ParamDays]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid days %q", v)
		}
		days = n
	}

	end := time.Now()

	// One request per day, fanned out under a bounded group. Each day is
	// independent: a failed day logs a warning and writes nothing, and
	// must never cancel the remaining days, so the goroutines only ever
	// return nil. Writes go to disjoint date keys under one mutex.
	rates := make(map[string]float64, days)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.p.concurrency)

	for i := 0; i < days; i++ {
		date := end.AddDate(0, 0, -i)
		g.Go(func() error {
			rate, ok := f.fetchDay(gctx, base, target, date)
			if !ok {
				return nil
			}
			mu.Lock()
			rates[date.Format(models.DateLayout)] = rate
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &provider.FetchResult{Data: rates, FetchedAt: time.Now()}, nil
}

// fetchDay retrieves the target currency's rate for a single date.
// The bool result reports whether a usable rate was obtained; every
// failure mode (transport error, HTTP error, provider-reported failure,
// target currency absent from the conversion table) yields false.
func (f *historyFetcher) fetchDay(ctx context.Context, base, target string, date time.Time) (float64, bool) {
	if err := f.RateLimit(ctx); err != nil {
		return 0, false
	}

	url := fmt.Sprintf("%s/%s/history/%s/%d/%d/%d",
		f.p.baseURL, f.p.apiKey, base, date.Year(), int(date.Month()), date.Day())

	var resp historyResponse
	if err := infra.GetJSON(ctx, url, jsonHeaders(), &resp); err != nil {
		f.p.log.Warn("skipping day", "provider", providerName,
			"date", date.Format(models.DateLayout), "err", err)
		return 0, false
	}

	table, err := resp.rates()
	if err != nil {
		f.p.log.Warn("skipping day", "provider", providerName,
			"date", date.Format(models.DateLayout), "err", err)
		return 0, false
	}

	rate, ok := table[target]
	if !ok {
		f.p.log.Warn("skipping day", "provider", providerName,
			"date", date.Format(models.DateLayout),
			"err", fmt.Sprintf("no rate for %s", target))
		return 0, false
	}
	return rate, true
}
