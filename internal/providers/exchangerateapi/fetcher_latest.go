package exchangerateapi

import (
	"context"
	"fmt"
	"time"

	"github.com/smenon/ratescope/internal/infra"
	"github.com/smenon/ratescope/internal/provider"
)

// --- CurrencySnapshot fetcher ---

type latestFetcher struct {
	provider.BaseFetcher
	p *Provider
}

func newLatestFetcher(p *Provider) *latestFetcher {
	return &latestFetcher{
		BaseFetcher: provider.NewBaseFetcher(
			provider.ModelCurrencySnapshot,
			"Latest exchange rate from exchangerate-api.com",
			[]string{provider.ParamBase, provider.ParamTarget},
			nil,
			10, time.Second,
		),
		p: p,
	}
}

func (f *latestFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	base := params[provider.ParamBase]
	target := params[provider.ParamTarget]

	if err := f.RateLimit(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s/latest/%s", f.p.baseURL, f.p.apiKey, base)
	var resp latestResponse
	if err := infra.GetJSON(ctx, url, jsonHeaders(), &resp); err != nil {
		return nil, fmt.Errorf("exchangerate-api latest %s: %w", base, err)
	}
	if resp.Result != resultSuccess {
		return nil, fmt.Errorf("exchangerate-api latest %s: %s", base, resp.ErrorType)
	}

	rate, ok := resp.ConversionRates[target]
	if !ok {
		return nil, fmt.Errorf("exchangerate-api latest %s: no rate for %s", base, target)
	}

	return &provider.FetchResult{Data: rate, FetchedAt: time.Now()}, nil
}
