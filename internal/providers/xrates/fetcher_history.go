package xrates

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/smenon/ratescope/internal/infra"
	"github.com/smenon/ratescope/internal/provider"
	"github.com/smenon/ratescope/pkg/models"
)

const defaultDays = 30

// --- CurrencyHistorical fetcher ---

// historyFetcher scrapes one historical-table page per calendar day.
// Requests run sequentially at 1 req/s; scraping a public site any harder
// invites blocking. Failed or unparsable days are skipped with a warning,
// matching the tolerant per-day semantics of the primary provider.
type historyFetcher struct {
	provider.BaseFetcher
	p *Provider
}

func newHistoryFetcher(p *Provider) *historyFetcher {
	return &historyFetcher{
		BaseFetcher: provider.NewBaseFetcher(
			provider.ModelCurrencyHistorical,
			"Historical per-day exchange rates scraped from x-rates.com",
			[]string{provider.ParamBase, provider.ParamTarget},
			[]string{provider.ParamDays},
			1, time.Second,
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
	rates := make(map[string]float64, days)

	for i := 0; i < days; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		date := end.AddDate(0, 0, -i)
		rate, ok := f.fetchDay(ctx, base, target, date)
		if !ok {
			continue
		}
		rates[date.Format(models.DateLayout)] = rate
	}

	return &provider.FetchResult{Data: rates, FetchedAt: time.Now()}, nil
}

// fetchDay scrapes the historical table for one date and picks the row
// linking to the target currency.
func (f *historyFetcher) fetchDay(ctx context.Context, base, target string, date time.Time) (float64, bool) {
	if err := f.RateLimit(ctx); err != nil {
		return 0, false
	}

	day := date.Format(models.DateLayout)
	url := fmt.Sprintf("%s/historical/?from=%s&amount=1&date=%s", f.p.baseURL, base, day)

	doc, err := fetchDocument(ctx, url)
	if err != nil {
		f.p.log.Warn("skipping day", "provider", providerName, "date", day, "err", err)
		return 0, false
	}

	rate, ok := findRate(doc, target)
	if !ok {
		f.p.log.Warn("skipping day", "provider", providerName, "date", day,
			"err", fmt.Sprintf("no rate for %s", target))
		return 0, false
	}
	return rate, true
}

// findRate scans the rates table for the link whose href names the target
// currency and parses the link text as the rate.
func findRate(doc *goquery.Document, target string) (float64, bool) {
	var rate float64
	found := false

	doc.Find("table.ratesTable tbody tr td a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if !strings.Contains(href, "to="+target) {
			return true
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(sel.Text()), 64)
		if err != nil {
			return true
		}
		rate = v
		found = true
		return false
	})

	return rate, found
}

// fetchDocument retrieves a page and parses it into a goquery document.
func fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	headers := map[string]string{
		"User-Agent": "Mozilla/5.0 (compatible; ratescope/1.0)",
		"Accept":     "text/html",
	}
	body, status, err := infra.DoGet(ctx, url, headers)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("GET %s: HTTP %d", url, status)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return doc, nil
}
