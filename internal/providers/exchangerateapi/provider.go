// Package exchangerateapi implements the v6.exchangerate-api.com rate
// provider. The service exposes one historical endpoint per calendar day,
// so a trailing range of N days costs N requests; there is no batch
// endpoint. Authentication is an API key embedded in the URL path.
//
// Free tier: 1,500 requests/month.
// Docs: https://www.exchangerate-api.com/docs
package exchangerateapi

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/smenon/ratescope/internal/infra"
	"github.com/smenon/ratescope/internal/provider"
)

const (
	providerName   = "exchangerate-api"
	defaultBaseURL = "https://v6.exchangerate-api.com/v6"
	credAPIKey     = "api_key"
)

// Provider implements provider.Provider for exchangerate-api.com.
type Provider struct {
	provider.BaseProvider
	apiKey      string
	baseURL     string
	log         *slog.Logger
	concurrency int
}

// Option customizes a Provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL. Used by tests to point the
// provider at a local server.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// WithLogger sets the logger used for per-day fetch warnings.
func WithLogger(log *slog.Logger) Option {
	return func(p *Provider) { p.log = log }
}

// WithConcurrency bounds the number of in-flight per-day requests made by
// the historical fetcher.
func WithConcurrency(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// New creates the provider and registers its fetchers.
func New(opts ...Option) *Provider {
	p := &Provider{
		BaseProvider: provider.NewBaseProvider(
			providerName,
			"exchangerate-api.com - historical and latest currency exchange rates",
			"https://www.exchangerate-api.com",
			[]provider.ProviderCredential{
				{
					Name:        credAPIKey,
					Description: "API key from exchangerate-api.com",
					Required:    true,
					EnvVar:      "EXCHANGERATE_API_KEY",
				},
			},
		),
		baseURL:     defaultBaseURL,
		log:         slog.Default(),
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.RegisterFetcher(newHistoryFetcher(p))
	p.RegisterFetcher(newLatestFetcher(p))
	return p
}

// Init stores the API key.
func (p *Provider) Init(credentials map[string]string) error {
	if err := p.BaseProvider.Init(credentials); err != nil {
		return err
	}
	p.apiKey = credentials[credAPIKey]
	return nil
}

// Ping checks connectivity and key validity against the latest endpoint.
func (p *Provider) Ping(ctx context.Context) error {
	url := fmt.Sprintf("%s/%s/latest/USD", p.baseURL, p.apiKey)
	var resp latestResponse
	if err := infra.GetJSON(ctx, url, jsonHeaders(), &resp); err != nil {
		return fmt.Errorf("exchangerate-api ping: %w", err)
	}
	if resp.Result != resultSuccess {
		return fmt.Errorf("exchangerate-api ping: %s", resp.ErrorType)
	}
	return nil
}

func jsonHeaders() map[string]string {
	return map[string]string{"Accept": "application/json"}
}
