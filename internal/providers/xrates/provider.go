// Package xrates implements a keyless fallback rate provider that scrapes
// the x-rates.com historical tables. It serves the same historical model
// as exchangerate-api and is registered behind it in priority, so it is
// only consulted when the primary provider cannot produce a series.
package xrates

import (
	"context"
	"log/slog"

	"github.com/smenon/ratescope/internal/provider"
)

const (
	providerName   = "x-rates"
	defaultBaseURL = "https://www.x-rates.com"
)

// Provider implements provider.Provider by scraping x-rates.com.
type Provider struct {
	provider.BaseProvider
	baseURL string
	log     *slog.Logger
}

// Option customizes a Provider.
type Option func(*Provider)

// WithBaseURL overrides the site base URL. Used by tests.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// WithLogger sets the logger used for per-day fetch warnings.
func WithLogger(log *slog.Logger) Option {
	return func(p *Provider) { p.log = log }
}

// New creates the provider and registers its fetchers. No credentials are
// required.
func New(opts ...Option) *Provider {
	p := &Provider{
		BaseProvider: provider.NewBaseProvider(
			providerName,
			"x-rates.com - scraped historical exchange rates (keyless fallback)",
			"https://www.x-rates.com",
			nil,
		),
		baseURL: defaultBaseURL,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.RegisterFetcher(newHistoryFetcher(p))
	return p
}

// Ping fetches the site root to confirm reachability.
func (p *Provider) Ping(ctx context.Context) error {
	_, err := fetchDocument(ctx, p.baseURL)
	return err
}
