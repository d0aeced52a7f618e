package newsjob

import (
	"log/slog"

	"github.com/aashrilshazar/WorldSalesMap/internal/config"
	"github.com/aashrilshazar/WorldSalesMap/internal/fetcher"
	"github.com/aashrilshazar/WorldSalesMap/internal/repository"
	"github.com/aashrilshazar/WorldSalesMap/pkg/news"
)

// NewFromConfig wires the search client, rate limiter and firm fetcher into
// an Engine. Missing search credentials leave the engine without a fetcher.
func NewFromConfig(cfg *config.Config, store Store, firms repository.FirmSource) *Engine {
	opts := Options{
		BatchSize:  cfg.News.FirmsPerBatch,
		PerFirmCap: cfg.News.ResultsPerFirm,
		Cooldown:   cfg.News.RefreshCooldown,
		Lease:      cfg.News.BatchLease,
		MaxErrors:  cfg.News.MaxErrorEntries,
	}

	limiter := news.NewRateLimiter(news.NewWatermark(), news.RateLimitConfig{
		Interval:   cfg.RateLimit.Interval,
		MaxRetries: cfg.RateLimit.MaxRetries,
		Backoff:    cfg.RateLimit.Backoff,
		Jitter:     cfg.RateLimit.Jitter,
	})

	client, err := news.NewGoogleSearchClient(cfg.Search.APIKey, cfg.Search.CX, cfg.Search.StrictCX, limiter, cfg.Search.Timeout)
	if err != nil {
		opts.MissingCredentials = cfg.MissingSearchCredentials()
		slog.Warn("news search disabled", "error", err, "missing", opts.MissingCredentials)
		return NewEngine(store, firms, nil, opts)
	}

	firmFetcher := fetcher.NewFirmFetcher(
		client,
		fetcher.NewQueryBuilder(cfg),
		fetcher.NewNormalizer(cfg.Search.AllowlistSites, cfg.News.RecencyWindow),
		cfg.News.ResultsPerFirm,
	)
	return NewEngine(store, firms, firmFetcher, opts)
}
