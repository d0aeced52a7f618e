package fetcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aashrilshazar/WorldSalesMap/internal/model"
	"github.com/aashrilshazar/WorldSalesMap/pkg/news"
)

type Searcher interface {
	Search(ctx context.Context, q news.Query) ([]news.SearchItem, error)
}

// FirmFetcher collects up to a per-firm cap of recent articles for one firm.
type FirmFetcher struct {
	search     Searcher
	queries    *QueryBuilder
	normalizer *Normalizer
	limit      int
}

func NewFirmFetcher(search Searcher, queries *QueryBuilder, normalizer *Normalizer, perFirmLimit int) *FirmFetcher {
	return &FirmFetcher{
		search:     search,
		queries:    queries,
		normalizer: normalizer,
		limit:      max(1, perFirmLimit),
	}
}

// FetchForFirm runs the category queries in priority order, then the generic
// fallback if the cap is still not met. Provider errors are returned as-is.
func (f *FirmFetcher) FetchForFirm(ctx context.Context, firm string) ([]model.Article, error) {
	c := collector{seen: make(map[string]bool), limit: f.limit}

	for _, category := range model.SignalCategories {
		q, ok := f.queries.ForCategory(firm, category)
		if !ok {
			continue
		}

		items, err := f.search.Search(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("%s query for %q: %w", category, firm, err)
		}

		c.add(f.normalize(items, firm, ""))
		if c.full() {
			return c.articles, nil
		}
	}

	items, err := f.search.Search(ctx, f.queries.Fallback(firm))
	if err != nil {
		return nil, fmt.Errorf("fallback query for %q: %w", firm, err)
	}
	c.add(f.normalize(items, firm, model.CategoryGeneral))

	slog.Debug("firm fetch complete", "firm", firm, "articles", len(c.articles))
	return c.articles, nil
}

func (f *FirmFetcher) normalize(items []news.SearchItem, firm string, extra model.Category) []model.Article {
	articles := make([]model.Article, 0, len(items))
	for _, item := range items {
		article, ok := f.normalizer.Normalize(item, firm)
		if !ok {
			continue
		}
		if extra != "" {
			article.AddTag(extra)
		}
		articles = append(articles, *article)
	}
	return articles
}

type collector struct {
	seen     map[string]bool
	articles []model.Article
	limit    int
}

func (c *collector) add(articles []model.Article) {
	for _, a := range articles {
		if c.full() {
			return
		}
		if c.seen[a.ID] {
			continue
		}
		c.seen[a.ID] = true
		c.articles = append(c.articles, a)
	}
}

func (c *collector) full() bool {
	return len(c.articles) >= c.limit
}
