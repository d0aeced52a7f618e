package newsjob

import (
	"sort"

	"github.com/aashrilshazar/WorldSalesMap/internal/model"
)

// MergeArticles unions existing and incoming by id, newest first, keeping at
// most perFirmCap articles per firm. A repeated id takes the incoming fields
// and the union of both tag sets.
func MergeArticles(existing, incoming []model.Article, perFirmCap int) []model.Article {
	merged := make([]model.Article, 0, len(existing)+len(incoming))
	index := make(map[string]int, len(existing)+len(incoming))

	for _, batch := range [][]model.Article{existing, incoming} {
		for _, a := range batch {
			if a.ID == "" {
				continue
			}
			i, ok := index[a.ID]
			if !ok {
				index[a.ID] = len(merged)
				merged = append(merged, cloneArticle(a))
				continue
			}
			previous := merged[i]
			merged[i] = cloneArticle(a)
			for _, tag := range previous.Tags {
				merged[i].AddTag(model.Category(tag))
			}
		}
	}

	sortNewestFirst(merged)

	perFirm := make(map[string]int)
	capped := merged[:0]
	for _, a := range merged {
		if perFirm[a.Firm] >= perFirmCap {
			continue
		}
		perFirm[a.Firm]++
		capped = append(capped, a)
	}
	return capped
}

// MergeErrors appends incoming to existing and keeps the newest limit entries.
// An empty result is nil.
func MergeErrors(existing, incoming []model.ErrorEntry, limit int) []model.ErrorEntry {
	all := make([]model.ErrorEntry, 0, len(existing)+len(incoming))
	all = append(all, existing...)
	all = append(all, incoming...)

	if len(all) == 0 {
		return nil
	}
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all
}

func sortNewestFirst(items []model.Article) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
}

func cloneArticle(a model.Article) model.Article {
	a.Tags = append([]string{}, a.Tags...)
	return a
}
