package newsjob

import (
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/aashrilshazar/WorldSalesMap/internal/model"
)

var baseTime = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func article(id, firm string, ageHours int, tags ...string) model.Article {
	return model.Article{
		ID:          id,
		Firm:        firm,
		Headline:    "headline " + id,
		PublishedAt: baseTime.Add(-time.Duration(ageHours) * time.Hour),
		Tags:        tags,
	}
}

func ids(items []model.Article) []string {
	out := make([]string, len(items))
	for i, a := range items {
		out[i] = a.ID
	}
	return out
}

func TestMergeArticles_OverwritesAndUnionsTags(t *testing.T) {
	old := article("a", "Acme", 2, "fund")
	updated := article("a", "Acme", 1, "deal")
	updated.Headline = "new headline"

	merged := MergeArticles([]model.Article{old}, []model.Article{updated}, 3)

	assert.Equal(t, 1, len(merged))
	assert.Equal(t, "new headline", merged[0].Headline)
	assert.Equal(t, []string{"deal", "fund"}, merged[0].Tags)
	assert.Equal(t, []string{"fund"}, old.Tags)
}

func TestMergeArticles_NewestFirst(t *testing.T) {
	existing := []model.Article{article("a", "Acme", 5), article("b", "Birch", 1)}
	incoming := []model.Article{article("c", "Cedar", 3)}

	merged := MergeArticles(existing, incoming, 3)

	assert.Equal(t, []string{"b", "c", "a"}, ids(merged))
}

func TestMergeArticles_PerFirmCap(t *testing.T) {
	existing := []model.Article{article("a1", "Acme", 4), article("a2", "Acme", 3), article("b1", "Birch", 9)}
	incoming := []model.Article{article("a3", "Acme", 1), article("a4", "Acme", 2)}

	merged := MergeArticles(existing, incoming, 2)

	// a2 and a1 are older than the two newest Acme articles
	assert.Equal(t, []string{"a3", "a4", "b1"}, ids(merged))
}

func TestMergeArticles_Idempotent(t *testing.T) {
	var snapshot []model.Article
	for i := 0; i < 6; i++ {
		snapshot = append(snapshot, article(fmt.Sprintf("s%d", i), fmt.Sprintf("Firm %d", i%2), i, "fund"))
	}
	batch := []model.Article{article("s1", "Firm 1", 0, "deal"), article("n1", "Firm 0", 7)}

	once := MergeArticles(snapshot, batch, 3)
	twice := MergeArticles(once, batch, 3)

	assert.Equal(t, once, twice)
}

func TestMergeArticles_SkipsMissingIDs(t *testing.T) {
	merged := MergeArticles(nil, []model.Article{article("", "Acme", 1)}, 3)

	assert.Equal(t, 0, len(merged))
}

func TestMergeErrors(t *testing.T) {
	entry := func(firm string) model.ErrorEntry {
		return model.ErrorEntry{Firm: firm, Message: "boom", At: baseTime}
	}

	assert.Equal(t, true, MergeErrors(nil, nil, 5) == nil)

	merged := MergeErrors(
		[]model.ErrorEntry{entry("a"), entry("b"), entry("c")},
		[]model.ErrorEntry{entry("d"), entry("e")},
		4,
	)

	assert.Equal(t, 4, len(merged))
	assert.Equal(t, "b", merged[0].Firm)
	assert.Equal(t, "e", merged[3].Firm)
}
