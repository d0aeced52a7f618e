package fetcher

import (
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/aashrilshazar/WorldSalesMap/internal/config"
	"github.com/aashrilshazar/WorldSalesMap/internal/model"
)

func testQueryConfig() *config.Config {
	cfg := config.Default()
	cfg.Search.Template = `"<firm name>" news <FIRM NAME>`
	cfg.Search.NegativeSites = []string{"indeed.com", "site:linkedin.com/jobs"}
	cfg.Search.ExcludeTerms = []string{"apply now", "webinar"}
	cfg.Search.Keywords = map[string][]string{
		"fund": {"final close", "raises fund"},
		"Deal": {"acquires"},
	}
	return cfg
}

func TestQueryBuilder_ForCategory(t *testing.T) {
	b := NewQueryBuilder(testQueryConfig())

	q, ok := b.ForCategory("Acme Capital", model.CategoryFund)

	assert.Equal(t, true, ok)
	assert.Equal(t, `"Acme Capital" ("final close" OR "raises fund") -site:indeed.com -site:linkedin.com/jobs`, q.Q)
	assert.Equal(t, "Acme Capital", q.ExactTerms)
	assert.Equal(t, `"apply now" "webinar"`, q.ExcludeTerms)
	assert.Equal(t, true, q.PreferStrict)
	assert.Equal(t, 10, q.Num)
	assert.Equal(t, "d1", q.DateRestrict)
	assert.Equal(t, "date", q.Sort)
}

func TestQueryBuilder_CategoryKeysAreCaseInsensitive(t *testing.T) {
	b := NewQueryBuilder(testQueryConfig())

	q, ok := b.ForCategory("Acme Capital", model.CategoryDeal)

	assert.Equal(t, true, ok)
	assert.Equal(t, `"Acme Capital" ("acquires") -site:indeed.com -site:linkedin.com/jobs`, q.Q)
}

func TestQueryBuilder_UnknownCategory(t *testing.T) {
	b := NewQueryBuilder(testQueryConfig())

	_, ok := b.ForCategory("Acme Capital", model.CategoryHire)

	assert.Equal(t, false, ok)
}

func TestQueryBuilder_AllowlistSuffix(t *testing.T) {
	cfg := testQueryConfig()
	cfg.Search.AllowlistSites = []string{"site:pehub.com", "site:buyoutsinsider.com"}
	b := NewQueryBuilder(cfg)

	q, _ := b.ForCategory("Acme", model.CategoryDeal)

	assert.Equal(t, `"Acme" ("acquires") -site:indeed.com -site:linkedin.com/jobs (site:pehub.com OR site:buyoutsinsider.com)`, q.Q)
}

func TestQueryBuilder_Fallback(t *testing.T) {
	b := NewQueryBuilder(testQueryConfig())

	q := b.Fallback("Birch & Co")

	assert.Equal(t, `"Birch & Co" news Birch & Co -site:indeed.com -site:linkedin.com/jobs`, q.Q)
	assert.Equal(t, "Birch & Co", q.ExactTerms)
	assert.Equal(t, false, q.PreferStrict)
}

func TestQueryBuilder_Deterministic(t *testing.T) {
	cfg := testQueryConfig()

	a, _ := NewQueryBuilder(cfg).ForCategory("Acme", model.CategoryFund)
	b, _ := NewQueryBuilder(cfg).ForCategory("Acme", model.CategoryFund)

	assert.Equal(t, a, b)
}
