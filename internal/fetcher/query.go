package fetcher

import (
	"regexp"
	"strings"

	"github.com/aashrilshazar/WorldSalesMap/internal/config"
	"github.com/aashrilshazar/WorldSalesMap/internal/model"
	"github.com/aashrilshazar/WorldSalesMap/pkg/news"
)

var firmPlaceholder = regexp.MustCompile(`(?i)<firm name>`)

// QueryBuilder turns a firm and a signal category into provider queries.
// It is a pure function of its configuration.
type QueryBuilder struct {
	template        string
	keywords        map[model.Category][]string
	negativeSuffix  string
	allowlistSuffix string
	excludeTerms    string
	base            news.Query
}

func NewQueryBuilder(cfg *config.Config) *QueryBuilder {
	keywords := make(map[model.Category][]string, len(cfg.Search.Keywords))
	for category, words := range cfg.Search.Keywords {
		keywords[model.Category(strings.ToLower(category))] = words
	}

	var negative strings.Builder
	for _, site := range cfg.Search.NegativeSites {
		negative.WriteString(" -site:")
		negative.WriteString(strings.TrimPrefix(strings.TrimSpace(site), "site:"))
	}

	var allowlist string
	if len(cfg.Search.AllowlistSites) > 0 {
		allowlist = " (" + strings.Join(cfg.Search.AllowlistSites, " OR ") + ")"
	}

	quoted := make([]string, 0, len(cfg.Search.ExcludeTerms))
	for _, term := range cfg.Search.ExcludeTerms {
		quoted = append(quoted, `"`+term+`"`)
	}

	return &QueryBuilder{
		template:        cfg.Search.Template,
		keywords:        keywords,
		negativeSuffix:  negative.String(),
		allowlistSuffix: allowlist,
		excludeTerms:    strings.Join(quoted, " "),
		base: news.Query{
			Num:          cfg.ResultsPerQuery(),
			DateRestrict: cfg.Search.DateRestrict,
			Sort:         cfg.Search.Sort,
			GL:           cfg.Search.GL,
			HL:           cfg.Search.HL,
			LR:           cfg.Search.LR,
			Safe:         cfg.Search.Safe,
		},
	}
}

// ForCategory builds the query biased toward one signal category. ok is false
// when the category has no keywords configured.
func (b *QueryBuilder) ForCategory(firm string, category model.Category) (news.Query, bool) {
	words := b.keywords[category]
	if len(words) == 0 {
		return news.Query{}, false
	}

	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = `"` + w + `"`
	}

	q := b.base
	q.Q = `"` + firm + `" (` + strings.Join(quoted, " OR ") + `)` + b.negativeSuffix + b.allowlistSuffix
	q.ExactTerms = firm
	q.ExcludeTerms = b.excludeTerms
	q.PreferStrict = true
	return q, true
}

// Fallback builds the broad, category-free query.
func (b *QueryBuilder) Fallback(firm string) news.Query {
	q := b.base
	q.Q = firmPlaceholder.ReplaceAllLiteralString(b.template, firm) + b.negativeSuffix
	q.ExactTerms = firm
	q.ExcludeTerms = b.excludeTerms
	return q
}
