package fetcher

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/aashrilshazar/WorldSalesMap/internal/model"
	"github.com/aashrilshazar/WorldSalesMap/pkg/news"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"Jan 2, 2006",
	"January 2, 2006",
}

// Date keys in priority order within each pagemap group.
var (
	structuredDateKeys = []string{"datepublished", "datemodified"}
	socialDateKeys     = []string{"article:published_time", "article:modified_time", "og:published_time", "og:updated_time"}
	genericDateKeys    = []string{"pubdate", "publishdate", "date", "dc.date"}
	sourceKeys         = []string{"og:site_name", "twitter:site", "application-name"}
)

// Normalizer converts provider results into Articles.
type Normalizer struct {
	allowlist []string
	window    time.Duration
	now       func() time.Time
}

func NewNormalizer(allowlistSites []string, window time.Duration) *Normalizer {
	domains := make([]string, 0, len(allowlistSites))
	for _, site := range allowlistSites {
		site = strings.ToLower(strings.TrimSpace(site))
		site = strings.TrimPrefix(site, "site:")
		if site != "" {
			domains = append(domains, site)
		}
	}

	return &Normalizer{
		allowlist: domains,
		window:    window,
		now:       time.Now,
	}
}

// Normalize returns the Article for item, or false when the item has no link,
// comes from a domain outside the allow-list, or is older than the recency
// window.
func (n *Normalizer) Normalize(item news.SearchItem, firm string) (*model.Article, bool) {
	link := canonicalURL(item.Link)
	if link == "" {
		return nil, false
	}

	if !n.allowed(link, item.DisplayLink) {
		return nil, false
	}

	now := n.now()
	publishedAt, ok := extractPublishedAt(item.Pagemap)
	if !ok {
		publishedAt = now
	}
	if now.Sub(publishedAt) > n.window {
		return nil, false
	}

	headline := collapseSpace(item.Title)
	if headline == "" {
		headline = htmlText(item.HTMLTitle)
	}
	summary := collapseSpace(item.Snippet)
	if summary == "" {
		summary = htmlText(item.HTMLSnippet)
	}

	article := &model.Article{
		ID:          ArticleID(firm, link, headline),
		Firm:        firm,
		Headline:    headline,
		Summary:     summary,
		Source:      extractSource(item),
		URL:         link,
		PublishedAt: publishedAt.UTC(),
		Tags:        []string{},
	}
	for _, category := range DetectSignals(article.Headline, article.Summary, article.Source) {
		article.AddTag(category)
	}
	if item.Strict {
		article.AddTag(model.TagStrictCX)
	}

	return article, true
}

// ArticleID hashes the fields that identify one document for one firm.
func ArticleID(firm, link, headline string) string {
	sum := sha256.Sum256([]byte(firm + "|" + link + "|" + headline))
	return "news_" + fmt.Sprintf("%x", sum)[:16]
}

// DetectSignals returns the signal categories whose keywords occur in text.
func DetectSignals(text ...string) []model.Category {
	haystack := strings.ToLower(strings.Join(text, " "))

	var found []model.Category
	for _, signal := range signalKeywords {
		for _, keyword := range signal.keywords {
			if strings.Contains(haystack, keyword) {
				found = append(found, signal.category)
				break
			}
		}
	}
	return found
}

func (n *Normalizer) allowed(link, displayLink string) bool {
	if len(n.allowlist) == 0 {
		return true
	}

	candidates := []string{strings.ToLower(link)}
	if u, err := url.Parse(link); err == nil && u.Host != "" {
		candidates = append(candidates, strings.ToLower(u.Host))
	}
	if displayLink != "" {
		candidates = append(candidates, strings.ToLower(displayLink))
	}

	for _, domain := range n.allowlist {
		for _, c := range candidates {
			if strings.Contains(c, domain) {
				return true
			}
		}
	}
	return false
}

func extractPublishedAt(pagemap map[string][]map[string]any) (time.Time, bool) {
	var candidates []string

	for _, group := range []string{"newsarticle", "article"} {
		for _, entry := range pagemap[group] {
			candidates = appendValues(candidates, entry, structuredDateKeys)
		}
	}
	for _, keys := range [][]string{socialDateKeys, genericDateKeys} {
		for _, meta := range pagemap["metatags"] {
			candidates = appendValues(candidates, meta, keys)
		}
	}
	for _, entry := range pagemap["hnews"] {
		metas, _ := entry["metas"].([]any)
		for _, m := range metas {
			if meta, ok := m.(map[string]any); ok {
				candidates = appendValues(candidates, meta, []string{"content"})
			}
		}
	}

	for _, candidate := range candidates {
		if t, ok := parseDate(candidate); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func extractSource(item news.SearchItem) string {
	for _, meta := range item.Pagemap["metatags"] {
		for _, key := range sourceKeys {
			if v := stringValue(meta[key]); v != "" {
				return strings.TrimPrefix(v, "@")
			}
		}
	}
	return item.DisplayLink
}

func appendValues(dst []string, entry map[string]any, keys []string) []string {
	for _, key := range keys {
		if v := stringValue(entry[key]); v != "" {
			dst = append(dst, v)
		}
	}
	return dst
}

func stringValue(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func parseDate(value string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func canonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}
	return raw
}

func htmlText(fragment string) string {
	if fragment == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	return collapseSpace(doc.Text())
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
