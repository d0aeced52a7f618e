package handler

import (
	"strings"
	"time"

	"github.com/aashrilshazar/WorldSalesMap/internal/model"
)

const csvHeader = "Firm,Headline,URL,Source,PublishedAt,Summary,Tags"

// RenderCSV writes one row per article. Every field is quoted, embedded
// quotes are doubled and tags are joined with ";".
func RenderCSV(items []model.Article) string {
	var b strings.Builder
	b.WriteString(csvHeader)
	b.WriteString("\n")

	for _, a := range items {
		writeCSVRow(&b,
			a.Firm,
			a.Headline,
			a.URL,
			a.Source,
			a.PublishedAt.UTC().Format(time.RFC3339),
			a.Summary,
			strings.Join(a.Tags, ";"),
		)
	}

	return b.String()
}

func writeCSVRow(b *strings.Builder, fields ...string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
}
