package fetcher

import "github.com/aashrilshazar/WorldSalesMap/internal/model"

// signalKeywords drives tag detection: a category is attached when any of
// its keywords is a substring of the lower-cased headline, summary and source.
var signalKeywords = []struct {
	category model.Category
	keywords []string
}{
	{
		category: model.CategoryFund,
		keywords: []string{
			"fund", "funds", "funding", "raise", "raises", "raised", "raising",
			"fundraise", "fundraising", "close", "closes", "closed", "closing",
			"capital raise",
		},
	},
	{
		category: model.CategoryDeal,
		keywords: []string{
			"acquire", "acquires", "acquired", "acquisition", "deal", "merger",
			"merges", "merging", "investment", "invests", "invested", "backs",
			"take-private", "buyout",
		},
	},
	{
		category: model.CategoryHire,
		keywords: []string{
			"hire", "hires", "hired", "hiring", "appoints", "appointed",
			"appointing", "joins", "join", "joining", "named", "recruits",
			"recruited",
		},
	},
	{
		category: model.CategoryPromotion,
		keywords: []string{
			"promote", "promotes", "promoted", "promotion", "promotions",
			"elevates", "elevated", "elevating", "named managing director",
			"named partner", "promoted to",
		},
	},
}
