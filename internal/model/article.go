package model

import "time"

type Category string

const (
	CategoryFund      Category = "fund"
	CategoryDeal      Category = "deal"
	CategoryHire      Category = "hire"
	CategoryPromotion Category = "promotion"
	CategoryGeneral   Category = "general"

	// TagStrictCX marks articles served by the curated search engine.
	TagStrictCX Category = "strict-cx"
)

// SignalCategories lists the signal buckets in query priority order.
var SignalCategories = []Category{CategoryFund, CategoryDeal, CategoryHire, CategoryPromotion}

type Article struct {
	ID          string    `json:"id"`
	Firm        string    `json:"firm"`
	Headline    string    `json:"headline"`
	Summary     string    `json:"summary"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
	Tags        []string  `json:"tags"`
}

// HasTag reports whether the article carries tag.
func (a *Article) HasTag(tag Category) bool {
	for _, t := range a.Tags {
		if t == string(tag) {
			return true
		}
	}
	return false
}

// AddTag appends tag unless it is already present.
func (a *Article) AddTag(tag Category) {
	if !a.HasTag(tag) {
		a.Tags = append(a.Tags, string(tag))
	}
}

type ErrorEntry struct {
	Firm    string    `json:"firm"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type Snapshot struct {
	Items       []Article    `json:"items"`
	LastUpdated *time.Time   `json:"lastUpdated"`
	Errors      []ErrorEntry `json:"errors"`
	JobID       string       `json:"jobId,omitempty"`
	JobStatus   JobStatus    `json:"jobStatus,omitempty"`
}

// EmptySnapshot is what readers see before the first refresh.
func EmptySnapshot() *Snapshot {
	return &Snapshot{Items: []Article{}}
}
