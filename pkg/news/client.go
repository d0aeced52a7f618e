package news

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrMissingCredentials = errors.New("missing search credentials")

// Query is one search request against the provider.
type Query struct {
	Q            string
	ExactTerms   string
	ExcludeTerms string
	Num          int
	DateRestrict string
	Sort         string
	GL           string
	HL           string
	LR           string
	Safe         string

	// PreferStrict routes the query to the strict search engine first when
	// one is configured.
	PreferStrict bool
}

// SearchItem is one ranked document returned by the provider.
type SearchItem struct {
	Title       string                      `json:"title"`
	HTMLTitle   string                      `json:"htmlTitle"`
	Snippet     string                      `json:"snippet"`
	HTMLSnippet string                      `json:"htmlSnippet"`
	Link        string                      `json:"link"`
	DisplayLink string                      `json:"displayLink"`
	Pagemap     map[string][]map[string]any `json:"pagemap"`

	// Strict is set when the strict search engine served the item.
	Strict bool `json:"-"`
}

type SearchClient interface {
	Search(ctx context.Context, q Query) ([]SearchItem, error)
	Name() string
}

// APIError is a non-2xx response from the provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("search API status %d: %s", e.StatusCode, e.Message)
}

// IsQuotaError reports whether err signals provider throttling worth retrying.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == 429 {
		return true
	}

	message := strings.ToLower(err.Error())
	return strings.Contains(message, "quota") || strings.Contains(message, "rate limit")
}
