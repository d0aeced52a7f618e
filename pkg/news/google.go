package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const googleSearchURL = "https://www.googleapis.com/customsearch/v1"

// GoogleSearchClient queries the Google Custom Search JSON API.
type GoogleSearchClient struct {
	apiKey     string
	cx         string
	strictCX   string
	baseURL    string
	httpClient *http.Client
	limiter    *RateLimiter
}

func NewGoogleSearchClient(apiKey, cx, strictCX string, limiter *RateLimiter, timeout time.Duration) (*GoogleSearchClient, error) {
	if apiKey == "" || (cx == "" && strictCX == "") {
		return nil, ErrMissingCredentials
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if limiter == nil {
		limiter = NewRateLimiter(nil, DefaultRateLimitConfig())
	}

	return &GoogleSearchClient{
		apiKey:     apiKey,
		cx:         cx,
		strictCX:   strictCX,
		baseURL:    googleSearchURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}, nil
}

func (c *GoogleSearchClient) Name() string {
	return "GoogleCSE"
}

// Search runs q against the strict engine first when asked to, falling back
// to the general engine on error or when the strict engine returns nothing.
// Items answered by the strict engine are marked Strict.
func (c *GoogleSearchClient) Search(ctx context.Context, q Query) ([]SearchItem, error) {
	var engines []string
	if q.PreferStrict && c.strictCX != "" {
		engines = append(engines, c.strictCX)
	}
	if c.cx != "" && c.cx != c.strictCX {
		engines = append(engines, c.cx)
	}
	if len(engines) == 0 {
		engines = append(engines, c.strictCX)
	}

	for i, cx := range engines {
		items, err := c.searchWithSortFallback(ctx, q, cx)
		if err != nil {
			if i == len(engines)-1 {
				return nil, err
			}
			slog.Warn("search engine failed, falling back", "cx", cx, "error", err)
			continue
		}

		if len(items) > 0 {
			if cx == c.strictCX && c.strictCX != c.cx {
				for i := range items {
					items[i].Strict = true
				}
			}
			return items, nil
		}
	}

	return []SearchItem{}, nil
}

func (c *GoogleSearchClient) searchWithSortFallback(ctx context.Context, q Query, cx string) ([]SearchItem, error) {
	items, err := c.search(ctx, q, cx)
	if err == nil || q.Sort == "" {
		return items, err
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(apiErr.Message), "sort") {
		slog.Warn("search rejected sort parameter, retrying without it", "cx", cx, "sort", q.Sort)
		q.Sort = ""
		return c.search(ctx, q, cx)
	}

	return nil, err
}

func (c *GoogleSearchClient) search(ctx context.Context, q Query, cx string) ([]SearchItem, error) {
	endpoint := c.baseURL + "?" + c.params(q, cx).Encode()

	var items []SearchItem
	err := c.limiter.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("google search request: %w", err)
		}
		req.Header.Set("X-Goog-Api-Key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// url.Error repeats the request URL; keep only the operation and cause.
			var urlErr *url.Error
			if errors.As(err, &urlErr) {
				return fmt.Errorf("google search fetch: %s: %w", urlErr.Op, urlErr.Err)
			}
			return fmt.Errorf("google search fetch: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return decodeAPIError(resp)
		}

		var raw googleResponse
		if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
			return fmt.Errorf("google search decode: %w", err)
		}

		items = raw.Items
		return nil
	})
	if err != nil {
		return nil, err
	}

	if items == nil {
		items = []SearchItem{}
	}
	return items, nil
}

func (c *GoogleSearchClient) params(q Query, cx string) url.Values {
	num := q.Num
	if num < 1 {
		num = 10
	}

	v := url.Values{}
	v.Set("cx", cx)
	v.Set("q", q.Q)
	v.Set("num", strconv.Itoa(min(10, num)))

	optional := map[string]string{
		"exactTerms":   q.ExactTerms,
		"excludeTerms": q.ExcludeTerms,
		"dateRestrict": q.DateRestrict,
		"sort":         q.Sort,
		"gl":           q.GL,
		"hl":           q.HL,
		"lr":           q.LR,
		"safe":         q.Safe,
	}
	for key, value := range optional {
		if value != "" {
			v.Set(key, value)
		}
	}

	return v
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var raw googleErrorResponse
	if err := json.Unmarshal(body, &raw); err == nil && raw.Error.Message != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: raw.Error.Message}
	}

	message := strings.TrimSpace(string(body))
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: message}
}

type googleResponse struct {
	Items []SearchItem `json:"items"`
}

type googleErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
