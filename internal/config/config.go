package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const configPathEnv = "NEWS_CONFIG"

// Config holds every setting the API and the fetcher share.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Database  DatabaseConfig  `yaml:"database"`
	Search    SearchConfig    `yaml:"search"`
	News      NewsConfig      `yaml:"news"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port        string `yaml:"port"`
	FrontendURL string `yaml:"frontend_url"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

// DatabaseConfig points at the CRM database holding the firm list. When URL
// is empty the static firm list from NewsConfig is used.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type SearchConfig struct {
	APIKey   string        `yaml:"api_key"`
	CX       string        `yaml:"cx"`
	StrictCX string        `yaml:"strict_cx"`
	Timeout  time.Duration `yaml:"timeout"`

	// Template is the generic fallback query; every "<firm name>" is
	// replaced with the firm.
	Template       string              `yaml:"template"`
	DateRestrict   string              `yaml:"date_restrict"`
	Sort           string              `yaml:"sort"`
	GL             string              `yaml:"gl"`
	HL             string              `yaml:"hl"`
	LR             string              `yaml:"lr"`
	Safe           string              `yaml:"safe"`
	FetchBatchSize int                 `yaml:"fetch_batch_size"`
	ExcludeTerms   []string            `yaml:"exclude_terms"`
	AllowlistSites []string            `yaml:"allowlist_sites"`
	NegativeSites  []string            `yaml:"negative_sites"`
	Keywords       map[string][]string `yaml:"keywords"`
}

type NewsConfig struct {
	ResultsPerFirm  int           `yaml:"results_per_firm"`
	FirmsPerBatch   int           `yaml:"firms_per_batch"`
	SnapshotTTL     time.Duration `yaml:"snapshot_ttl"`
	JobTTL          time.Duration `yaml:"job_ttl"`
	RefreshCooldown time.Duration `yaml:"refresh_cooldown"`
	RecencyWindow   time.Duration `yaml:"recency_window"`
	BatchLease      time.Duration `yaml:"batch_lease"`
	MaxErrorEntries int           `yaml:"max_error_entries"`
	Firms           []string      `yaml:"firms"`
}

type RateLimitConfig struct {
	Interval   time.Duration `yaml:"interval"`
	MaxRetries int           `yaml:"max_retries"`
	Backoff    time.Duration `yaml:"backoff"`
	Jitter     time.Duration `yaml:"jitter"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080"},
		Search: SearchConfig{
			Timeout:        10 * time.Second,
			Template:       `"<firm name>" ("fund" OR "funds" OR "raises" OR "closed" OR "deal" OR "acquisition" OR "promotes" OR "hire" OR "joins")`,
			DateRestrict:   "d1",
			Sort:           "date",
			GL:             "us",
			HL:             "en",
			Safe:           "active",
			FetchBatchSize: 10,
			ExcludeTerms:   []string{"job opening", "apply now", "careers", "webinar", "sponsored"},
			NegativeSites: []string{
				"linkedin.com/jobs",
				"indeed.com",
				"glassdoor.com",
				"ziprecruiter.com",
				"greenhouse.io",
				"lever.co",
				"builtin.com",
			},
			Keywords: map[string][]string{
				"fund":      {"final close", "raises fund", "closes fund", "fundraise", "new fund", "capital raise"},
				"deal":      {"acquires", "acquisition", "invests in", "buyout", "take-private", "merger"},
				"hire":      {"hires", "appoints", "joins", "named", "recruits"},
				"promotion": {"promotes", "promoted to", "named partner", "named managing director", "elevates"},
			},
		},
		News: NewsConfig{
			ResultsPerFirm:  3,
			FirmsPerBatch:   5,
			SnapshotTTL:     24 * time.Hour,
			JobTTL:          24 * time.Hour,
			RecencyWindow:   24 * time.Hour,
			BatchLease:      time.Minute,
			MaxErrorEntries: 500,
		},
		RateLimit: RateLimitConfig{
			Interval:   500 * time.Millisecond,
			MaxRetries: 3,
			Backoff:    15 * time.Second,
			Jitter:     250 * time.Millisecond,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			slog.Warn("config file not found, using defaults", "path", path)
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.Normalize()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Port, "PORT")
	setString(&c.Server.FrontendURL, "FRONTEND_URL")
	setString(&c.Redis.URL, "REDIS_URL")
	setString(&c.Database.URL, "DATABASE_URL")

	setString(&c.Search.APIKey, "GOOGLE_CSE_API_KEY")
	setString(&c.Search.CX, "GOOGLE_CSE_ID")
	setString(&c.Search.StrictCX, "GOOGLE_CSE_ID_STRICT")
	setString(&c.Search.Template, "NEWS_SEARCH_TEMPLATE")
	setString(&c.Search.DateRestrict, "NEWS_DATE_RESTRICT")
	setString(&c.Search.Sort, "NEWS_SORT")
	setString(&c.Search.GL, "NEWS_GL")
	setString(&c.Search.HL, "NEWS_HL")
	setString(&c.Search.LR, "NEWS_LR")
	setString(&c.Search.Safe, "NEWS_SAFE")
	setList(&c.Search.ExcludeTerms, "NEWS_EXCLUDE_TERMS")
	setList(&c.Search.AllowlistSites, "NEWS_ALLOWLIST_SITES")
	setList(&c.News.Firms, "NEWS_FIRMS")

	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.File, "LOG_FILE")

	ints := []struct {
		dst *int
		key string
	}{
		{&c.Search.FetchBatchSize, "NEWS_FETCH_BATCH_SIZE"},
		{&c.News.ResultsPerFirm, "NEWS_RESULTS_PER_FIRM"},
		{&c.News.FirmsPerBatch, "NEWS_FIRMS_PER_BATCH"},
		{&c.RateLimit.MaxRetries, "NEWS_REQUEST_MAX_RETRIES"},
	}
	for _, v := range ints {
		if err := setInt(v.dst, v.key); err != nil {
			return err
		}
	}

	durations := []struct {
		dst  *time.Duration
		key  string
		unit time.Duration
	}{
		{&c.News.SnapshotTTL, "NEWS_SNAPSHOT_TTL_SECONDS", time.Second},
		{&c.News.JobTTL, "NEWS_JOB_TTL_SECONDS", time.Second},
		{&c.News.RefreshCooldown, "NEWS_REFRESH_COOLDOWN_SECONDS", time.Second},
		{&c.RateLimit.Interval, "NEWS_REQUEST_INTERVAL_MS", time.Millisecond},
		{&c.RateLimit.Backoff, "NEWS_REQUEST_BACKOFF_MS", time.Millisecond},
		{&c.RateLimit.Jitter, "NEWS_REQUEST_JITTER_MS", time.Millisecond},
		{&c.Search.Timeout, "NEWS_REQUEST_TIMEOUT_MS", time.Millisecond},
	}
	for _, v := range durations {
		var n int
		ok, err := lookupInt(v.key, &n)
		if err != nil {
			return err
		}
		if ok {
			*v.dst = time.Duration(n) * v.unit
		}
	}

	return nil
}

// Normalize clamps values into the ranges the job engine relies on.
func (c *Config) Normalize() {
	c.News.FirmsPerBatch = max(1, c.News.FirmsPerBatch)
	c.News.ResultsPerFirm = max(1, c.News.ResultsPerFirm)
	c.News.SnapshotTTL = max(time.Minute, c.News.SnapshotTTL)
	c.News.JobTTL = max(c.News.SnapshotTTL, c.News.JobTTL)
	c.News.RefreshCooldown = max(0, c.News.RefreshCooldown)
	c.News.MaxErrorEntries = max(1, c.News.MaxErrorEntries)
	if c.News.RecencyWindow <= 0 {
		c.News.RecencyWindow = 24 * time.Hour
	}
	if c.News.BatchLease <= 0 {
		c.News.BatchLease = time.Minute
	}
	c.RateLimit.MaxRetries = max(0, c.RateLimit.MaxRetries)
	c.News.Firms = compact(c.News.Firms)
	c.Search.AllowlistSites = compact(c.Search.AllowlistSites)
	c.Search.ExcludeTerms = compact(c.Search.ExcludeTerms)
}

// ResultsPerQuery is how many results a single search request asks for.
func (c *Config) ResultsPerQuery() int {
	return min(10, max(c.Search.FetchBatchSize, c.News.ResultsPerFirm))
}

// Validate reports every missing setting required to refresh news.
func (c *Config) Validate() error {
	var missing []string
	if c.Redis.URL == "" {
		missing = append(missing, "REDIS_URL")
	}
	missing = append(missing, c.MissingSearchCredentials()...)

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) MissingSearchCredentials() []string {
	var missing []string
	if c.Search.APIKey == "" {
		missing = append(missing, "GOOGLE_CSE_API_KEY")
	}
	if c.Search.CX == "" && c.Search.StrictCX == "" {
		missing = append(missing, "GOOGLE_CSE_ID")
	}
	return missing
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = compact(strings.Split(v, ","))
	}
}

func setInt(dst *int, key string) error {
	_, err := lookupInt(key, dst)
	return err
}

func lookupInt(key string, dst *int) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return false, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return true, nil
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
