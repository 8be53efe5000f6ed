package crawler

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config captures every knob that influences a crawl run.
type Config struct {
	BaseURL            string        `mapstructure:"base_url"`
	ListURL            string        `mapstructure:"list_url"`
	PageParam          string        `mapstructure:"page_param"`
	PageDelay          time.Duration `mapstructure:"page_delay"`
	Concurrency        int           `mapstructure:"concurrency"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	UserAgent          string        `mapstructure:"user_agent"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	DetailRPS          float64       `mapstructure:"detail_rps"`

	// MaxRetries bounds extra attempts for transient fetch failures. 0 disables retries.
	MaxRetries int `mapstructure:"max_retries"`
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if err := validAbsoluteURL(c.BaseURL); err != nil {
		return fmt.Errorf("crawler.base_url: %w", err)
	}
	if err := validAbsoluteURL(c.ListURL); err != nil {
		return fmt.Errorf("crawler.list_url: %w", err)
	}
	if strings.TrimSpace(c.PageParam) == "" {
		return fmt.Errorf("crawler.page_param must be set")
	}
	if c.PageDelay < 0 {
		return fmt.Errorf("crawler.page_delay must be >= 0")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("crawler.request_timeout must be > 0")
	}
	if c.DetailRPS < 0 {
		return fmt.Errorf("crawler.detail_rps must be >= 0")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("crawler.max_retries must be >= 0")
	}
	return nil
}

func validAbsoluteURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("must be set")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q is not absolute", raw)
	}
	return nil
}

// NormalizeKeywords trims entries and drops blanks and case-insensitive duplicates,
// keeping the first spelling seen.
func NormalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{})
	for _, kw := range in {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		key := strings.ToLower(kw)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, kw)
	}
	return out
}
