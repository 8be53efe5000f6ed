package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestNewFetchErrorClassifies(t *testing.T) {
	t.Run("network", func(t *testing.T) {
		err := NewFetchError("https://example.com", errors.New("connection refused"))
		require.Equal(t, FetchKindNetwork, err.Kind)
		require.Contains(t, err.Error(), "https://example.com")
	})

	t.Run("timeout via net.Error", func(t *testing.T) {
		err := NewFetchError("https://example.com", fmt.Errorf("get: %w", timeoutErr{}))
		require.Equal(t, FetchKindTimeout, err.Kind)
	})

	t.Run("timeout via context", func(t *testing.T) {
		err := NewFetchError("https://example.com", context.DeadlineExceeded)
		require.Equal(t, FetchKindTimeout, err.Kind)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("status", func(t *testing.T) {
		err := NewStatusError("https://example.com/x", http.StatusNotFound)
		require.Equal(t, FetchKindStatus, err.Kind)
		require.Equal(t, http.StatusNotFound, err.StatusCode)
		require.Contains(t, err.Error(), "404")
	})
}

func TestErrorPredicates(t *testing.T) {
	wrappedFetch := fmt.Errorf("page 2: %w", NewStatusError("u", 500))
	wrappedExtract := fmt.Errorf("listing 1: %w", &ExtractionError{URL: "u", Selector: ".t", Reason: "missing"})

	require.True(t, IsFetchError(wrappedFetch))
	require.False(t, IsExtractionError(wrappedFetch))
	require.True(t, IsExtractionError(wrappedExtract))
	require.False(t, IsFetchError(wrappedExtract))
}

func TestSchemaWithDefaults(t *testing.T) {
	s := Schema{Title: "h2.title"}.WithDefaults()
	require.Equal(t, "h2.title", s.Title)
	require.Equal(t, DefaultSchema().ListingItem, s.ListingItem)
	require.Equal(t, DefaultSchema().PaginationItem, s.PaginationItem)
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		BaseURL:        "https://jobs.example.com",
		ListURL:        "https://jobs.example.com/jobs/",
		PageParam:      "page",
		PageDelay:      time.Second,
		Concurrency:    4,
		RequestTimeout: 5 * time.Second,
	}
	require.NoError(t, valid.Validate())

	cases := map[string]func(c *Config){
		"relative base":  func(c *Config) { c.BaseURL = "/jobs" },
		"missing list":   func(c *Config) { c.ListURL = "" },
		"no page param":  func(c *Config) { c.PageParam = " " },
		"zero workers":   func(c *Config) { c.Concurrency = 0 },
		"zero timeout":   func(c *Config) { c.RequestTimeout = 0 },
		"negative delay": func(c *Config) { c.PageDelay = -time.Second },
		"negative rps":   func(c *Config) { c.DetailRPS = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestNormalizeKeywords(t *testing.T) {
	got := NormalizeKeywords([]string{" Python ", "", "python", "Go", "Go", "Rust"})
	require.Equal(t, []string{"Python", "Go", "Rust"}, got)
}
