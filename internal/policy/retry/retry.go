// Package retry decides whether a failed fetch is worth another attempt and
// how long to wait before it.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"net/http"
	"time"

	"github.com/JakeFAU/vacancy-crawler/internal/crawler"
)

// Config tunes the exponential policy. MaxRetries of 0 disables retrying.
type Config struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"retry_base_delay"`
	MaxDelay   time.Duration `mapstructure:"retry_max_delay"`
}

// ExponentialPolicy retries transient fetch failures with jittered backoff.
type ExponentialPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// New builds a policy, filling unset delays with 250ms and 5s.
func New(cfg Config) *ExponentialPolicy {
	p := &ExponentialPolicy{
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		maxDelay:   cfg.MaxDelay,
	}
	if p.baseDelay <= 0 {
		p.baseDelay = 250 * time.Millisecond
	}
	if p.maxDelay <= 0 {
		p.maxDelay = 5 * time.Second
	}
	return p
}

// ShouldRetry reports whether attempt (0-based) may be followed by another.
// Only fetch errors are retried: network failures, timeouts, 429 and 5xx.
func (p *ExponentialPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.maxRetries {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var fe *crawler.FetchError
	if !errors.As(err, &fe) {
		return false
	}
	switch fe.Kind {
	case crawler.FetchKindNetwork, crawler.FetchKindTimeout:
		return true
	case crawler.FetchKindStatus:
		return fe.StatusCode == http.StatusTooManyRequests || fe.StatusCode >= 500
	default:
		return false
	}
}

// Backoff returns the wait before retry number attempt+1: half the
// exponential delay plus up to half again of jitter.
func (p *ExponentialPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	half := time.Duration(delay / 2)
	return half + jitter(half)
}

func jitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
