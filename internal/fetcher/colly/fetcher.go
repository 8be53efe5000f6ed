// Package collyfetcher implements crawler.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/vacancy-crawler/internal/crawler"
	"github.com/JakeFAU/vacancy-crawler/internal/metrics"
)

const defaultTimeout = 15 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// InsecureSkipVerify disables TLS certificate checks. The job board this
	// crawler targets serves a broken certificate chain.
	InsecureSkipVerify bool
}

// Fetcher implements crawler.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []colly.CollectorOption{colly.Async(false)}
	if cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(cfg.UserAgent))
	}
	c := colly.NewCollector(opts...)
	// Listing pages and detail pages are fetched once per run but may repeat across runs
	// sharing a process; revisits are always allowed.
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	c.ParseHTTPErrorResponse = true
	c.WithTransport(newHTTPTransport(cfg))
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		logger:        logger,
	}
}

// Fetch executes a single HTTP GET and returns the response body.
// Every failure is returned as a *crawler.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", crawler.NewFetchError(rawURL, err)
	}
	var (
		body     string
		fetchErr error
	)
	start := time.Now()
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	f.configureCollectorHooks(collector, rawURL, &body, &fetchErr)

	err := f.runCollector(ctx, collector, rawURL, &fetchErr)
	metrics.ObserveFetch(metrics.SanitizeSite(rawURL), fetchOutcome(err), time.Since(start))
	if err != nil {
		f.logger.Debug("fetch failed", zap.String("url", rawURL), zap.Error(err))
		return "", err
	}
	return body, nil
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, rawURL string, body *string, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		if r.StatusCode < http.StatusOK || r.StatusCode >= http.StatusMultipleChoices {
			*fetchErr = crawler.NewStatusError(rawURL, r.StatusCode)
			return
		}
		*body = string(r.Body)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		if r != nil && r.StatusCode != 0 {
			*fetchErr = crawler.NewStatusError(rawURL, r.StatusCode)
			return
		}
		*fetchErr = crawler.NewFetchError(rawURL, err)
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, rawURL string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		// The request carries ctx, so Visit returns promptly once it is aborted.
		<-done
		return crawler.NewFetchError(rawURL, fmt.Errorf("colly fetch canceled: %w", ctx.Err()))
	case err := <-done:
		if *fetchErr != nil {
			return *fetchErr
		}
		if err != nil {
			return crawler.NewFetchError(rawURL, fmt.Errorf("colly visit failed: %w", err))
		}
		return nil
	}
}

func fetchOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	var fe *crawler.FetchError
	if errors.As(err, &fe) {
		return string(fe.Kind)
	}
	return "error"
}

func newHTTPTransport(cfg Config) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // target site certificate is misconfigured
		},
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
	}
}
