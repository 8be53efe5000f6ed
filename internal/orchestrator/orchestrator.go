// Package orchestrator drives a crawl: pagination discovery, the sequential
// page loop, and the bounded per-page fan-out over listing detail pages.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/vacancy-crawler/internal/crawler"
	"github.com/JakeFAU/vacancy-crawler/internal/extract"
	"github.com/JakeFAU/vacancy-crawler/internal/keywords"
	"github.com/JakeFAU/vacancy-crawler/internal/metrics"
)

// ErrDiscovery marks a failure while fetching or reading the first index page.
// Nothing is crawled after it.
var ErrDiscovery = errors.New("pagination discovery failed")

const tracerName = "github.com/JakeFAU/vacancy-crawler/internal/orchestrator"

// Config holds the orchestrator's knobs.
type Config struct {
	ListURL     string
	PageParam   string
	PageDelay   time.Duration
	Concurrency int
}

// Result is the outcome of one run. Vacancies are in page-then-listing order.
type Result struct {
	Vacancies       []crawler.Vacancy
	Pages           int
	PagesSkipped    int
	ListingFailures int
}

// Orchestrator runs crawls. A single Orchestrator may run several crawls,
// but not concurrently.
type Orchestrator struct {
	cfg       Config
	fetcher   crawler.Fetcher
	extractor *extract.Extractor
	matcher   *keywords.Matcher
	limiter   crawler.Limiter
	retry     crawler.RetryPolicy
	pauser    crawler.Pauser
	tracer    trace.Tracer
	logger    *zap.Logger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithLimiter throttles detail-page fetches.
func WithLimiter(l crawler.Limiter) Option {
	return func(o *Orchestrator) {
		o.limiter = l
	}
}

// WithRetry retries transient fetch failures of index and detail pages.
func WithRetry(p crawler.RetryPolicy) Option {
	return func(o *Orchestrator) {
		o.retry = p
	}
}

// WithPauser replaces the timer-based delay between pages.
func WithPauser(p crawler.Pauser) Option {
	return func(o *Orchestrator) {
		o.pauser = p
	}
}

// WithTracerProvider records run, page and listing spans on tp instead of
// the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) {
		if tp != nil {
			o.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New constructs an Orchestrator.
func New(
	cfg Config,
	fetcher crawler.Fetcher,
	extractor *extract.Extractor,
	matcher *keywords.Matcher,
	opts ...Option,
) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PageParam == "" {
		cfg.PageParam = "page"
	}
	o := &Orchestrator{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		matcher:   matcher,
		pauser:    &timerPauser{},
		tracer:    otel.Tracer(tracerName),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run crawls every index page and returns the vacancies found.
// A discovery failure returns an empty Result and an error wrapping ErrDiscovery.
// Cancellation returns what was gathered so far along with ctx.Err().
func (o *Orchestrator) Run(ctx context.Context) (result Result, err error) {
	ctx, span := o.tracer.Start(ctx, "crawl.run", trace.WithAttributes(attribute.String("list_url", o.cfg.ListURL)))
	defer func() {
		span.SetAttributes(
			attribute.Int("pages", result.Pages),
			attribute.Int("vacancies", len(result.Vacancies)),
			attribute.Int("listing_failures", result.ListingFailures),
		)
		endSpan(span, err)
	}()
	return o.run(ctx)
}

func (o *Orchestrator) run(ctx context.Context) (Result, error) {
	var result Result

	first, totalPages, err := o.discover(ctx)
	if err != nil {
		o.logger.Error("Pagination discovery failed; nothing to crawl",
			zap.String("url", o.cfg.ListURL), zap.Error(err))
		return Result{}, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}
	result.Pages = totalPages
	o.logger.Info("Found pages", zap.Int("pages", totalPages))

	for page := 1; page <= totalPages; page++ {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("crawl canceled before page %d: %w", page, err)
		}
		o.logger.Info("Parsing page", zap.Int("page", page), zap.Int("of", totalPages))

		pageCtx, span := o.tracer.Start(ctx, "crawl.page", trace.WithAttributes(attribute.Int("page", page)))
		doc := first
		if page > 1 {
			doc, err = o.loadPage(pageCtx, o.pageURL(page))
			if err != nil {
				o.logger.Error("Skipping page", zap.Int("page", page), zap.Error(err))
				metrics.ObservePage("skipped")
				result.PagesSkipped++
				endSpan(span, err)
				o.pauseAfter(ctx, page, totalPages)
				continue
			}
		}

		vacancies, failed := o.crawlPage(pageCtx, page, doc)
		result.Vacancies = append(result.Vacancies, vacancies...)
		result.ListingFailures += failed
		metrics.ObservePage("ok")
		span.SetAttributes(attribute.Int("vacancies", len(vacancies)), attribute.Int("listing_failures", failed))
		span.End()

		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("crawl canceled during page %d: %w", page, err)
		}
		o.pauseAfter(ctx, page, totalPages)
	}

	o.logger.Info("Crawl finished",
		zap.Int("vacancies", len(result.Vacancies)),
		zap.Int("pages", result.Pages),
		zap.Int("pages_skipped", result.PagesSkipped),
		zap.Int("listing_failures", result.ListingFailures),
	)
	return result, nil
}

func (o *Orchestrator) discover(ctx context.Context) (*extract.Document, int, error) {
	doc, err := o.loadPage(ctx, o.cfg.ListURL)
	if err != nil {
		return nil, 0, err
	}
	total, err := o.extractor.CountPages(doc)
	if err != nil {
		return nil, 0, err
	}
	return doc, total, nil
}

func (o *Orchestrator) loadPage(ctx context.Context, rawURL string) (*extract.Document, error) {
	html, err := o.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return extract.Parse(rawURL, html)
}

func (o *Orchestrator) fetch(ctx context.Context, rawURL string) (string, error) {
	for attempt := 0; ; attempt++ {
		html, err := o.fetcher.Fetch(ctx, rawURL)
		if err == nil || o.retry == nil || !o.retry.ShouldRetry(err, attempt) {
			return html, err
		}
		wait := o.retry.Backoff(attempt)
		o.logger.Debug("Retrying fetch",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		(&timerPauser{}).Pause(ctx, wait)
		if ctx.Err() != nil {
			return "", err
		}
	}
}

func (o *Orchestrator) pauseAfter(ctx context.Context, page, totalPages int) {
	if page >= totalPages || o.cfg.PageDelay <= 0 {
		return
	}
	o.pauser.Pause(ctx, o.cfg.PageDelay)
}

// crawlPage fans out over the page's listings and returns the vacancies in
// document order together with the number of listings that failed.
func (o *Orchestrator) crawlPage(ctx context.Context, page int, doc *extract.Document) ([]crawler.Vacancy, int) {
	summaries, summaryErrs := o.extractor.ExtractSummaries(doc)
	for _, err := range summaryErrs {
		o.logger.Warn("Dropping listing", zap.Int("page", page), zap.Error(err))
		metrics.ObserveListing("extract_error")
	}
	if len(summaries) == 0 {
		o.logger.Warn("No listings found on page", zap.Int("page", page), zap.String("url", doc.URL))
		return nil, len(summaryErrs)
	}

	slots := make([]*crawler.Vacancy, len(summaries))
	var failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)
	for i, summary := range summaries {
		g.Go(func() error {
			metrics.IncActiveWorkers()
			defer metrics.DecActiveWorkers()

			vacancy, err := o.crawlListing(ctx, summary)
			if err != nil && ctx.Err() != nil {
				metrics.ObserveListing("canceled")
				o.logger.Debug("Listing abandoned on cancellation", zap.String("url", summary.DetailURL))
				return nil
			}
			if err != nil {
				failed.Add(1)
				status := "fetch_error"
				if crawler.IsExtractionError(err) {
					status = "extract_error"
				}
				metrics.ObserveListing(status)
				o.logger.Warn("Dropping listing",
					zap.Int("page", page),
					zap.String("url", summary.DetailURL),
					zap.Error(err),
				)
				return nil
			}
			metrics.ObserveListing("ok")
			slots[i] = &vacancy
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures are counted above

	vacancies := make([]crawler.Vacancy, 0, len(slots))
	for _, v := range slots {
		if v != nil {
			vacancies = append(vacancies, *v)
		}
	}
	return vacancies, len(summaryErrs) + int(failed.Load())
}

func (o *Orchestrator) crawlListing(ctx context.Context, summary crawler.ListingSummary) (_ crawler.Vacancy, err error) {
	ctx, span := o.tracer.Start(ctx, "crawl.listing", trace.WithAttributes(attribute.String("url", summary.DetailURL)))
	defer func() { endSpan(span, err) }()

	if err := ctx.Err(); err != nil {
		return crawler.Vacancy{}, crawler.NewFetchError(summary.DetailURL, err)
	}
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx, summary.DetailURL); err != nil {
			return crawler.Vacancy{}, crawler.NewFetchError(summary.DetailURL, err)
		}
	}
	doc, err := o.loadPage(ctx, summary.DetailURL)
	if err != nil {
		return crawler.Vacancy{}, err
	}
	description, err := o.extractor.ExtractDescription(doc)
	if err != nil {
		return crawler.Vacancy{}, err
	}
	return crawler.Vacancy{
		Title:        summary.Title,
		Company:      summary.Company,
		Technologies: o.matcher.Match(description),
	}, nil
}

// pageURL returns the list URL with the page parameter set. Page 1 is the list URL itself.
func (o *Orchestrator) pageURL(page int) string {
	if page <= 1 {
		return o.cfg.ListURL
	}
	u, err := url.Parse(o.cfg.ListURL)
	if err != nil {
		return o.cfg.ListURL
	}
	q := u.Query()
	q.Set(o.cfg.PageParam, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

type timerPauser struct{}

func (p *timerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
