package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/vacancy-crawler/internal/api"
	"github.com/JakeFAU/vacancy-crawler/internal/app"
	"github.com/JakeFAU/vacancy-crawler/internal/clock"
	"github.com/JakeFAU/vacancy-crawler/internal/crawler"
	"github.com/JakeFAU/vacancy-crawler/internal/delivery"
	"github.com/JakeFAU/vacancy-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/vacancy-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/vacancy-crawler/internal/hash/sha256"
	"github.com/JakeFAU/vacancy-crawler/internal/id/uuid"
	"github.com/JakeFAU/vacancy-crawler/internal/keywords"
	"github.com/JakeFAU/vacancy-crawler/internal/metrics"
	"github.com/JakeFAU/vacancy-crawler/internal/orchestrator"
	"github.com/JakeFAU/vacancy-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/vacancy-crawler/internal/policy/retry"
)

// deliveryTimeout bounds artifact and event delivery after the crawl ends,
// including after an interrupt.
const deliveryTimeout = 30 * time.Second

var runIDs crawler.IDGenerator = uuid.New()

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls the configured job board once and writes the artifact",
		Long: `Discovers the number of index pages, visits them in order and fetches
every listing's detail page with bounded concurrency. The artifact is written
even when nothing could be crawled.`,
		RunE: runCrawlCommand,
	}

	flags := cmd.Flags()
	flags.String("output", "", "artifact path (overrides output.path)")
	flags.Int("concurrency", 0, "detail pages fetched in parallel (overrides crawler.concurrency)")
	flags.String("format", "", "artifact format: csv or json (overrides output.format)")
	_ = viper.BindPFlag("output.path", flags.Lookup("output"))
	_ = viper.BindPFlag("crawler.concurrency", flags.Lookup("concurrency"))
	_ = viper.BindPFlag("output.format", flags.Lookup("format"))
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	// Cobra skips post-run hooks when RunE fails, so close here.
	defer closeApp(a)
	return crawlOnce(cmd.Context(), a)
}

// crawlOnce runs one crawl and delivers its result. Only a failure to write
// the artifact is returned; crawl failures are logged and recorded in the
// run summary.
func crawlOnce(ctx context.Context, a *app.App) error {
	cfg := a.Config
	logger := a.Logger
	clk := clock.System{}

	runID, err := runIDs.NewID()
	if err != nil {
		return err
	}
	logger = logger.With(zap.String("run_id", runID))
	started := clk.Now()

	ctx, span := otel.Tracer("github.com/JakeFAU/vacancy-crawler/cmd").Start(ctx, "crawl",
		trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	var ops *api.Server
	if cfg.Metrics.Addr != "" {
		ops = api.NewServer(logger)
		opsCtx, stopOps := context.WithCancel(ctx)
		defer stopOps()
		go func() {
			if err := ops.ListenAndServe(opsCtx, cfg.Metrics.Addr); err != nil {
				logger.Error("Ops server failed", zap.Error(err))
			}
		}()
		ops.SetReady(true)
		ops.RunStarted(runID, started)
	}

	orch, err := buildOrchestrator(a, logger)
	if err != nil {
		return err
	}

	logger.Info("Starting crawl", zap.String("list_url", cfg.Crawler.ListURL))
	result, runErr := orch.Run(ctx)
	status := runStatus(runErr)
	if runErr != nil {
		logger.Error("Crawl did not complete", zap.String("status", status), zap.Error(runErr))
	}

	deliverer, err := delivery.New(
		delivery.Config{
			Path:   a.ArtifactPath(),
			Format: cfg.OutputFormat(),
			Topic:  cfg.Publisher.Event,
		},
		a.Blobs, sha256.New(), clk,
		delivery.WithVacancyStore(a.Store),
		delivery.WithPublisher(a.Publisher),
		delivery.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("init delivery: %w", err)
	}

	deliverCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
	defer cancel()
	summary, deliverErr := deliverer.Deliver(deliverCtx, runID, started, result, runErr)
	if ops != nil {
		ops.RunFinished(clk.Now(), summary.Vacancies, errors.Join(runErr, deliverErr))
	}
	if deliverErr != nil && summary.ArtifactURI == "" {
		metrics.ObserveRun("delivery_failed")
		return fmt.Errorf("deliver run %s: %w", runID, deliverErr)
	}
	if deliverErr != nil {
		logger.Warn("Run delivered with errors", zap.Error(deliverErr))
	}
	metrics.ObserveRun(status)

	logger.Info("Crawl command finished.",
		zap.String("artifact", summary.ArtifactURI),
		zap.Int("vacancies", summary.Vacancies),
		zap.Int("pages", summary.Pages),
		zap.Int("pages_skipped", summary.PagesSkipped),
		zap.Int("listing_failures", summary.ListingFailures),
		zap.Duration("elapsed", clk.Now().Sub(started)),
	)
	return nil
}

func runStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, orchestrator.ErrDiscovery):
		return "discovery_failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

func buildOrchestrator(a *app.App, logger *zap.Logger) (*orchestrator.Orchestrator, error) {
	cfg := a.Config

	extractor, err := extract.New(cfg.Schema, cfg.Crawler.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("init extractor: %w", err)
	}
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:          cfg.Crawler.UserAgent,
		Timeout:            cfg.Crawler.RequestTimeout,
		InsecureSkipVerify: cfg.Crawler.InsecureSkipVerify,
	}, logger)

	matcher := keywords.NewMatcher(cfg.Technologies)
	logger.Info("Crawl configured",
		zap.Strings("technologies", matcher.Vocabulary()),
		zap.String("listing_selector", extractor.Schema().ListingItem),
		zap.Int("concurrency", cfg.Crawler.Concurrency),
	)

	opts := []orchestrator.Option{orchestrator.WithLogger(logger)}
	if cfg.Crawler.DetailRPS > 0 {
		opts = append(opts, orchestrator.WithLimiter(ratelimit.New(ratelimit.Config{
			DefaultRPS:   cfg.Crawler.DetailRPS,
			DefaultBurst: 1,
		})))
	}

	if cfg.Crawler.MaxRetries > 0 {
		opts = append(opts, orchestrator.WithRetry(retry.New(retry.Config{MaxRetries: cfg.Crawler.MaxRetries})))
	}

	return orchestrator.New(
		orchestrator.Config{
			ListURL:     cfg.Crawler.ListURL,
			PageParam:   cfg.Crawler.PageParam,
			PageDelay:   cfg.Crawler.PageDelay,
			Concurrency: cfg.Crawler.Concurrency,
		},
		fetcher,
		extractor,
		matcher,
		opts...,
	), nil
}
