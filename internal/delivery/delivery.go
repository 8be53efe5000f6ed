// Package delivery ships the result of a crawl: the artifact, the optional
// database rows and the run summary event.
package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/vacancy-crawler/internal/crawler"
	"github.com/JakeFAU/vacancy-crawler/internal/orchestrator"
	"github.com/JakeFAU/vacancy-crawler/internal/output"
)

// EventRunCompleted is the event name attached to published summaries.
const EventRunCompleted = "run.completed"

// Summary describes a finished run.
type Summary struct {
	RunID           string    `json:"run_id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Pages           int       `json:"pages"`
	PagesSkipped    int       `json:"pages_skipped"`
	Vacancies       int       `json:"vacancies"`
	ListingFailures int       `json:"listing_failures"`
	ArtifactURI     string    `json:"artifact_uri"`
	ArtifactSHA256  string    `json:"artifact_sha256"`
	Format          string    `json:"format"`
	Error           string    `json:"error,omitempty"`
}

// Config controls where and how the artifact is written.
type Config struct {
	Path   string
	Format output.Format
	// Topic is passed to the publisher as the event name.
	Topic string
}

// Deliverer writes crawl results to their destinations. Store and Publisher
// are optional.
type Deliverer struct {
	cfg       Config
	blobs     crawler.BlobStore
	store     crawler.VacancyStore
	publisher crawler.Publisher
	hasher    crawler.Hasher
	clock     crawler.Clock
	logger    *zap.Logger
}

// Option customizes a Deliverer.
type Option func(*Deliverer)

// WithVacancyStore persists vacancies after the artifact is written.
func WithVacancyStore(s crawler.VacancyStore) Option {
	return func(d *Deliverer) { d.store = s }
}

// WithPublisher publishes the run summary.
func WithPublisher(p crawler.Publisher) Option {
	return func(d *Deliverer) { d.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Deliverer) {
		if l != nil {
			d.logger = l
		}
	}
}

// New constructs a Deliverer.
func New(cfg Config, blobs crawler.BlobStore, hasher crawler.Hasher, clock crawler.Clock, opts ...Option) (*Deliverer, error) {
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if hasher == nil || clock == nil {
		return nil, fmt.Errorf("hasher and clock are required")
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("output path is required")
	}
	if cfg.Format == "" {
		cfg.Format = output.FormatCSV
	}
	if cfg.Topic == "" {
		cfg.Topic = EventRunCompleted
	}
	d := &Deliverer{
		cfg:    cfg,
		blobs:  blobs,
		hasher: hasher,
		clock:  clock,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Deliver writes the artifact, then saves rows and publishes the summary.
// runErr is the crawl's own error, if any; it is recorded in the summary.
// A failed artifact write is returned immediately. Store and publish
// failures are logged and returned joined, after both have been attempted.
func (d *Deliverer) Deliver(
	ctx context.Context,
	runID string,
	started time.Time,
	result orchestrator.Result,
	runErr error,
) (Summary, error) {
	summary := Summary{
		RunID:           runID,
		StartedAt:       started.UTC(),
		Pages:           result.Pages,
		PagesSkipped:    result.PagesSkipped,
		Vacancies:       len(result.Vacancies),
		ListingFailures: result.ListingFailures,
		Format:          string(d.cfg.Format),
	}
	if runErr != nil {
		summary.Error = runErr.Error()
	}

	var buf bytes.Buffer
	if err := output.Encode(&buf, d.cfg.Format, result.Vacancies); err != nil {
		return summary, fmt.Errorf("encode artifact: %w", err)
	}
	digest, err := d.hasher.Hash(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return summary, fmt.Errorf("hash artifact: %w", err)
	}
	summary.ArtifactSHA256 = digest

	uri, err := d.blobs.PutObject(ctx, d.cfg.Path, d.cfg.Format.ContentType(), &buf)
	if err != nil {
		return summary, fmt.Errorf("write artifact %s: %w", d.cfg.Path, err)
	}
	summary.ArtifactURI = uri
	d.logger.Info("Artifact written",
		zap.String("uri", uri),
		zap.Int("vacancies", summary.Vacancies),
		zap.String("sha256", digest),
	)

	var errs []error
	if d.store != nil {
		if err := d.store.SaveVacancies(ctx, runID, result.Vacancies); err != nil {
			d.logger.Error("Failed to save vacancies", zap.String("run_id", runID), zap.Error(err))
			errs = append(errs, fmt.Errorf("save vacancies: %w", err))
		}
	}

	summary.FinishedAt = d.clock.Now()
	if d.publisher != nil {
		id, err := d.publisher.Publish(ctx, d.cfg.Topic, summary)
		if err != nil {
			d.logger.Error("Failed to publish run summary", zap.String("run_id", runID), zap.Error(err))
			errs = append(errs, fmt.Errorf("publish summary: %w", err))
		} else {
			d.logger.Debug("Published run summary", zap.String("message_id", id))
		}
	}
	return summary, errors.Join(errs...)
}
