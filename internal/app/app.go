// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/JakeFAU/vacancy-crawler/internal/config"
	"github.com/JakeFAU/vacancy-crawler/internal/crawler"
	pubmemory "github.com/JakeFAU/vacancy-crawler/internal/publisher/memory"
	"github.com/JakeFAU/vacancy-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/vacancy-crawler/internal/storage/gcs"
	"github.com/JakeFAU/vacancy-crawler/internal/storage/local"
	"github.com/JakeFAU/vacancy-crawler/internal/storage/memory"
	"github.com/JakeFAU/vacancy-crawler/internal/storage/postgres"
)

// App holds the shared services a crawl delivers its results to.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Blobs     crawler.BlobStore
	Store     crawler.VacancyStore
	Publisher crawler.Publisher

	closers []func() error
}

// New builds every provider named in cfg. It fails fast when a configured
// backend cannot be reached.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}
	logger.Info("Initializing application services...")

	if err := a.initBlobStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initVacancyStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initPublisher(ctx); err != nil {
		a.Close()
		return nil, err
	}

	logger.Info("Application services initialized successfully.")
	return a, nil
}

// ArtifactPath is the object path the artifact is written to, relative to
// the blob store root.
func (a *App) ArtifactPath() string {
	if a.Config.Output.Provider == "local" && filepath.IsAbs(a.Config.Output.Path) {
		return filepath.Base(a.Config.Output.Path)
	}
	return a.Config.Output.Path
}

func (a *App) initBlobStore(ctx context.Context) error {
	out := a.Config.Output
	switch out.Provider {
	case "local":
		baseDir := out.BaseDir
		if filepath.IsAbs(out.Path) {
			baseDir = filepath.Dir(out.Path)
		}
		store, err := local.New(local.Config{BaseDir: baseDir})
		if err != nil {
			return fmt.Errorf("failed to initialize local output: %w", err)
		}
		a.Logger.Info("Using local output", zap.String("base_dir", baseDir))
		a.Blobs = store
	case "gcs":
		store, err := gcs.Open(ctx, gcs.Config{Bucket: out.GCSBucket, Prefix: out.GCSPrefix})
		if err != nil {
			return fmt.Errorf("failed to initialize gcs output: %w", err)
		}
		a.Logger.Info("Using GCS output", zap.String("bucket", out.GCSBucket))
		a.Blobs = store
		a.closers = append(a.closers, store.Close)
	case "memory":
		a.Logger.Info("Using in-memory output. The artifact will be discarded on exit.")
		a.Blobs = memory.NewBlobStore()
	default:
		return fmt.Errorf("unknown output provider: %s", out.Provider)
	}
	return nil
}

func (a *App) initVacancyStore(ctx context.Context) error {
	db := a.Config.Database
	switch db.Provider {
	case "postgres":
		a.Logger.Info("Connecting to PostgreSQL...", zap.String("table", db.Table))
		store, err := postgres.NewVacancyStore(ctx, postgres.Config{
			DSN:             db.DSN,
			Table:           db.Table,
			MaxConns:        db.MaxConns,
			MaxConnLifetime: db.MaxConnLifetime,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		a.Store = store
		a.closers = append(a.closers, func() error { store.Close(); return nil })
		if db.AutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}
		}
	case "noop", "":
		a.Logger.Info("Vacancy persistence disabled.")
	default:
		return fmt.Errorf("unknown database provider: %s", db.Provider)
	}
	return nil
}

func (a *App) initPublisher(ctx context.Context) error {
	pc := a.Config.Publisher
	switch pc.Provider {
	case "pubsub":
		a.Logger.Info("Connecting to GCP Pub/Sub", zap.String("topic", pc.TopicID))
		pub, err := pubsub.Open(ctx, pubsub.Config{ProjectID: pc.ProjectID, TopicID: pc.TopicID})
		if err != nil {
			return fmt.Errorf("failed to initialize publisher: %w", err)
		}
		a.Publisher = pub
		a.closers = append(a.closers, pub.Close)
	case "memory":
		a.Publisher = pubmemory.New()
	case "noop", "":
		a.Logger.Info("Run summaries will not be published.")
	default:
		return fmt.Errorf("unknown publisher provider: %s", pc.Provider)
	}
	return nil
}

// Close shuts down every service in reverse order of creation.
func (a *App) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.Logger.Warn("Error shutting down application services", zap.Error(err))
	}
	_ = a.Logger.Sync() // best effort; stderr sync fails on some platforms
}
