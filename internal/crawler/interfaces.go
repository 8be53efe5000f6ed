package crawler

import (
	"context"
	"io"
	"time"
)

// Fetcher retrieves the raw HTML of a URL. Failures are *FetchError values.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// Limiter throttles outbound requests per host.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Pauser waits between page iterations.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

// BlobStore writes the output artifact and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// VacancyStore persists the vacancies of one run.
type VacancyStore interface {
	SaveVacancies(ctx context.Context, runID string, vacancies []Vacancy) error
	Close()
}

// Publisher pushes run events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for artifact integrity.
type Hasher interface {
	Hash(r io.Reader) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// RetryPolicy decides whether a failed fetch is attempted again.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}
