package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

// newTestBlobStore creates a BlobStore whose client talks to a test server.
func newTestBlobStore(t *testing.T, handler http.Handler, cfg Config) *BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(),
		option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)

	store, err := New(client, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer client.Close()
	_, err = New(client, Config{})
	require.ErrorContains(t, err, "bucket")
}

func TestPutObject(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/jobs-bucket/o")
		assert.Equal(t, "exports/vacancies.csv", r.URL.Query().Get("name"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), "title,company,technologies")
		assert.Contains(t, string(body), "text/csv")

		fmt.Fprintln(w, `{"name": "exports/vacancies.csv", "bucket": "jobs-bucket"}`)
	})
	store := newTestBlobStore(t, handler, Config{Bucket: "jobs-bucket", Prefix: "/exports/"})

	uri, err := store.PutObject(context.Background(), "vacancies.csv", "text/csv",
		strings.NewReader("title,company,technologies\n"))
	require.NoError(t, err)
	require.Equal(t, "gs://jobs-bucket/exports/vacancies.csv", uri)
}

func TestPutObjectServerError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	store := newTestBlobStore(t, handler, Config{Bucket: "jobs-bucket"})

	_, err := store.PutObject(context.Background(), "vacancies.csv", "text/csv", strings.NewReader("x"))
	require.Error(t, err)
}

func TestPutObjectEmptyPath(t *testing.T) {
	store := newTestBlobStore(t, http.NotFoundHandler(), Config{Bucket: "jobs-bucket"})
	_, err := store.PutObject(context.Background(), "", "text/csv", strings.NewReader("x"))
	require.ErrorContains(t, err, "path is required")
}
