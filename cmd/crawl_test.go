package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/vacancy-crawler/internal/app"
	internalconfig "github.com/JakeFAU/vacancy-crawler/internal/config"
	"github.com/JakeFAU/vacancy-crawler/internal/orchestrator"
)

const (
	indexPage1 = `<html><body>
<ul class="pagination"><li>1</li><li>2</li><li>Next</li></ul>
<li class="job-list-item">
  <a class="job-list-item__title">Engineer</a><a class="mr-2">Acme</a>
  <a class="job-list-item__link" href="/jobs/1/">more</a>
</li>
</body></html>`
	indexPage2 = `<html><body>
<ul class="pagination"><li>1</li><li>2</li><li>Next</li></ul>
<li class="job-list-item">
  <a class="job-list-item__title">Dev</a><a class="mr-2">Beta</a>
  <a class="job-list-item__link" href="/jobs/2/">more</a>
</li>
</body></html>`
)

func newJobBoard(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, indexPage2)
			return
		}
		fmt.Fprint(w, indexPage1)
	})
	mux.HandleFunc("/jobs/1/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<div class="col-sm-8">We use Python and Go daily.</div>`)
	})
	mux.HandleFunc("/jobs/2/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<div class="col-sm-8">No relevant keywords.</div>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeTestConfig(t *testing.T, listURL, baseURL, outDir string) string {
	t.Helper()
	body := fmt.Sprintf(`
crawler:
  base_url: %s
  list_url: %s
  page_delay: 0s
  concurrency: 2
  request_timeout: 2s
technologies: [Python, Go, Rust]
output:
  base_dir: %s
logging:
  level: error
`, baseURL, listURL, outDir)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func runRoot(t *testing.T, args ...string) error {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	root := newRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func TestCrawlWritesCSV(t *testing.T) {
	srv := newJobBoard(t)
	outDir := t.TempDir()
	cfgPath := writeTestConfig(t, srv.URL+"/jobs/", srv.URL, outDir)

	require.NoError(t, runRoot(t, "--config", cfgPath, "crawl", "--output", "result.csv"))

	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(filepath.Join(outDir, "result.csv"))
	require.NoError(t, err)
	assert.Equal(t,
		"title,company,technologies\n"+
			"Engineer,Acme,\"Go, Python\"\n"+
			"Dev,Beta,\n",
		string(data))
}

func TestCrawlWritesJSON(t *testing.T) {
	srv := newJobBoard(t)
	outDir := t.TempDir()
	cfgPath := writeTestConfig(t, srv.URL+"/jobs/", srv.URL, outDir)

	require.NoError(t, runRoot(t, "--config", cfgPath, "crawl", "--output", "result.json", "--format", "json"))

	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(filepath.Join(outDir, "result.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"title":"Engineer","company":"Acme","technologies":["Go","Python"]},
		{"title":"Dev","company":"Beta","technologies":[]}
	]`, string(data))
}

func TestCrawlDiscoveryFailureStillWritesEmptyArtifact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	outDir := t.TempDir()
	cfgPath := writeTestConfig(t, srv.URL+"/jobs/", srv.URL, outDir)

	require.NoError(t, runRoot(t, "--config", cfgPath, "crawl"))

	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(filepath.Join(outDir, "vacancies.csv"))
	require.NoError(t, err)
	assert.Equal(t, "title,company,technologies\n", string(data))
}

type unwritableBlobs struct{}

func (unwritableBlobs) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("bucket gone")
}

func TestCrawlClosesAppWhenArtifactWriteFails(t *testing.T) {
	srv := newJobBoard(t)
	cfgPath := writeTestConfig(t, srv.URL+"/jobs/", srv.URL, t.TempDir())

	origNew, origClose := newApp, closeApp
	t.Cleanup(func() { newApp, closeApp = origNew, origClose })
	newApp = func(_ context.Context, cfg internalconfig.Config, logger *zap.Logger) (*app.App, error) {
		return &app.App{Config: cfg, Logger: logger, Blobs: unwritableBlobs{}}, nil
	}
	var closed int
	closeApp = func(a *app.App) {
		closed++
		a.Close()
	}

	err := runRoot(t, "--config", cfgPath, "crawl")
	require.ErrorContains(t, err, "bucket gone")
	require.Equal(t, 1, closed)
}

func TestCrawlClosesAppOnSuccess(t *testing.T) {
	srv := newJobBoard(t)
	cfgPath := writeTestConfig(t, srv.URL+"/jobs/", srv.URL, t.TempDir())

	origClose := closeApp
	t.Cleanup(func() { closeApp = origClose })
	var closed int
	closeApp = func(a *app.App) {
		closed++
		a.Close()
	}

	require.NoError(t, runRoot(t, "--config", cfgPath, "crawl"))
	require.Equal(t, 1, closed)
}

func TestCrawlRejectsInvalidConfig(t *testing.T) {
	cfgPath := writeTestConfig(t, "not a url", "https://example.com", t.TempDir())
	err := runRoot(t, "--config", cfgPath, "crawl")
	require.ErrorContains(t, err, "invalid config")
}

func TestRunStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ok", runStatus(nil))
	assert.Equal(t, "discovery_failed", runStatus(fmt.Errorf("%w: boom", orchestrator.ErrDiscovery)))
	assert.Equal(t, "canceled", runStatus(fmt.Errorf("page 2: %w", context.Canceled)))
	assert.Equal(t, "error", runStatus(errors.New("other")))
}

func TestResolveAppMissing(t *testing.T) {
	t.Parallel()

	_, err := resolveApp(context.Background())
	require.Error(t, err)
}
