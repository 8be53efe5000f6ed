package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(nil), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyzFollowsReadiness(t *testing.T) {
	t.Parallel()

	s := NewServer(nil)
	require.Equal(t, http.StatusServiceUnavailable, serve(t, s, "/readyz").Code)

	s.SetReady(true)
	require.Equal(t, http.StatusOK, serve(t, s, "/readyz").Code)
}

func TestMetricsEndpointExposesCrawlerCollectors(t *testing.T) {
	t.Parallel()

	s := NewServer(nil)
	serve(t, s, "/healthz")
	rec := serve(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestRunStatusLifecycle(t *testing.T) {
	t.Parallel()

	s := NewServer(nil)
	var state RunState
	require.NoError(t, json.Unmarshal(serve(t, s, "/v1/run").Body.Bytes(), &state))
	assert.Equal(t, StatusIdle, state.Status)

	started := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	s.RunStarted("run-1", started)
	require.NoError(t, json.Unmarshal(serve(t, s, "/v1/run").Body.Bytes(), &state))
	assert.Equal(t, StatusRunning, state.Status)
	assert.Equal(t, "run-1", state.RunID)
	assert.True(t, state.StartedAt.Equal(started))

	s.RunFinished(started.Add(time.Minute), 7, nil)
	assert.Equal(t, StatusFinished, s.State().Status)
	assert.Equal(t, 7, s.State().Vacancies)

	s.RunStarted("run-2", started)
	s.RunFinished(started.Add(time.Minute), 0, errors.New("pagination discovery failed"))
	assert.Equal(t, StatusFailed, s.State().Status)
	assert.Equal(t, "pagination discovery failed", s.State().Error)
}

func TestRequestIDMiddleware(t *testing.T) {
	t.Parallel()

	s := NewServer(nil)
	require.NotEmpty(t, serve(t, s, "/healthz").Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	s := NewServer(nil)
	h := s.recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	s := NewServer(nil)
	go func() { done <- s.ListenAndServe(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestListenAndServeBadAddr(t *testing.T) {
	t.Parallel()

	err := NewServer(nil).ListenAndServe(context.Background(), "not-an-addr")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "ops server"))
}
