package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LearningCurator/internal/config"
	"LearningCurator/internal/domain"
	"LearningCurator/internal/ports"
	"LearningCurator/internal/statusdoc"
	"LearningCurator/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubRunner struct {
	summary domain.RunSummary
	err     error
	calls   int
}

func (s *stubRunner) Run(context.Context, usecase.RunOptions) (domain.RunSummary, error) {
	s.calls++
	return s.summary, s.err
}

type stubDocuments struct {
	doc *statusdoc.Document
	err error
}

func (s stubDocuments) Load(context.Context) (*statusdoc.Document, error) {
	return s.doc, s.err
}

var picks = []domain.CuratedItem{
	{Title: "Async Rust", URL: "https://a.example", Topic: "Rust"},
	{Title: "Go iterators", URL: "https://b.example", Topic: "Go"},
}

func newTestServer(runner Runner, docs DocumentReader) *Server {
	return NewServer(config.ServerConfig{Addr: ":0", CronSecret: "s3cret"}, Deps{
		Runner:    runner,
		Documents: docs,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = fmt.Fprint(w, "learning_curator_runs_total 1")
		}),
	})
}

func serve(t *testing.T, srv *Server, method, path, auth string) *httptest.ResponseRecorder {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), method, path, nil)
	require.NoError(t, err)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestScheduledTriggerRequiresSecret(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		auth string
	}{
		{name: "missing header", auth: ""},
		{name: "wrong secret", auth: "Bearer nope"},
		{name: "wrong scheme", auth: "Basic s3cret"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			runner := &stubRunner{}
			rec := serve(t, newTestServer(runner, nil), http.MethodGet, triggerRoute, tc.auth)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"success":false,"error":"unauthorized"}`, rec.Body.String())
			assert.Zero(t, runner.calls)
		})
	}
}

func TestScheduledTriggerRuns(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{summary: domain.RunSummary{Items: picks, Written: true}}
	rec := serve(t, newTestServer(runner, nil), http.MethodGet, triggerRoute, "Bearer s3cret")

	require.Equal(t, http.StatusOK, rec.Code)
	var body TriggerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 2, body.ItemsAdded)
	assert.Equal(t, picks, body.Items)
	assert.Equal(t, 1, runner.calls)
}

func TestManualTriggerNeedsNoSecret(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{summary: domain.RunSummary{}}
	rec := serve(t, newTestServer(runner, nil), http.MethodPost, triggerRoute, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"itemsAdded":0,"items":[]}`, rec.Body.String())
}

func TestTriggerFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "store failure", err: errors.New("write status document: disk full"), status: http.StatusInternalServerError},
		{name: "concurrent edit", err: fmt.Errorf("write status document: %w", ports.ErrVersionConflict), status: http.StatusInternalServerError},
		{name: "run in progress", err: fmt.Errorf("acquire run lease: %w", ports.ErrRunInProgress), status: http.StatusConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rec := serve(t, newTestServer(&stubRunner{err: tc.err}, nil), http.MethodPost, triggerRoute, "")

			assert.Equal(t, tc.status, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tc.err.Error(), body.Error)
		})
	}
}

func TestEmptySecretRejectsScheduledTrigger(t *testing.T) {
	t.Parallel()

	srv := NewServer(config.ServerConfig{}, Deps{Runner: &stubRunner{}})
	rec := serve(t, srv, http.MethodGet, triggerRoute, "Bearer ")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCurrentLearning(t *testing.T) {
	t.Parallel()

	doc := statusdoc.New()
	doc.ReplaceLearning(picks, time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC))

	rec := serve(t, newTestServer(nil, stubDocuments{doc: doc}), http.MethodGet, "/api/learning", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body LearningResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, picks, body.Learning)
	require.NotNil(t, body.UpdatedAt)
	assert.Equal(t, 2026, body.UpdatedAt.Year())

	rec = serve(t, newTestServer(nil, stubDocuments{err: errors.New("boom")}), http.MethodGet, "/api/learning", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	srv := newTestServer(nil, nil)

	rec := serve(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = serve(t, srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "learning_curator_runs_total")

	rec = serve(t, srv, http.MethodPost, triggerRoute, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type slowRunner struct {
	delay time.Duration
}

func (r slowRunner) Run(ctx context.Context, _ usecase.RunOptions) (domain.RunSummary, error) {
	select {
	case <-time.After(r.delay):
		return domain.RunSummary{Items: picks, Written: true}, nil
	case <-ctx.Done():
		return domain.RunSummary{}, ctx.Err()
	}
}

// listen serves srv over a real socket with its production timeouts.
func listen(t *testing.T, srv *Server) *httptest.Server {
	t.Helper()

	ts := httptest.NewUnstartedServer(srv.Handler())
	ts.Config.ReadTimeout = srv.server.ReadTimeout
	ts.Config.WriteTimeout = srv.server.WriteTimeout
	ts.Config.IdleTimeout = srv.server.IdleTimeout
	ts.Start()
	t.Cleanup(ts.Close)
	return ts
}

func TestWriteTimeoutFollowsRunTimeout(t *testing.T) {
	t.Parallel()

	assert.Zero(t, writeTimeoutFor(0))
	assert.Equal(t, 2*time.Minute+writeMargin, writeTimeoutFor(2*time.Minute))

	unbounded := NewServer(config.ServerConfig{}, Deps{})
	assert.Zero(t, unbounded.server.WriteTimeout)
}

func TestLongRunStillDeliversResult(t *testing.T) {
	t.Parallel()

	srv := NewServer(config.ServerConfig{CronSecret: "s3cret"}, Deps{Runner: slowRunner{delay: 400 * time.Millisecond}})
	ts := listen(t, srv)

	resp, err := http.Post(ts.URL+triggerRoute, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body TriggerResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, 2, body.ItemsAdded)
}

func TestRunTimeoutReturnsStructuredError(t *testing.T) {
	t.Parallel()

	srv := NewServer(config.ServerConfig{CronSecret: "s3cret"}, Deps{
		Runner:     slowRunner{delay: time.Minute},
		RunTimeout: 200 * time.Millisecond,
	})
	ts := listen(t, srv)

	resp, err := http.Post(ts.URL+triggerRoute, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Contains(t, body.Error, "deadline exceeded")
}
