package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-vocab/internal/api"
	"github.com/phrazzld/scry-vocab/internal/config"
	"github.com/phrazzld/scry-vocab/internal/service/review"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, LogLevel: "debug", ShutdownTimeoutSeconds: 1},
		Database: config.DatabaseConfig{
			Driver:       "sqlite",
			URL:          ":memory:",
			MaxOpenConns: 1,
		},
		Auth: config.AuthConfig{
			JWTSecret:        "test-secret-that-is-long-enough-for-testing",
			ClockSkewSeconds: 30,
		},
		Review: config.ReviewConfig{
			IngestBatchSize:   50,
			AgainDelayMinutes: 10,
			Timezone:          "UTC",
		},
		Task: config.TaskConfig{
			WorkerCount:      1,
			QueueSize:        8,
			RetryMaxAttempts: 2,
		},
	}
}

// newTestServer runs the full router against a migrated in-memory database.
func newTestServer(t *testing.T) (*httptest.Server, *application) {
	t.Helper()

	ctx := context.Background()
	cfg := testConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := openDatabase(ctx, cfg.Database, logger)
	require.NoError(t, err)
	require.NoError(t, db.migrate(ctx, "up"))

	app, err := newApplication(cfg, logger, db)
	require.NoError(t, err)

	srv := httptest.NewServer(app.setupRouter())
	t.Cleanup(func() {
		srv.Close()
		app.cleanup()
	})
	return srv, app
}

type client struct {
	t     *testing.T
	base  string
	token string
}

func (c client) do(method, path, body string) *http.Response {
	c.t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	require.NoError(c.t, err)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	resp := client{t: t, base: srv.URL}.do(http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))
}

func TestReviewRoutesRequireAuthentication(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	c := client{t: t, base: srv.URL}

	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/v1/reviews", "").StatusCode)

	c.token = "not-a-jwt"
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/v1/reviews/stats", "").StatusCode)
}

func TestReviewLifecycleOverHTTP(t *testing.T) {
	t.Parallel()

	srv, app := newTestServer(t)
	token, err := app.jwtService.GenerateToken(context.Background(), uuid.New(), time.Hour)
	require.NoError(t, err)
	c := client{t: t, base: srv.URL, token: token}

	adHoc := `{"schema_version": 2, "base": "cat", "target": "猫", "phonetic": "māo"}`
	resp := c.do(http.MethodPost, "/v1/reviews", adHoc)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[api.ReviewItemResponse](t, resp)
	assert.Equal(t, "new", created.Difficulty)

	resp = c.do(http.MethodPost, "/v1/reviews", adHoc)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created.ID, decode[api.ReviewItemResponse](t, resp).ID)

	resp = c.do(http.MethodPost, "/v1/reviews/ingest", `{"items": [
		{"id": "post-1", "detectedObjectBase": "dog", "detectedObjectTarget": "狗"},
		{"schema_version": 2, "source_ref": "post-2", "base": "fish", "target": "鱼"},
		{"schema_version": 2, "source_ref": "post-3", "base": "bird"}
	]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, api.IngestResponse{Created: 2, Rejected: 1}, decode[api.IngestResponse](t, resp))

	resp = c.do(http.MethodGet, "/v1/reviews/due/count", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, decode[api.CountResponse](t, resp).Count, "new items wait for the next day")

	resp = c.do(http.MethodPost, "/v1/reviews/"+created.ID+"/grade", `{"grade": "good"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	graded := decode[api.ReviewItemResponse](t, resp)
	assert.Equal(t, 1, graded.Repetitions)
	assert.Equal(t, 1, graded.IntervalDays)
	assert.Equal(t, "learning", graded.Difficulty)

	resp = c.do(http.MethodPost, "/v1/reviews/reset", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, decode[api.CountResponse](t, resp).Count, "only content-backed items are reset")

	resp = c.do(http.MethodGet, "/v1/reviews/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, review.Stats{Total: 3, Due: 2, New: 2, Learning: 1}, decode[review.Stats](t, resp))

	resp = c.do(http.MethodDelete, "/v1/reviews/sources/post-1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decode[api.CountResponse](t, resp).Count)

	resp = c.do(http.MethodGet, "/v1/reviews", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]api.ReviewItemResponse](t, resp), 2)

	resp = c.do(http.MethodPost, "/v1/reviews/"+uuid.NewString()+"/grade", `{"grade": "good"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOwnersAreIsolated(t *testing.T) {
	t.Parallel()

	srv, app := newTestServer(t)
	ctx := context.Background()

	aliceToken, err := app.jwtService.GenerateToken(ctx, uuid.New(), time.Hour)
	require.NoError(t, err)
	bobToken, err := app.jwtService.GenerateToken(ctx, uuid.New(), time.Hour)
	require.NoError(t, err)

	alice := client{t: t, base: srv.URL, token: aliceToken}
	bob := client{t: t, base: srv.URL, token: bobToken}

	resp := alice.do(http.MethodPost, "/v1/reviews", `{"schema_version": 2, "base": "cat", "target": "猫"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	item := decode[api.ReviewItemResponse](t, resp)

	resp = bob.do(http.MethodPost, "/v1/reviews/"+item.ID+"/grade", `{"grade": "easy"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = bob.do(http.MethodGet, "/v1/reviews", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]api.ReviewItemResponse](t, resp))
}

func TestOpenDatabaseRejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := openDatabase(context.Background(), config.DatabaseConfig{Driver: "mysql", URL: "x"},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorContains(t, err, "unsupported database driver")
}
