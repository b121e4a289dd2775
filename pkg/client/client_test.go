package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"ok"}`)
	})
	mux.HandleFunc("/api/v1/runs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "summarize", r.URL.Query().Get("task"))
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `{"data":[{"id":"r9","task":"summarize","status":"stopped","stop_reason":"quota_exhausted","remaining":4}]}`)
	})
	mux.HandleFunc("/api/v1/runs/r9", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"run":{"id":"r9"},"batches":[{"run_id":"r9","batch_number":1,"indices":[0],"outcome":"completed","attempts":2}]}}`)
	})
	mux.HandleFunc("/api/v1/runs/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":"NOT_FOUND","message":"run gone not found"}}`)
	})
	mux.HandleFunc("/api/v1/insights/digest", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("top"))
		fmt.Fprint(w, `{"data":{"batches":2,"issues":7,"business":[{"text":"Slow installs","count":2}],"technical":[]}}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient(t *testing.T) {
	srv := newServer(t)
	c := NewClient(srv.URL + "/")
	ctx := context.Background()

	require.NoError(t, c.HealthCheck(ctx))

	runs, err := c.GetRuns(ctx, "summarize", 3)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "quota_exhausted", string(runs[0].StopReason))
	assert.Equal(t, 4, runs[0].Remaining)

	detail, err := c.GetRun(ctx, "r9")
	require.NoError(t, err)
	require.Len(t, detail.Batches, 1)
	assert.Equal(t, 2, detail.Batches[0].Attempts)

	digest, err := c.GetInsightDigest(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 7, digest.Issues)
	assert.Equal(t, "Slow installs", digest.Business[0].Text)
}

func TestClientDecodesErrorEnvelope(t *testing.T) {
	srv := newServer(t)
	_, err := NewClient(srv.URL).GetRun(context.Background(), "gone")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
	assert.Equal(t, "run gone not found", apiErr.Message)
}
