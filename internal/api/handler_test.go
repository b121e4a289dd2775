package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/github-issue-insights/internal/domain"
	apperrors "github.com/kurihiro0119/github-issue-insights/internal/errors"
)

type stubAggregator struct {
	gotTask  string
	gotLimit int
	gotTop   int
	err      error
}

func (s *stubAggregator) ListRuns(_ context.Context, task string, limit int) ([]*domain.Run, error) {
	s.gotTask, s.gotLimit = task, limit
	return []*domain.Run{{ID: "r1", Task: "relabel", Status: domain.RunStatusCompleted}}, s.err
}

func (s *stubAggregator) GetRunDetail(_ context.Context, id string) (*domain.RunDetail, error) {
	if id != "r1" {
		return nil, apperrors.NewNotFoundError("run " + id)
	}
	return &domain.RunDetail{
		Run:     &domain.Run{ID: "r1"},
		Batches: []*domain.BatchResult{{RunID: "r1", BatchNumber: 1, Outcome: domain.BatchDefaulted}},
	}, nil
}

func (s *stubAggregator) InsightDigest(_ context.Context, batches, top int) (*domain.InsightDigest, error) {
	s.gotLimit, s.gotTop = batches, top
	if s.err != nil {
		return nil, s.err
	}
	return &domain.InsightDigest{Batches: 2, Business: []domain.RankedInsight{{Text: "x", Count: 2}}}, nil
}

func serve(t *testing.T, agg *stubAggregator, target string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := SetupRoutes(NewHandler(agg), zerolog.Nop())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestHealth(t *testing.T) {
	w := serve(t, &stubAggregator{}, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestListRuns(t *testing.T) {
	agg := &stubAggregator{}
	w := serve(t, agg, "/api/v1/runs?task=relabel&limit=5")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "relabel", agg.gotTask)
	assert.Equal(t, 5, agg.gotLimit)

	var body struct {
		Data []domain.Run `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "r1", body.Data[0].ID)
}

func TestListRunsRejectsUnknownTask(t *testing.T) {
	w := serve(t, &stubAggregator{}, "/api/v1/runs?task=deploy")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "BAD_REQUEST")
}

func TestListRunsLimitFallbacks(t *testing.T) {
	agg := &stubAggregator{}
	serve(t, agg, "/api/v1/runs?limit=abc")
	assert.Equal(t, 20, agg.gotLimit)

	serve(t, agg, "/api/v1/runs?limit=100000")
	assert.Equal(t, maxLimit, agg.gotLimit)
}

func TestGetRun(t *testing.T) {
	w := serve(t, &stubAggregator{}, "/api/v1/runs/r1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"defaulted"`)

	w = serve(t, &stubAggregator{}, "/api/v1/runs/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
}

func TestInsightDigest(t *testing.T) {
	agg := &stubAggregator{}
	w := serve(t, agg, "/api/v1/insights/digest?limit=50")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 50, agg.gotLimit)
	assert.Equal(t, 20, agg.gotTop)
	assert.Contains(t, w.Body.String(), `"business":[{"text":"x","count":2}]`)
}

func TestInternalErrorMapping(t *testing.T) {
	w := serve(t, &stubAggregator{err: errors.New("db down")}, "/api/v1/insights/digest")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}
