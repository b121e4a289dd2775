package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kurihiro0119/github-issue-insights/internal/errors"
)

func serve(t *testing.T, status int, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGeminiGenerate(t *testing.T) {
	srv := serve(t, http.StatusOK,
		`{"candidates":[{"content":{"parts":[{"text":" bug\nquestion \n"}]}}]}`,
		func(r *http.Request) {
			assert.Equal(t, "/models/test-model:generateContent", r.URL.Path)
			assert.Equal(t, "k", r.URL.Query().Get("key"))

			var req geminiRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "classify these", req.Contents[0].Parts[0].Text)
		})

	g, err := New(Options{Provider: ProviderGemini, APIKey: "k", Model: "test-model", BaseURL: srv.URL})
	require.NoError(t, err)

	text, err := g.Generate(context.Background(), "classify these")
	require.NoError(t, err)
	assert.Equal(t, "bug\nquestion", text)
	assert.Equal(t, "gemini/test-model", g.Name())
}

func TestGeminiMissingCandidateIsParseError(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"candidates":[]}`, nil)
	g, err := New(Options{Provider: ProviderGemini, APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.True(t, apperrors.IsParse(err))
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		check  func(error) bool
	}{
		{http.StatusTooManyRequests, apperrors.IsRateLimited},
		{http.StatusServiceUnavailable, apperrors.IsTransient},
		{http.StatusInternalServerError, apperrors.IsTransient},
		{http.StatusRequestTimeout, apperrors.IsTransient},
		{http.StatusBadRequest, apperrors.IsPermanent},
		{http.StatusUnauthorized, apperrors.IsPermanent},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := serve(t, tt.status, `{"error":"nope"}`, nil)
			o, err := New(Options{Provider: ProviderOllama, BaseURL: srv.URL})
			require.NoError(t, err)

			_, err = o.Generate(context.Background(), "p")
			require.Error(t, err)
			assert.True(t, tt.check(err), "status %d gave %v", tt.status, err)
		})
	}
}

func TestMalformedBodyIsParseError(t *testing.T) {
	srv := serve(t, http.StatusOK, `not json`, nil)
	o, err := New(Options{Provider: ProviderOllama, BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = o.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.True(t, apperrors.IsParse(err))
}

func TestConnectionFailureIsTransient(t *testing.T) {
	srv := serve(t, http.StatusOK, `{}`, nil)
	url := srv.URL
	srv.Close()

	o, err := New(Options{Provider: ProviderOllama, BaseURL: url})
	require.NoError(t, err)

	_, err = o.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.True(t, apperrors.IsTransient(err))
}

func TestOllamaGenerate(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"response":"BUSINESS INSIGHTS:\n1. x"}`, func(r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "gemma3:1b", req.Model)
		assert.Equal(t, 1000, req.Options.NumPredict)
	})
	o, err := New(Options{Provider: ProviderOllama, BaseURL: srv.URL})
	require.NoError(t, err)

	text, err := o.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "BUSINESS INSIGHTS:\n1. x", text)
}

func TestHuggingFaceGenerate(t *testing.T) {
	srv := serve(t, http.StatusOK, `[{"summary_text":"Loader crashes on empty input."}]`, func(r *http.Request) {
		assert.Equal(t, "Bearer hf-token", r.Header.Get("Authorization"))
		var req hfRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 130, req.Parameters.MaxLength)
		assert.Equal(t, 30, req.Parameters.MinLength)
	})
	h, err := New(Options{Provider: ProviderHuggingFace, APIKey: "hf-token", BaseURL: srv.URL})
	require.NoError(t, err)

	text, err := h.Generate(context.Background(), "long issue text")
	require.NoError(t, err)
	assert.Equal(t, "Loader crashes on empty input.", text)
}

func TestHuggingFaceMissingSummaryIsParseError(t *testing.T) {
	srv := serve(t, http.StatusOK, `[{"label":"x"}]`, nil)
	h, err := New(Options{Provider: ProviderHuggingFace, APIKey: "t", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = h.Generate(context.Background(), "p")
	assert.True(t, apperrors.IsParse(err))
}

func TestNewRejectsUnknownProviderAndMissingKeys(t *testing.T) {
	_, err := New(Options{Provider: "mystery"})
	assert.Error(t, err)

	for _, p := range []string{ProviderGemini, ProviderHuggingFace, ProviderAnthropic} {
		_, err := New(Options{Provider: p})
		assert.Error(t, err, p)
	}
}
