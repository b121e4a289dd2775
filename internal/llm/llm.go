// Package llm wraps the remote text-generation endpoints the pipeline calls.
//
// Every provider maps its failures onto the shared error taxonomy:
// RATE_LIMITED for HTTP 429, TRANSIENT for 5xx, timeouts and connection
// failures, PERMANENT for any other rejection and PARSE_ERROR when the
// response body does not have the documented shape.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	apperrors "github.com/kurihiro0119/github-issue-insights/internal/errors"
)

// Generator produces text for a prompt
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Provider names accepted by New
const (
	ProviderGemini      = "gemini"
	ProviderHuggingFace = "huggingface"
	ProviderOllama      = "ollama"
	ProviderAnthropic   = "anthropic"
)

// Options configures a provider
type Options struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
	HTTPClient  *http.Client
}

// New creates the generator named by opts.Provider
func New(opts Options) (Generator, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}

	switch opts.Provider {
	case ProviderGemini:
		return NewGemini(opts)
	case ProviderHuggingFace:
		return NewHuggingFace(opts)
	case ProviderOllama:
		return NewOllama(opts)
	case ProviderAnthropic:
		return NewAnthropic(opts)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", opts.Provider)
	}
}

// postJSON sends body as JSON and decodes a 200 response into out
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return apperrors.NewPermanentError("encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return apperrors.NewPermanentError("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.NewTransientError("read response body", err)
	}

	if err := statusError(resp.StatusCode, data); err != nil {
		return err
	}

	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.NewParseError("decode response", err)
	}
	return nil
}

// statusError maps a non-200 status onto the error taxonomy
func statusError(status int, body []byte) error {
	if status == http.StatusOK {
		return nil
	}
	msg := fmt.Sprintf("status %d: %s", status, truncate(string(body), 200))
	switch {
	case status == http.StatusTooManyRequests:
		return apperrors.NewRateLimitedError(msg)
	case status == http.StatusRequestTimeout, status >= 500:
		return apperrors.NewTransientError(msg, nil)
	default:
		return apperrors.NewPermanentError(msg, nil)
	}
}

func classifyTransportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperrors.NewTransientError("network error", err)
	}
	return apperrors.NewTransientError("request failed", err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
