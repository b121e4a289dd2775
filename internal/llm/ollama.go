package llm

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/kurihiro0119/github-issue-insights/internal/errors"
)

const defaultOllamaURL = "http://localhost:11434"

// Ollama calls a local Ollama server's /api/generate
type Ollama struct {
	client      *http.Client
	baseURL     string
	model       string
	temperature float64
	numPredict  int
}

type ollamaRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Stream  bool   `json:"stream"`
	Options struct {
		Temperature float64 `json:"temperature"`
		NumPredict  int     `json:"num_predict"`
	} `json:"options"`
}

type ollamaResponse struct {
	Response *string `json:"response"`
}

// NewOllama creates an Ollama generator
func NewOllama(opts Options) (*Ollama, error) {
	o := &Ollama{
		client:      opts.HTTPClient,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		model:       opts.Model,
		temperature: opts.Temperature,
		numPredict:  opts.MaxTokens,
	}
	if o.baseURL == "" {
		o.baseURL = defaultOllamaURL
	}
	if o.model == "" {
		o.model = "gemma3:1b"
	}
	if o.numPredict <= 0 {
		o.numPredict = 1000
	}
	return o, nil
}

func (o *Ollama) Name() string {
	return ProviderOllama + "/" + o.model
}

func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	body := ollamaRequest{Model: o.model, Prompt: prompt}
	body.Options.Temperature = o.temperature
	body.Options.NumPredict = o.numPredict

	var resp ollamaResponse
	if err := postJSON(ctx, o.client, o.baseURL+"/api/generate", nil, body, &resp); err != nil {
		return "", err
	}
	if resp.Response == nil {
		return "", apperrors.NewParseError("ollama response has no response field", nil)
	}
	return strings.TrimSpace(*resp.Response), nil
}
