package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/kurihiro0119/github-issue-insights/internal/errors"
)

const defaultHuggingFaceURL = "https://router.huggingface.co/hf-inference/models/facebook/bart-large-cnn"

// HuggingFace calls a hosted summarization model. The prompt is sent as the
// model input verbatim.
type HuggingFace struct {
	client    *http.Client
	url       string
	token     string
	minLength int
	maxLength int
}

type hfRequest struct {
	Inputs     string `json:"inputs"`
	Parameters struct {
		MaxLength int  `json:"max_length"`
		MinLength int  `json:"min_length"`
		DoSample  bool `json:"do_sample"`
	} `json:"parameters"`
}

type hfSummary struct {
	SummaryText *string `json:"summary_text"`
}

// NewHuggingFace creates a Hugging Face inference generator
func NewHuggingFace(opts Options) (*HuggingFace, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("huggingface: token is required")
	}
	h := &HuggingFace{
		client:    opts.HTTPClient,
		url:       opts.BaseURL,
		token:     opts.APIKey,
		minLength: 30,
		maxLength: 130,
	}
	if h.url == "" {
		h.url = defaultHuggingFaceURL
	}
	if opts.MaxTokens > 0 {
		h.maxLength = opts.MaxTokens
	}
	return h, nil
}

func (h *HuggingFace) Name() string {
	return ProviderHuggingFace
}

func (h *HuggingFace) Generate(ctx context.Context, prompt string) (string, error) {
	var body hfRequest
	body.Inputs = prompt
	body.Parameters.MaxLength = h.maxLength
	body.Parameters.MinLength = h.minLength

	headers := map[string]string{"Authorization": "Bearer " + h.token}

	var resp []hfSummary
	if err := postJSON(ctx, h.client, h.url, headers, body, &resp); err != nil {
		return "", err
	}
	if len(resp) == 0 || resp[0].SummaryText == nil {
		return "", apperrors.NewParseError("huggingface response has no summary_text", nil)
	}
	return strings.TrimSpace(*resp[0].SummaryText), nil
}
