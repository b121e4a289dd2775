package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	apperrors "github.com/kurihiro0119/github-issue-insights/internal/errors"
)

const defaultAnthropicModel = "claude-3-5-haiku-latest"

// Anthropic calls the Messages API through the official SDK
type Anthropic struct {
	client      anthropic.Client
	model       anthropic.Model
	maxTokens   int64
	temperature float64
}

// NewAnthropic creates an Anthropic generator. The SDK's own retries are
// disabled; the batch loop's retry policy is the only one in effect.
func NewAnthropic(opts Options) (*Anthropic, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	a := &Anthropic{
		client:      anthropic.NewClient(reqOpts...),
		model:       anthropic.Model(opts.Model),
		maxTokens:   int64(opts.MaxTokens),
		temperature: opts.Temperature,
	}
	if a.model == "" {
		a.model = defaultAnthropicModel
	}
	if a.maxTokens <= 0 {
		a.maxTokens = 1024
	}
	return a, nil
}

func (a *Anthropic) Name() string {
	return ProviderAnthropic + "/" + string(a.model)
}

func (a *Anthropic) Generate(ctx context.Context, prompt string) (string, error) {
	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		Temperature: anthropic.Float(a.temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", classifyAnthropicError(ctx, err)
	}

	if len(message.Content) == 0 {
		return "", apperrors.NewParseError("anthropic response has no content blocks", nil)
	}
	content := message.Content[0]
	if content.Type != "text" {
		return "", apperrors.NewParseError(fmt.Sprintf("anthropic response is not a text block (type=%s)", content.Type), nil)
	}
	return strings.TrimSpace(content.Text), nil
}

func classifyAnthropicError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return statusError(apiErr.StatusCode, []byte(apiErr.Error()))
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperrors.NewTransientError("network error", err)
	}
	return apperrors.NewTransientError("anthropic request failed", err)
}
