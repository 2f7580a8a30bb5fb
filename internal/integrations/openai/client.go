// Package openai adapts the OpenAI chat completions API to the generation
// capability.
package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"hint-agent/internal/domain"
	"hint-agent/internal/integrations/paramstore"
)

const providerName = "openai"

// Client is a focused OpenAI-compatible client for chat completions.
type Client struct {
	sdk          sdk.Client
	apiKey       paramstore.KeyFunc
	defaultModel string
}

type config struct {
	baseURL    string
	httpClient *http.Client
	model      string
}

type Option func(*config)

func WithBaseURL(baseURL string) Option {
	return func(c *config) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *config) {
		c.httpClient = httpClient
	}
}

// WithDefaultModel is used when a prompt names no model.
func WithDefaultModel(model string) Option {
	return func(c *config) {
		c.model = strings.TrimSpace(model)
	}
}

// NewClient creates a Client. The key is resolved on every call so a
// paramstore.TokenKey defers the SSM read to first use.
func NewClient(apiKey paramstore.KeyFunc, opts ...Option) (*Client, error) {
	if apiKey == nil {
		return nil, errors.New("openai: api key func must not be nil")
	}
	cfg := config{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		model:      string(sdk.ChatModelGPT4oMini),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithHTTPClient(cfg.httpClient),
		// Retries are owned by the caller's fallback tiers.
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	return &Client{
		sdk:          sdk.NewClient(reqOpts...),
		apiKey:       apiKey,
		defaultModel: cfg.model,
	}, nil
}

// Generate sends one system+user exchange and returns the first choice.
func (c *Client) Generate(ctx context.Context, p domain.Prompt) (string, error) {
	key, err := c.apiKey(ctx)
	if err != nil {
		return "", &domain.UpstreamError{Provider: providerName, Err: err}
	}

	model := p.Model
	if model == "" {
		model = c.defaultModel
	}
	messages := make([]sdk.ChatCompletionMessageParamUnion, 0, 2)
	if p.System != "" {
		messages = append(messages, sdk.SystemMessage(p.System))
	}
	messages = append(messages, sdk.UserMessage(p.User))

	params := sdk.ChatCompletionNewParams{
		Model:       sdk.ChatModel(model),
		Messages:    messages,
		Temperature: sdk.Float(p.Temperature),
	}
	if p.MaxTokens > 0 {
		params.MaxCompletionTokens = sdk.Int(int64(p.MaxTokens))
	}

	resp, err := c.sdk.Chat.Completions.New(ctx, params, option.WithAPIKey(key))
	if err != nil {
		return "", wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

func wrapError(err error) error {
	upstream := &domain.UpstreamError{Provider: providerName, Err: err}
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		upstream.StatusCode = apiErr.StatusCode
	}
	return upstream
}
