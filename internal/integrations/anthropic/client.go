// Package anthropic adapts the Claude Messages API to the generation capability.
package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"hint-agent/internal/domain"
	"hint-agent/internal/integrations/paramstore"
)

const (
	providerName = "anthropic"

	// DefaultMaxOutputTokens bounds replies when a prompt sets no limit.
	DefaultMaxOutputTokens = 1024
	DefaultModel           = "claude-sonnet-4-5-20250929"
)

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
	return func(c *config) { c.baseURL = strings.TrimSpace(baseURL) }
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *config) { c.httpClient = httpClient }
}

func WithDefaultModel(model string) Option {
	return func(c *config) { c.model = strings.TrimSpace(model) }
}

func NewClient(apiKey paramstore.KeyFunc, opts ...Option) (*Client, error) {
	if apiKey == nil {
		return nil, errors.New("anthropic: api key func must not be nil")
	}
	cfg := config{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		model:      DefaultModel,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	reqOpts := []option.RequestOption{
		option.WithHTTPClient(cfg.httpClient),
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

// Generate concatenates every text block of the reply.
func (c *Client) Generate(ctx context.Context, p domain.Prompt) (string, error) {
	key, err := c.apiKey(ctx)
	if err != nil {
		return "", &domain.UpstreamError{Provider: providerName, Err: err}
	}

	model := p.Model
	if model == "" {
		model = c.defaultModel
	}
	maxTokens := int64(DefaultMaxOutputTokens)
	if p.MaxTokens > 0 {
		maxTokens = int64(p.MaxTokens)
	}
	params := sdk.MessageNewParams{
		Model:       sdk.Model(model),
		MaxTokens:   maxTokens,
		Temperature: sdk.Float(p.Temperature),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(p.User)),
		},
	}
	if p.System != "" {
		params.System = []sdk.TextBlockParam{{Text: p.System}}
	}

	message, err := c.sdk.Messages.New(ctx, params, option.WithAPIKey(key))
	if err != nil {
		upstream := &domain.UpstreamError{Provider: providerName, Err: err}
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			upstream.StatusCode = apiErr.StatusCode
		}
		return "", upstream
	}

	var b strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", errors.New("anthropic: no text content in response")
	}
	return b.String(), nil
}
