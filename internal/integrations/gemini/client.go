// Package gemini adapts the Gemini API to the generation capability.
package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/genai"

	"hint-agent/internal/domain"
	"hint-agent/internal/integrations/paramstore"
)

const (
	providerName = "gemini"
	DefaultModel = "gemini-2.5-flash"
)

// Client builds the SDK client on first use because genai binds the API key
// at construction.
type Client struct {
	apiKey       paramstore.KeyFunc
	defaultModel string
	baseURL      string
	httpClient   *http.Client

	mu     sync.Mutex
	client *genai.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSpace(baseURL) }
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

func WithDefaultModel(model string) Option {
	return func(c *Client) { c.defaultModel = strings.TrimSpace(model) }
}

func NewClient(apiKey paramstore.KeyFunc, opts ...Option) (*Client, error) {
	if apiKey == nil {
		return nil, errors.New("gemini: api key func must not be nil")
	}
	c := &Client{apiKey: apiKey, defaultModel: DefaultModel}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) sdkClient(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	key, err := c.apiKey(ctx)
	if err != nil {
		return nil, err
	}
	cfg := &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.httpClient,
	}
	if c.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

func (c *Client) Generate(ctx context.Context, p domain.Prompt) (string, error) {
	client, err := c.sdkClient(ctx)
	if err != nil {
		return "", &domain.UpstreamError{Provider: providerName, Err: err}
	}

	model := p.Model
	if model == "" {
		model = c.defaultModel
	}
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(p.Temperature)),
	}
	if p.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(p.System, genai.RoleUser)
	}
	if p.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(p.MaxTokens)
	}

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(p.User), cfg)
	if err != nil {
		return "", wrapError(err)
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("gemini: empty response")
	}
	return text, nil
}

func wrapError(err error) error {
	upstream := &domain.UpstreamError{Provider: providerName, Err: err}
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		upstream.StatusCode = apiErr.Code
	case errors.As(err, &apiErrPtr):
		upstream.StatusCode = apiErrPtr.Code
	}
	return upstream
}
