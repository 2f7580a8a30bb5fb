// Package retrievalapi talks to a remote retrieval service over HTTP.
package retrievalapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hint-agent/internal/domain"
)

type retrieveRequest struct {
	Query  string  `json:"query"`
	K      int     `json:"k"`
	Filter *filter `json:"filter,omitempty"`
}

type filter struct {
	MaxHintLevel int `json:"max_hint_level"`
}

type retrieveResponse struct {
	Results []result `json:"results"`
}

type result struct {
	ChunkID  string          `json:"chunk_id"`
	Text     string          `json:"text"`
	Metadata json.RawMessage `json:"metadata"`
	Score    float64         `json:"score"`
}

type resultMetadata struct {
	Source    string `json:"source"`
	HintLevel int    `json:"hint_level"`
}

// HTTPStatusError captures non-2xx responses from the retrieval service.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("retrievalapi: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithAPIKey sends the key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(key)
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("retrievalapi: base url must not be empty")
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Retrieve returns up to q.K ranked chunks. Results above q.MaxLevel are
// dropped here as well in case the service ignores the filter.
func (c *Client) Retrieve(ctx context.Context, q domain.RetrievalQuery) ([]domain.Chunk, error) {
	reqBody := retrieveRequest{Query: q.Text, K: q.K}
	if q.Filtered() {
		reqBody.Filter = &filter{MaxHintLevel: q.MaxLevel}
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("retrievalapi: marshal request: %w", err)
	}

	url := c.baseURL + "/retrieve"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("retrievalapi: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return nil, fmt.Errorf("retrievalapi: request failed: %w", err)
	}

	var payload retrieveResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("retrievalapi: decode response: %w", err)
	}

	chunks := make([]domain.Chunk, 0, len(payload.Results))
	for _, r := range payload.Results {
		var meta resultMetadata
		if len(r.Metadata) > 0 {
			if err := json.Unmarshal(r.Metadata, &meta); err != nil {
				return nil, fmt.Errorf("retrievalapi: decode metadata of %q: %w", r.ChunkID, err)
			}
		}
		if q.Filtered() && meta.HintLevel > q.MaxLevel {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			Text:  r.Text,
			Score: r.Score,
			Metadata: domain.ChunkMetadata{
				Source:    meta.Source,
				HintLevel: meta.HintLevel,
				ChunkID:   r.ChunkID,
			},
		})
		if q.K > 0 && len(chunks) == q.K {
			break
		}
	}
	return chunks, nil
}

// Health checks GET /health and returns an error unless the service answers 2xx.
func (c *Client) Health(ctx context.Context) error {
	url := c.baseURL + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("retrievalapi: create request: %w", err)
	}
	if _, err := c.doJSONRequest(req, url); err != nil {
		return fmt.Errorf("retrievalapi: health: %w", err)
	}
	return nil
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
