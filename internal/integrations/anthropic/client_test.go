package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"hint-agent/internal/domain"
	"hint-agent/internal/integrations/paramstore"
)

type capturedRequest struct {
	Path   string
	APIKey string
	Body   struct {
		Model     string `json:"model"`
		MaxTokens int64  `json:"max_tokens"`
		System    []struct {
			Text string `json:"text"`
		} `json:"system"`
		Messages []struct {
			Role string `json:"role"`
		} `json:"messages"`
	}
}

func newTestServer(t *testing.T, status int, body string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			captured.Path = r.URL.Path
			captured.APIKey = r.Header.Get("X-Api-Key")
			_ = json.NewDecoder(r.Body).Decode(&captured.Body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const message = `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
"content":[{"type":"text","text":"Look under "},{"type":"text","text":"the stool."}],
"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":4}}`

func TestGenerate_HappyPath(t *testing.T) {
	var captured capturedRequest
	srv := newTestServer(t, http.StatusOK, message, &captured)
	c, err := NewClient(paramstore.StaticKey("ak-test"), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	out, err := c.Generate(context.Background(), domain.Prompt{System: "facts only", User: "where is the token?"})
	require.NoError(t, err)
	require.Equal(t, "Look under the stool.", out)

	require.Equal(t, "/v1/messages", captured.Path)
	require.Equal(t, "ak-test", captured.APIKey)
	require.Equal(t, DefaultModel, captured.Body.Model)
	require.Equal(t, int64(DefaultMaxOutputTokens), captured.Body.MaxTokens)
	require.Len(t, captured.Body.System, 1)
	require.Equal(t, "facts only", captured.Body.System[0].Text)
	require.Equal(t, "user", captured.Body.Messages[0].Role)
}

func TestGenerate_APIErrorIsUpstream(t *testing.T) {
	srv := newTestServer(t, http.StatusServiceUnavailable, `{"type":"error","error":{"type":"overloaded_error","message":"busy"}}`, nil)
	c, err := NewClient(paramstore.StaticKey("ak-test"), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), domain.Prompt{User: "hi"})
	var upstream *domain.UpstreamError
	require.ErrorAs(t, err, &upstream)
	require.Equal(t, http.StatusServiceUnavailable, upstream.StatusCode)
}

func TestGenerate_EmptyContent(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"id":"msg_1","type":"message","role":"assistant","model":"m","content":[],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":0}}`, nil)
	c, err := NewClient(paramstore.StaticKey("ak-test"), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), domain.Prompt{User: "hi"})
	require.Error(t, err)
	var upstream *domain.UpstreamError
	require.False(t, errors.As(err, &upstream))
}

func TestNewClient_NilKey(t *testing.T) {
	_, err := NewClient(nil)
	require.Error(t, err)
}
