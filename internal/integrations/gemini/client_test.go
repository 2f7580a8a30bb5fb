package gemini

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"hint-agent/internal/domain"
	"hint-agent/internal/integrations/paramstore"
)

func newTestServer(t *testing.T, status int, body string, paths *[]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if paths != nil {
			*paths = append(*paths, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerate_HappyPath(t *testing.T) {
	var paths []string
	srv := newTestServer(t, http.StatusOK, `{"candidates":[{"content":{"role":"model","parts":[{"text":"GAME_RELATED"}]}}]}`, &paths)
	c, err := NewClient(paramstore.StaticKey("g-key"), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	out, err := c.Generate(context.Background(), domain.Prompt{Model: "gemini-test", User: "classify"})
	require.NoError(t, err)
	require.Equal(t, "GAME_RELATED", out)
	require.Len(t, paths, 1)
	require.True(t, strings.HasSuffix(paths[0], "/models/gemini-test:generateContent"), paths[0])
}

func TestGenerate_APIErrorIsUpstream(t *testing.T) {
	srv := newTestServer(t, http.StatusInternalServerError, `{"error":{"code":500,"message":"boom","status":"INTERNAL"}}`, nil)
	c, err := NewClient(paramstore.StaticKey("g-key"), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), domain.Prompt{User: "classify"})
	var upstream *domain.UpstreamError
	require.ErrorAs(t, err, &upstream)
	require.Equal(t, http.StatusInternalServerError, upstream.StatusCode)
}

func TestGenerate_KeyFailureRetriesClientConstruction(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`, nil)
	fail := true
	key := func(context.Context) (string, error) {
		if fail {
			return "", errors.New("ssm unavailable")
		}
		return "g-key", nil
	}
	c, err := NewClient(key, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), domain.Prompt{User: "x"})
	var upstream *domain.UpstreamError
	require.ErrorAs(t, err, &upstream)

	fail = false
	out, err := c.Generate(context.Background(), domain.Prompt{User: "x"})
	require.NoError(t, err)
	require.Equal(t, "ok", out)
}
