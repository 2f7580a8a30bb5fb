package retrievalapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"hint-agent/internal/domain"
)

const results = `{"results":[
{"chunk_id":"bar-1","text":"The token is in the bar.","metadata":{"source":"bar.md","hint_level":1},"score":0.9},
{"chunk_id":"bar-3","text":"Under the third stool.","metadata":{"source":"bar.md","hint_level":3},"score":0.8},
{"chunk_id":"misc","text":"Untagged note.","score":0.1}
]}`

func newTestServer(t *testing.T, status int, body string, captured *retrieveRequest, auth *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/retrieve" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if captured != nil {
			_ = json.NewDecoder(r.Body).Decode(captured)
		}
		if auth != nil {
			*auth = r.Header.Get("Authorization")
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRetrieve_Unfiltered(t *testing.T) {
	var captured retrieveRequest
	var auth string
	srv := newTestServer(t, http.StatusOK, results, &captured, &auth)
	c, err := NewClient(srv.URL+"/", WithHTTPClient(srv.Client()), WithAPIKey("r-key"))
	require.NoError(t, err)

	chunks, err := c.Retrieve(context.Background(), domain.RetrievalQuery{Text: "bus token", K: 5})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	require.Equal(t, "bar-1", chunks[0].Metadata.ChunkID)
	require.Equal(t, 1, chunks[0].Metadata.HintLevel)
	require.Equal(t, "bar.md", chunks[0].Metadata.Source)
	require.InDelta(t, 0.9, chunks[0].Score, 1e-9)

	require.Equal(t, "bus token", captured.Query)
	require.Equal(t, 5, captured.K)
	require.Nil(t, captured.Filter)
	require.Equal(t, "Bearer r-key", auth)
}

func TestRetrieve_FilterIsSentAndEnforced(t *testing.T) {
	var captured retrieveRequest
	srv := newTestServer(t, http.StatusOK, results, &captured, nil)
	c, err := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	chunks, err := c.Retrieve(context.Background(), domain.RetrievalQuery{Text: "bus token", MaxLevel: 2, K: 5})
	require.NoError(t, err)
	require.NotNil(t, captured.Filter)
	require.Equal(t, 2, captured.Filter.MaxHintLevel)
	for _, ch := range chunks {
		require.LessOrEqual(t, ch.Metadata.HintLevel, 2)
	}
	require.Len(t, chunks, 2)
}

func TestRetrieve_RespectsK(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, results, nil, nil)
	c, err := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	chunks, err := c.Retrieve(context.Background(), domain.RetrievalQuery{Text: "bus token", K: 1})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
}

func TestRetrieve_Errors(t *testing.T) {
	srv := newTestServer(t, http.StatusBadGateway, "upstream down", nil, nil)
	c, err := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	_, err = c.Retrieve(context.Background(), domain.RetrievalQuery{Text: "x", K: 5})
	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusBadGateway, statusErr.HTTPStatusCode())

	srv = newTestServer(t, http.StatusOK, "not-json", nil, nil)
	c, err = NewClient(srv.URL, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	_, err = c.Retrieve(context.Background(), domain.RetrievalQuery{Text: "x", K: 5})
	require.ErrorContains(t, err, "decode response")
}

func TestNewClient_EmptyBaseURL(t *testing.T) {
	_, err := NewClient(" ")
	require.Error(t, err)
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			_, _ = w.Write([]byte(`{"status":"ok"}`))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	require.NoError(t, c.Health(context.Background()))

	c, err = NewClient(srv.URL+"/down", WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	require.Error(t, c.Health(context.Background()))
}
