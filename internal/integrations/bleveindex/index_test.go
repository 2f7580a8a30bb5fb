package bleveindex

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"hint-agent/internal/domain"
)

func testEntries() []Entry {
	return []Entry{
		{ChunkID: "token-1", Text: "The bus token is somewhere in the bar.", Source: "bar.md", HintLevel: 1},
		{ChunkID: "token-2", Text: "The bartender keeps the bus token near the stools.", Source: "bar.md", HintLevel: 2},
		{ChunkID: "token-3", Text: "The bus token is taped under the third bar stool.", Source: "bar.md", HintLevel: 3},
		{ChunkID: "radio", Text: "The radio in the lobby needs a fuse.", Source: "lobby.md", HintLevel: 1},
	}
}

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := New(testEntries())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestRetrieve_FiltersByLevel(t *testing.T) {
	idx := newTestIndex(t)

	chunks, err := idx.Retrieve(context.Background(), domain.RetrievalQuery{Text: "bus token", MaxLevel: 2, K: 5})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		require.LessOrEqual(t, c.Metadata.HintLevel, 2)
		require.Equal(t, "bar.md", c.Metadata.Source)
	}
	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		ids = append(ids, c.Metadata.ChunkID)
	}
	require.ElementsMatch(t, []string{"token-1", "token-2"}, ids)
}

func TestRetrieve_Unfiltered(t *testing.T) {
	idx := newTestIndex(t)

	chunks, err := idx.Retrieve(context.Background(), domain.RetrievalQuery{Text: "bus token", K: 5})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	require.NotEmpty(t, chunks[0].Text)
	require.Greater(t, chunks[0].Score, 0.0)
}

func TestRetrieve_RespectsK(t *testing.T) {
	idx := newTestIndex(t)

	chunks, err := idx.Retrieve(context.Background(), domain.RetrievalQuery{Text: "bus token", K: 1})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
}

func TestRetrieve_NoMatchIsEmpty(t *testing.T) {
	idx := newTestIndex(t)

	chunks, err := idx.Retrieve(context.Background(), domain.RetrievalQuery{Text: "submarine", MaxLevel: 1, K: 5})
	require.NoError(t, err)
	require.Empty(t, chunks)
}

func TestRetrieve_CancelledContext(t *testing.T) {
	idx := newTestIndex(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := idx.Retrieve(ctx, domain.RetrievalQuery{Text: "bus token", K: 5})
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`chunks:
  - chunk_id: fuse-1
    text: The fuse box is in the basement.
    source: basement.md
    hint_level: 1
  - text: Unlabelled chunk about the basement door.
`), 0o600))

	idx, err := LoadFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	n, err := idx.Count()
	require.NoError(t, err)
	require.Equal(t, uint64(2), n)

	chunks, err := idx.Retrieve(context.Background(), domain.RetrievalQuery{Text: "door", MaxLevel: 1, K: 5})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	require.Equal(t, "chunk-1", chunks[0].Metadata.ChunkID)
	require.Equal(t, 1, chunks[0].Metadata.HintLevel)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)

	_, err = New([]Entry{{ChunkID: "blank", Text: "  "}})
	require.ErrorContains(t, err, "no text")

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
