package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFindHint_UsesLevelFilteredContext(t *testing.T) {
	gen := newScriptedGen()
	retriever := &fakeRetriever{chunks: gameChunks()}
	f := NewHintFinder(retriever, gen, "facts", 0, time.Second, nil)

	got := f.FindHint(context.Background(), "  How do I get   the bus token? ", 2)
	require.True(t, got.Filtered)
	require.Equal(t, 2, got.Chunks)
	require.Equal(t, "The bus token is under the stool at the bar.", got.Hint)
	require.Equal(t, "Document 1: The bus token is somewhere in the bar.\n\nDocument 2: Check the furniture near the counter.", got.Context)

	require.Len(t, retriever.queries, 1)
	require.Equal(t, "How do I get the bus token?", retriever.queries[0].Text)
	require.Equal(t, 2, retriever.queries[0].MaxLevel)
	require.Equal(t, defaultRetrievalK, retriever.queries[0].K)

	prompt := gen.last(stepHint)
	require.Equal(t, "facts", prompt.Model)
	require.Contains(t, prompt.User, got.Context)
}

func TestFindHint_FallsBackToUnfiltered(t *testing.T) {
	chunks := gameChunks()[2:]
	retriever := &fakeRetriever{chunks: chunks}
	f := NewHintFinder(retriever, newScriptedGen(), "facts", 3, time.Second, nil)

	got := f.FindHint(context.Background(), "bus token", 1)
	require.False(t, got.Filtered)
	require.Equal(t, 1, got.Chunks)
	require.Len(t, retriever.queries, 2)
	require.True(t, retriever.queries[0].Filtered())
	require.False(t, retriever.queries[1].Filtered())
	require.Equal(t, 3, retriever.queries[1].K)
}

func TestFindHint_FilteredErrorFallsBack(t *testing.T) {
	retriever := &fakeRetriever{chunks: gameChunks(), filteredErr: errors.New("filter unsupported")}
	f := NewHintFinder(retriever, newScriptedGen(), "facts", 5, time.Second, nil)

	got := f.FindHint(context.Background(), "bus token", 1)
	require.False(t, got.Filtered)
	require.Equal(t, 3, got.Chunks)
}

func TestFindHint_NoContextYieldsSentinel(t *testing.T) {
	gen := newScriptedGen()
	f := NewHintFinder(&fakeRetriever{}, gen, "facts", 5, time.Second, nil)

	got := f.FindHint(context.Background(), "bus token", 1)
	require.Equal(t, SentinelNotEnough, got.Hint)
	require.Empty(t, got.Context)
	require.Zero(t, gen.count(stepHint))

	f = NewHintFinder(&fakeRetriever{err: errors.New("retrieval down")}, gen, "facts", 5, time.Second, nil)
	got = f.FindHint(context.Background(), "bus token", 1)
	require.Equal(t, SentinelNotEnough, got.Hint)
}

func TestFindHint_GenerationFailureYieldsSentinel(t *testing.T) {
	gen := newScriptedGen().with(stepHint, genReply{err: upstreamErr(500)})
	f := NewHintFinder(&fakeRetriever{chunks: gameChunks()}, gen, "facts", 5, time.Second, nil)

	got := f.FindHint(context.Background(), "bus token", 3)
	require.Equal(t, SentinelNotEnough, got.Hint)
	require.NotEmpty(t, got.Context)

	gen.with(stepHint, genReply{text: "  "})
	got = f.FindHint(context.Background(), "bus token", 3)
	require.Equal(t, SentinelNotEnough, got.Hint)
}
