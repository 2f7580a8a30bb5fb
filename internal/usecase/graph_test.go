package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hint-agent/internal/domain"
)

func newTestGraph(t *testing.T, gen Generator, retriever Retriever, maxHistory int) *Graph {
	t.Helper()
	guard := NewGuardrail(DefaultDenylist...)
	persona := DefaultPersona()
	g, err := NewGraph(GraphDeps{
		Router:    newTestRouter(t, &stubClassifier{}),
		Finder:    NewHintFinder(retriever, gen, "facts", 5, time.Second, nil),
		Verifier:  NewVerifier(gen, "judge", time.Second, nil),
		Rewriter:  NewPersonaRewriter(gen, "voice", persona, guard, time.Second, nil),
		Composer:  NewErrorComposer(gen, "voice", persona, guard, time.Second, nil),
		Formatter: NewOutputFormatter(maxHistory),
		Persona:   persona,
	})
	require.NoError(t, err)
	return g
}

func TestNewGraph_RequiresNodes(t *testing.T) {
	_, err := NewGraph(GraphDeps{})
	require.Error(t, err)
}

func TestGraph_VerifiedPath(t *testing.T) {
	gen := newScriptedGen()
	g := newTestGraph(t, gen, &fakeRetriever{chunks: gameChunks()}, 0)

	res, next := g.Run(context.Background(), "How do I get the bus token?", domain.NewConversationState())
	require.Equal(t, []string{"START", "ROUTE", "FIND_HINT", "VERIFY", "REWRITE", "FORMAT", "END"}, res.Path)
	require.Equal(t, domain.DecisionNew, res.Decision)
	require.Equal(t, domain.VerdictVerified, res.Verdict)
	require.Equal(t, domain.TierGenerated, res.FallbackTier)
	require.Equal(t, "Hint (Level 1): Look under the bar stool, detective.", res.Text)
	require.Equal(t, []domain.ChatMessage{
		{Role: domain.RoleUser, Content: "How do I get the bus token?"},
		{Role: domain.RoleAssistant, Content: res.Text},
	}, next.ChatHistory)
}

func TestGraph_SmalltalkSkipsPipeline(t *testing.T) {
	gen := newScriptedGen()
	retriever := &fakeRetriever{chunks: gameChunks()}
	g := newTestGraph(t, gen, retriever, 0)

	res, next := g.Run(context.Background(), "Who are you?", domain.NewConversationState())
	require.Equal(t, []string{"START", "ROUTE", "END"}, res.Path)
	require.Equal(t, DefaultPersona().Smalltalk, res.Text)
	require.Equal(t, domain.TierCanned, res.FallbackTier)
	require.Zero(t, retriever.queryCount())
	require.Zero(t, gen.count(stepPersona))
	require.Empty(t, next.ChatHistory)
}

func TestGraph_GameQuestionsAddressedToYouGetHints(t *testing.T) {
	for _, question := range []string{
		"What do you do with the bus token?",
		"What are you supposed to do at the bar?",
		"Who are you supposed to bribe for the token?",
	} {
		t.Run(question, func(t *testing.T) {
			gen := newScriptedGen()
			retriever := &fakeRetriever{chunks: gameChunks()}
			g := newTestGraph(t, gen, retriever, 0)

			res, _ := g.Run(context.Background(), question, domain.NewConversationState())
			require.Equal(t, domain.DecisionNew, res.Decision)
			require.Contains(t, res.Path, "FIND_HINT")
			require.NotEqual(t, DefaultPersona().Smalltalk, res.Text)
			require.Equal(t, 1, retriever.queryCount())
		})
	}
}

func TestGraph_RejectedHintNeverReachesPlayer(t *testing.T) {
	for _, verdict := range []string{"HALLUCINATED", "TOO_SPECIFIC", "INSUFFICIENT_CONTEXT", "gibberish"} {
		t.Run(verdict, func(t *testing.T) {
			gen := newScriptedGen().with(stepHint, genReply{text: "The secret code is 4471."}).
				with(stepVerify, genReply{text: verdict})
			g := newTestGraph(t, gen, &fakeRetriever{chunks: gameChunks()}, 0)

			res, next := g.Run(context.Background(), "What is the door code?", domain.NewConversationState())
			require.Equal(t, []string{"START", "ROUTE", "FIND_HINT", "VERIFY", "COMPOSE_ERROR", "END"}, res.Path)
			require.False(t, res.Verdict.Passed())
			require.Equal(t, "The secret code is 4471.", res.CandidateHint)
			require.NotContains(t, res.Text, "4471")
			require.NotContains(t, gen.last(stepError).User, "4471")
			require.Zero(t, gen.count(stepPersona))
			require.Empty(t, next.ChatHistory)
			require.Equal(t, "What is the door code?", next.LastQuestionID)
		})
	}
}

func TestGraph_LevelsAreMonotonicUnderEscalation(t *testing.T) {
	gen := newScriptedGen()
	g := newTestGraph(t, gen, &fakeRetriever{chunks: gameChunks()}, 0)
	state := domain.NewConversationState()

	turns := []string{"How do I get the bus token?", "Where is the bus token?", "I'm still stuck", "I tried that"}
	for i, text := range turns {
		var res domain.TurnResult
		res, state = g.Run(context.Background(), text, state)
		require.Equal(t, i+1, res.HintLevel, text)
		require.Equal(t, "How do I get the bus token?", res.EffectiveQuestion)
		require.Contains(t, res.Text, fmt.Sprintf("Hint (Level %d):", i+1))
	}

	res, _ := g.Run(context.Background(), "How do I open the airlock?", state)
	require.Equal(t, 1, res.HintLevel)
	require.Equal(t, domain.DecisionNew, res.Decision)
}

func TestGraph_HistoryIsBounded(t *testing.T) {
	g := newTestGraph(t, newScriptedGen(), &fakeRetriever{chunks: gameChunks()}, 6)
	state := domain.NewConversationState()
	questions := []string{"bus token", "airlock door", "captain badge", "laser pistol", "cargo manifest"}
	for _, q := range questions {
		_, state = g.Run(context.Background(), q, state)
		require.LessOrEqual(t, len(state.ChatHistory), 6)
	}
	require.Len(t, state.ChatHistory, 6)
	require.Equal(t, "cargo manifest", state.ChatHistory[4].Content)
}

func TestOutputFormatter_DoesNotAliasInput(t *testing.T) {
	f := NewOutputFormatter(2)
	history := []domain.ChatMessage{{Role: domain.RoleUser, Content: "old"}, {Role: domain.RoleAssistant, Content: "older"}}

	text, next := f.Format("Check the stool.", 3, "bus token", history)
	require.Equal(t, "Hint (Level 3): Check the stool.", text)
	require.Len(t, next, 2)
	require.Equal(t, "bus token", next[0].Content)
	require.Equal(t, "old", history[0].Content)
}
